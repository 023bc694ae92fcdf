// Package confidence scores candidate agent actions.
//
// The scorer computes six independent factors for a candidate tool
// invocation and blends them into a composite with fixed normalized
// weights. Scoring is all-or-nothing: every factor is computed together,
// and any retrieval failure aborts the whole score rather than filling
// defaults, so the autonomy gate never acts on partial evidence.
//
// Scoring is purely computational; nothing here writes anywhere. Tool
// kinds without side effects (query, memory) are never scored, and that
// exemption is declared on the tool registration, not inferred here.
package confidence
