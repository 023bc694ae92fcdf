// Package autonomy implements the policy layer that decides how
// independently the agent may act within a domain category.
//
// # Overview
//
// Every user carries an autonomy configuration: a preset (cautious,
// balanced, hands_off, or custom) expanded into a per-category level
// vector, plus per-category minimum confidence thresholds. The gate maps
// a (configured level, composite confidence) pair to a disposition:
//
//	L0 Disabled        -> block
//	L1 Suggest         -> suggest
//	L2 Draft & Approve -> draft
//	L3 Auto w/ Notice  -> auto_notice
//	L4 Full Auto       -> auto_silent
//
// Confidence can only demote: a composite below the category minimum
// downgrades the effective level by one step regardless of configuration.
// It never promotes.
//
// # Usage
//
//	cfg := autonomy.NewConfig("user-1", autonomy.PresetBalanced)
//	d := autonomy.Decide(cfg, autonomy.CategoryRentCollection, 0.82)
//	if d.AllowsExecution() {
//	    // run the tool
//	}
//
// The gate is pure: configuration is an explicit record passed in, never
// ambient state, so policy decisions are deterministic and testable.
package autonomy
