// Package heartbeat sweeps the portfolio for conditions that warrant
// action: overdue rent, unassigned maintenance, expiring certificates,
// stale listings, and the rest of the category detectors. Each finding
// becomes a task under the same confidence scoring and autonomy gating
// as chat-initiated actions. Sweeps are idempotent: an idempotency key
// derived from the entity, category, and a coarse time bucket makes
// re-running a sweep a no-op.
package heartbeat
