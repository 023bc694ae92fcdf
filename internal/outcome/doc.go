// Package outcome closes the learning loop: it measures whether past
// decisions worked, decays rules that go unreinforced, and prunes
// learning data past retention. Measurement prefers explicit owner
// feedback; absent that, category probes read the portfolio for the
// state change the action was meant to cause. Decisions that cannot be
// measured are retried each run until a maximum age and then abandoned
// without a synthetic verdict.
package outcome
