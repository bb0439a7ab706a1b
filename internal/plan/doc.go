// Package plan merges resolver outputs into a reviewable rename plan.
//
// Deterministic and model results for the same destination compete by
// confidence, with near-ties going to the deterministic side. The
// resulting document carries per-item evidence, per-file groups with
// rollups, and summary totals, and serializes byte-stably so repeated
// builds over identical inputs can be diffed.
package plan
