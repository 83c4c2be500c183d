// Package resolver orchestrates capability resolution over a run model.
//
// A run description names top-level requirements, a framework, repositories
// and selection policy (blacklist, preferences, effective tags). [Context]
// implements the candidate-selection policy over those inputs, and
// [Process] drives a [Solver] through two passes:
//
//  1. Resolve the mandatory resources (the synthetic input resource and the
//     framework) to a consistent wiring.
//  2. Re-resolve with every first-pass resource mandatory, recording the
//     providers that could satisfy optional requirements along the way.
//
// The result separates required resources from discovered optional ones and
// records, for each, the wires that pulled it in. When a pass fails, the
// failure is augmented with a root-cause analysis that walks candidate
// chains looking for the deepest unsatisfiable requirement.
package resolver
