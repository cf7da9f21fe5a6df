// Package evidence defines the uniform evidence record produced by the
// provider standardizers, and the pure reduction stages that turn a set of
// records into a scored report: per-origin merging, weighted-vote severity
// consensus, and bounded confidence computation.
//
// Everything in this package is deterministic in its inputs and never
// performs I/O. Empty inputs produce the documented empty-case outputs
// rather than errors.
package evidence
