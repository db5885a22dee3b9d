// Package scheduler runs the background loop that discovers completed calls,
// claims them with a compare-and-swap, and drives each through the retrying
// analysis step. The claim is the per-call exclusivity point: a claimed call
// is written only by its worker until analysis concludes.
package scheduler
