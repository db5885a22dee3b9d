// Package calls holds the call domain model: lifecycle statuses, the pure
// state machine that validates transitions between them, and the derived
// missing-sequence computation over a call's received packet set. Nothing in
// this package touches persistence or the network.
package calls
