package store

import "errors"

// ErrNotFound indicates no call exists for the requested identifier.
var ErrNotFound = errors.New("call not found")

// ErrClaimConflict indicates a compare-and-swap transition matched zero rows
// because another writer changed the call's status first. Schedulers treat
// this as "skip", not as a failure.
var ErrClaimConflict = errors.New("call claim conflict")
