package repos

import "errors"

// ErrTransitionLost is returned when a conditional UPDATE ... WHERE state=?
// affects zero rows: the update either affects exactly one row (success)
// or zero (lost race) — the caller lost the race and must abandon the
// operation.
var ErrTransitionLost = errors.New("repos: state transition lost race")

// ErrNoProxyAvailable is returned by acquire_with_wait on timeout.
var ErrNoProxyAvailable = errors.New("repos: no proxy available")

// ErrNoTaskAvailable signals an empty queue to callers that want to
// distinguish "nothing to claim" from a real error.
var ErrNoTaskAvailable = errors.New("repos: no task available")
