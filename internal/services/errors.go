package services

import "errors"

// ErrPrecondition marks a caller-contract violation detected before any
// remote call was attempted, e.g. updating a session that was never
// started. Check with errors.Is.
var ErrPrecondition = errors.New("precondition failed")

// ErrAuthorizationRejected is returned when the partner answered the
// authorize call but did not allow the token.
var ErrAuthorizationRejected = errors.New("authorization rejected")

// ErrLockHeld is returned when the job lease for (endpoint, action) is held
// elsewhere; the run is skipped, not queued.
var ErrLockHeld = errors.New("job lock held by another instance")
