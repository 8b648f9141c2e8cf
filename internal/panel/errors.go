package panel

import "errors"

// Attach failures. Each is wrapped with the step that failed; test with
// errors.Is.
var (
	ErrResourceUnavailable = errors.New("panel: resource unavailable")
	ErrMapping             = errors.New("panel: mapping failed")
	ErrAllocation          = errors.New("panel: allocation failed")
	ErrUnrecognizedDevice  = errors.New("panel: unrecognized device")
	ErrRegistration        = errors.New("panel: registration failed")
)

// ErrDetached is returned by operations on a device after Detach.
var ErrDetached = errors.New("panel: device detached")
