package place

import "errors"

// Failure taxonomy. None of these is fatal: every component converts them
// into a display state at its boundary and logs the cause.
var (
	// ErrElementNotFound means a target element is absent or has fewer
	// children than required. Expected and frequent while the page renders.
	ErrElementNotFound = errors.New("place: element not found")

	// ErrMalformedAddress means the address has no city segment.
	ErrMalformedAddress = errors.New("place: malformed address")

	// ErrNetworkFailure covers transport errors and undecodable responses
	// from the scoring endpoint.
	ErrNetworkFailure = errors.New("place: network failure")

	// ErrNonSuccessResponse means the scoring endpoint answered non-2xx.
	ErrNonSuccessResponse = errors.New("place: non-success response")

	// ErrInjectionTarget means the panel parent container is missing.
	ErrInjectionTarget = errors.New("place: injection target missing")
)
