package provisioning

import (
	"errors"
	"fmt"
)

// Domain errors for provisioning. Use errors.Is to check them.
var (
	// ErrRegistrationRejected is returned when the service answers with an errorCode.
	ErrRegistrationRejected = errors.New("provisioning: registration rejected")

	// ErrMalformedResponse is returned when a response body is not the expected JSON.
	ErrMalformedResponse = errors.New("provisioning: malformed response")

	// ErrUnexpectedStatus is returned when the operation status is neither
	// "assigning" nor "assigned".
	ErrUnexpectedStatus = errors.New("provisioning: unexpected operation status")

	// ErrTimeout is returned when the device is still "assigning" after the
	// retry ceiling.
	ErrTimeout = errors.New("provisioning: assignment timed out")

	// ErrRequestFailed is returned when the HTTP request itself fails.
	ErrRequestFailed = errors.New("provisioning: request failed")
)

// ResponseError carries the raw service response for diagnostics.
type ResponseError struct {
	// Op is "register" or "poll".
	Op string

	// StatusCode is the HTTP status of the response.
	StatusCode int

	// Body is the raw response body.
	Body []byte

	// Err is one of the sentinel errors above.
	Err error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%v (%s, http %d): %s", e.Err, e.Op, e.StatusCode, truncate(e.Body, maxBodyInError))
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

const maxBodyInError = 512

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
