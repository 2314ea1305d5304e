package debrid

import (
	"errors"
	"fmt"
)

// Provider error codes carried in Real-Debrid response bodies. The API
// signals operational conditions through these numeric codes, not HTTP
// status alone, so they are parsed once here and handled as control flow
// by the submission worker.
const (
	// CodeCapacityExceeded means the account's active-torrent limit is
	// reached. Remediation: clear active torrents, then retry once.
	CodeCapacityExceeded = 21

	// CodeRateLimited means the account-wide rate limit tripped.
	// Remediation: cool down and retry until it clears.
	CodeRateLimited = 34
)

// ErrorKind is the closed classification of provider errors.
type ErrorKind string

const (
	// KindCapacityExceeded maps code 21.
	KindCapacityExceeded ErrorKind = "capacity_exceeded"

	// KindRateLimited maps code 34.
	KindRateLimited ErrorKind = "rate_limited"

	// KindOther covers every unrecognized code.
	KindOther ErrorKind = "other"
)

// ErrNoTorrentID is returned when addMagnet succeeds at the HTTP level
// but the response carries neither a torrent id nor a recognized error
// code. Such submissions are permanent failures.
var ErrNoTorrentID = errors.New("no torrent id in response")

// APIError is a Real-Debrid provider error.
type APIError struct {
	Code       int
	Message    string
	HTTPStatus int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("real-debrid %s error (code %d, http %d): %s",
		e.Kind(), e.Code, e.HTTPStatus, e.Message)
}

// Kind classifies the provider code.
func (e *APIError) Kind() ErrorKind {
	switch e.Code {
	case CodeCapacityExceeded:
		return KindCapacityExceeded
	case CodeRateLimited:
		return KindRateLimited
	default:
		return KindOther
	}
}

// IsCapacityExceeded reports whether err is a code-21 provider error.
func IsCapacityExceeded(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindCapacityExceeded
}

// IsRateLimited reports whether err is a code-34 provider error.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind() == KindRateLimited
}
