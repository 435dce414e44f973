package bitbucket

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized is matched by upstream errors caused by rejected credentials
	ErrUnauthorized = errors.New("bitbucket rejected the credentials")

	// ErrPageLimit is matched when a role listing exceeds the configured page limit
	ErrPageLimit = errors.New("too many result pages")
)

// Error codes carried by UpstreamError
const (
	CodeTransport = "transport"
	CodeTimeout   = "timeout"
	CodeStatus    = "status"
	CodeDecode    = "decode"
	CodePageLimit = "page_limit"
)

// UpstreamError describes a failed call to the Bitbucket API
type UpstreamError struct {
	Op         string
	Role       Role
	StatusCode int
	Code       string
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("bitbucket %s", e.Op)
	if e.Role != "" {
		msg += fmt.Sprintf(" (role=%s)", e.Role)
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrUnauthorized on 401 and 403 responses
func (e *UpstreamError) Is(target error) bool {
	if target == ErrUnauthorized {
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	}
	return false
}
