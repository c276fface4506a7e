package orlo

import (
	"errors"
	"fmt"
)

var (
	// ErrReleaseNotFound is returned when the orchestrator has no release for an id.
	ErrReleaseNotFound = errors.New("release not found")
	// ErrNoPackageID is returned when registering a package yields no package id.
	ErrNoPackageID = errors.New("orchestrator returned no package id")
)

// StatusError reports a response outside the 2xx range.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	// Message is the server's error message, when the body carried one.
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s returned %d", e.Method, e.Path, e.StatusCode)
}

// IsStatus reports whether err is a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
