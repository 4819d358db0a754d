package nova

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn is returned by calls that need a session before Login succeeded.
var ErrNotLoggedIn = errors.New("not logged in")

// AuthError reports a failed login.
type AuthError struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("login failed: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("login failed: status %d", e.StatusCode)
	case e.Message != "":
		return fmt.Sprintf("login failed: %s", e.Message)
	default:
		return "login failed"
	}
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AuthError) Unwrap() error {
	return e.Err
}

// UploadError reports a failed image upload.
type UploadError struct {
	Path    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("upload %s: %s", e.Path, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *UploadError) Unwrap() error {
	return e.Err
}

// TransportError reports a network or protocol failure on a read call.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: returned status %d", e.Op, e.StatusCode)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// statusError is produced by the request helpers for non-2xx responses.
type statusError struct {
	path string
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api %s returned status %d", e.path, e.code)
}

func statusCode(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
