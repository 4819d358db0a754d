package cache

import "fmt"

// CacheIOError records a failed operation on the backing store. Reads never
// surface it; writes and Clear return it so callers can log it.
type CacheIOError struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *CacheIOError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CacheIOError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
