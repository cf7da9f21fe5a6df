package store

import "fmt"

// CacheError wraps a backend failure with the backend name and the
// operation that failed. Cache failures never abort an analysis; callers
// log them and fall through to live fetches.
type CacheError struct {
	Backend string
	Op      string
	Cause   error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("%s cache %s: %v", e.Backend, e.Op, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }

func newCacheError(backend, op string, cause error) error {
	if cause == nil {
		return nil
	}
	return &CacheError{Backend: backend, Op: op, Cause: cause}
}
