package classify

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	// ErrUnavailable is returned when no classifier is configured.
	ErrUnavailable = errors.New("classify: classifier unavailable")

	// ErrNoLabel is returned when a backend produced no usable label.
	ErrNoLabel = errors.New("classify: no label")

	// ErrEmptyImage is returned for images with no pixels.
	ErrEmptyImage = errors.New("classify: empty image")
)

// ClassifierError wraps an error with backend context.
type ClassifierError struct {
	Backend string
	Err     error
}

// Error implements the error interface.
func (e *ClassifierError) Error() string {
	return fmt.Sprintf("classify [%s]: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying error.
func (e *ClassifierError) Unwrap() error {
	return e.Err
}

// WrapError wraps an error with backend context. Errors that already carry
// backend context are returned unchanged.
func WrapError(backend string, err error) error {
	if err == nil {
		return nil
	}
	var ce *ClassifierError
	if errors.As(err, &ce) {
		return err
	}
	return &ClassifierError{Backend: backend, Err: err}
}

// ChainError aggregates errors from all classifiers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "classify chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("classify chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("classify chain: all %d classifiers failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns every recorded error so errors.Is sees all of them.
func (e *ChainError) Unwrap() []error {
	return e.Errors
}
