package classify

import (
	"context"
	"image"
	"sync"
)

// Mock implements Classifier for testing.
type Mock struct {
	// ClassifyFunc is called when Classify is invoked.
	ClassifyFunc func(ctx context.Context, img image.Image) (string, error)

	// MockName is returned by Name; "mock" when empty.
	MockName string

	mu     sync.Mutex
	calls  int
	closed bool
}

// NewMock returns a mock that always answers label.
func NewMock(label string) *Mock {
	return &Mock{
		ClassifyFunc: func(context.Context, image.Image) (string, error) {
			return label, nil
		},
	}
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ClassifyFunc: func(context.Context, image.Image) (string, error) {
			return "", err
		},
	}
}

// Name implements Classifier.
func (m *Mock) Name() string {
	if m.MockName != "" {
		return m.MockName
	}
	return "mock"
}

// Classify calls ClassifyFunc and counts the call.
func (m *Mock) Classify(ctx context.Context, img image.Image) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.ClassifyFunc != nil {
		return m.ClassifyFunc(ctx, img)
	}
	return "", ErrNoLabel
}

// Calls returns how many times Classify ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *Mock) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
