package classify

import (
	"context"
	"image"
	"log/slog"
	"strings"
)

// Chain tries multiple classifiers in order until one succeeds.
type Chain struct {
	classifiers []Classifier
	logger      *slog.Logger
}

// NewChain creates a classifier chain.
// At least one classifier is required.
func NewChain(classifiers ...Classifier) (*Chain, error) {
	if len(classifiers) == 0 {
		return nil, ErrUnavailable
	}
	return &Chain{
		classifiers: classifiers,
		logger:      slog.Default().With("component", "classify.chain"),
	}, nil
}

// Name lists the chained backends.
func (c *Chain) Name() string {
	names := make([]string, len(c.classifiers))
	for i, cl := range c.classifiers {
		names[i] = cl.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Classify tries each classifier until one succeeds.
func (c *Chain) Classify(ctx context.Context, img image.Image) (string, error) {
	var errs []error

	for i, cl := range c.classifiers {
		label, err := cl.Classify(ctx, img)
		if err == nil {
			if i > 0 {
				c.logger.Info("fallback classifier succeeded",
					"classifier", cl.Name(),
					"index", i,
				)
			}
			return label, nil
		}

		errs = append(errs, WrapError(cl.Name(), err))
		c.logger.Warn("classifier failed, trying next",
			"classifier", cl.Name(),
			"index", i,
			"error", err,
		)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	return "", &ChainError{Errors: errs}
}

// Close closes every chained classifier that holds resources.
func (c *Chain) Close() error {
	var first error
	for _, cl := range c.classifiers {
		if closer, ok := cl.(Closer); ok {
			if err := closer.Close(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
