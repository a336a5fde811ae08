// Package classify defines the optional one-shot image classifier used by
// the rover.
//
// The control loop depends only on the Classifier interface. Concrete
// backends live in subpackages (onnx, cloud) so the loop never links
// model-loading code it does not use.
//
// Example usage:
//
//	opt := classify.Absent()
//	if path != "" {
//	    c, err := onnx.New(onnx.Config{ModelPath: path, LabelsPath: labels})
//	    if err == nil {
//	        opt = classify.Present(c)
//	    }
//	}
//	label, err := opt.Classify(ctx, img)
package classify

import (
	"context"
	"image"
	"reflect"
)

// Classifier labels a whole image. Calls may be slow.
type Classifier interface {
	// Classify returns the best label for img.
	Classify(ctx context.Context, img image.Image) (string, error)

	// Name identifies the backend in logs.
	Name() string
}

// Closer is implemented by classifiers that hold native resources.
type Closer interface {
	Close() error
}

// Optional is either Absent or Present(classifier).
type Optional struct {
	c Classifier
}

// Absent returns the variant with no classifier.
func Absent() Optional {
	return Optional{}
}

// Present wraps a classifier. A nil classifier, including a typed nil
// pointer, yields Absent.
func Present(c Classifier) Optional {
	if isNil(c) {
		return Absent()
	}
	return Optional{c: c}
}

func isNil(c Classifier) bool {
	if c == nil {
		return true
	}
	v := reflect.ValueOf(c)
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// Available reports whether a classifier is present.
func (o Optional) Available() bool {
	return o.c != nil
}

// Name returns the backend name, or "absent".
func (o Optional) Name() string {
	if o.c == nil {
		return "absent"
	}
	return o.c.Name()
}

// Classify delegates to the wrapped classifier. Absent returns ErrUnavailable.
func (o Optional) Classify(ctx context.Context, img image.Image) (string, error) {
	if o.c == nil {
		return "", ErrUnavailable
	}
	label, err := o.c.Classify(ctx, img)
	if err != nil {
		return "", WrapError(o.c.Name(), err)
	}
	return label, nil
}

// Close releases the wrapped classifier's resources, if any.
func (o Optional) Close() error {
	if cl, ok := o.c.(Closer); ok {
		return cl.Close()
	}
	return nil
}
