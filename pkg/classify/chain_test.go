package classify

import (
	"context"
	"errors"
	"image"
	"testing"
)

func TestChainFallback(t *testing.T) {
	failing := WithError(errors.New("model missing"))
	failing.MockName = "onnx"
	working := NewMock("cat")
	working.MockName = "cloud"

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	label, err := chain.Classify(context.Background(), image.NewRGBA(image.Rect(0, 0, 1, 1)))
	if err != nil {
		t.Fatalf("Chain classify failed: %v", err)
	}
	if label != "cat" {
		t.Errorf("label = %q, want cat", label)
	}
	if chain.Name() != "chain(onnx,cloud)" {
		t.Errorf("Name = %q", chain.Name())
	}
}

func TestChainAllFail(t *testing.T) {
	p1 := WithError(errors.New("first failed"))
	p2 := WithError(ErrNoLabel)

	chain, _ := NewChain(p1, p2)
	defer chain.Close()

	_, err := chain.Classify(context.Background(), nil)
	if err == nil {
		t.Fatal("Expected error when all classifiers fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
	if !errors.Is(err, ErrNoLabel) {
		t.Error("errors.Is should see every chained error")
	}
}

func TestChainStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	first := &Mock{ClassifyFunc: func(context.Context, image.Image) (string, error) {
		cancel()
		return "", errors.New("interrupted")
	}}
	second := NewMock("never")

	chain, _ := NewChain(first, second)
	_, err := chain.Classify(ctx, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if second.Calls() != 0 {
		t.Error("second classifier should not run after cancel")
	}
}

func TestNewChainEmpty(t *testing.T) {
	if _, err := NewChain(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestChainClose(t *testing.T) {
	a, b := NewMock("a"), NewMock("b")
	chain, _ := NewChain(a, b)
	if err := chain.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.Closed() || !b.Closed() {
		t.Error("every classifier should be closed")
	}
}
