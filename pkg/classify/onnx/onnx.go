// Package onnx classifies images with an ONNX network through OpenCV's DNN
// module.
package onnx

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"io"
	"math"
	"os"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/classify"
)

// Config holds classifier configuration
type Config struct {
	ModelPath     string  // Path to ONNX model
	LabelsPath    string  // One class name per line, index-aligned with the output
	InputWidth    int     // Model input width
	InputHeight   int     // Model input height
	Scale         float64 // Pixel scale applied before inference
	SwapRB        bool    // Feed RGB instead of OpenCV's BGR
	MinConfidence float64 // Softmax probability below which no label is returned
}

// DefaultConfig returns defaults for a 224x224 ImageNet-style classifier.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/classifier.onnx",
		LabelsPath:    "models/labels.txt",
		InputWidth:    224,
		InputHeight:   224,
		Scale:         1.0 / 255.0,
		SwapRB:        true,
		MinConfidence: 0.2,
	}
}

// Classifier runs a single-output classification network.
type Classifier struct {
	net    gocv.Net
	labels []string
	config Config
	mu     sync.Mutex
}

// New loads the model and labels.
func New(cfg Config) (*Classifier, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s: %w", cfg.ModelPath, classify.ErrUnavailable)
	}

	f, err := os.Open(cfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("open labels: %w", err)
	}
	defer f.Close()
	labels, err := ParseLabels(f)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s: %w", cfg.ModelPath, classify.ErrUnavailable)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	log.Info("onnx classifier loaded", "model", cfg.ModelPath, "classes", len(labels))

	return &Classifier{net: net, labels: labels, config: cfg}, nil
}

// Name implements classify.Classifier.
func (c *Classifier) Name() string { return "onnx" }

// Classify runs one forward pass and returns the top class.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (string, error) {
	if img == nil || img.Bounds().Empty() {
		return "", classify.ErrEmptyImage
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return "", fmt.Errorf("convert image: %w", err)
	}
	defer mat.Close()

	size := image.Pt(c.config.InputWidth, c.config.InputHeight)
	blob := gocv.BlobFromImage(mat, c.config.Scale, size, gocv.NewScalar(0, 0, 0, 0), c.config.SwapRB, false)
	defer blob.Close()

	c.net.SetInput(blob, "")
	output := c.net.Forward("")
	defer output.Close()

	scores, err := output.DataPtrFloat32()
	if err != nil {
		return "", fmt.Errorf("read output: %w", err)
	}

	idx, p := Top(scores)
	if idx < 0 || idx >= len(c.labels) {
		return "", fmt.Errorf("%w: class index %d outside %d labels", classify.ErrNoLabel, idx, len(c.labels))
	}
	if p < c.config.MinConfidence {
		return "", fmt.Errorf("%w: best %q at %.2f", classify.ErrNoLabel, c.labels[idx], p)
	}
	return c.labels[idx], nil
}

// Close releases the network.
func (c *Classifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.net.Close()
}

// ParseLabels reads one label per line. Blank lines keep their index.
func ParseLabels(r io.Reader) ([]string, error) {
	var labels []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		labels = append(labels, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read labels: %w", err)
	}
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("read labels: %w", classify.ErrNoLabel)
	}
	return labels, nil
}

// Top returns the index of the largest logit and its softmax probability.
// It returns -1 for empty input.
func Top(logits []float32) (int, float64) {
	if len(logits) == 0 {
		return -1, 0
	}
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	maxLogit := float64(logits[best])
	var sum float64
	for _, v := range logits {
		sum += math.Exp(float64(v) - maxLogit)
	}
	return best, 1 / sum
}

var _ classify.Classifier = (*Classifier)(nil)
