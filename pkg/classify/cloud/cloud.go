// Package cloud classifies images with the Google Cloud Vision label
// detection API.
package cloud

import (
	"context"
	"fmt"
	"image"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	vision "google.golang.org/api/vision/v1"

	"github.com/teslashibe/go-rover/internal/httpc"
	"github.com/teslashibe/go-rover/internal/log"
	"github.com/teslashibe/go-rover/pkg/classify"
)

// Config holds Cloud Vision settings.
type Config struct {
	APIKey   string        // API key; when empty, Application Default Credentials are used
	Endpoint string        // Override for tests
	MinScore float64       // Labels scoring below this are ignored
	Timeout  time.Duration // Per-request timeout
	// HTTPClient overrides the transport. When set, APIKey and ADC are not consulted.
	HTTPClient *http.Client
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MinScore: 0.5,
		Timeout:  10 * time.Second,
	}
}

// Classifier calls images:annotate with LABEL_DETECTION.
type Classifier struct {
	svc    *vision.Service
	config Config
}

// New creates the Vision service.
func New(ctx context.Context, cfg Config) (*Classifier, error) {
	var opts []option.ClientOption
	switch {
	case cfg.HTTPClient != nil:
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	case cfg.APIKey != "":
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	default:
		ts, err := google.DefaultTokenSource(ctx, vision.CloudVisionScope)
		if err != nil {
			return nil, fmt.Errorf("application default credentials: %w: %v", classify.ErrUnavailable, err)
		}
		base := context.WithValue(ctx, oauth2.HTTPClient, httpc.NewClient(cfg.Timeout))
		opts = append(opts, option.WithHTTPClient(oauth2.NewClient(base, ts)))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := vision.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision service: %w", err)
	}

	log.Info("cloud vision classifier ready", "api_key", cfg.APIKey != "")
	return &Classifier{svc: svc, config: cfg}, nil
}

// Name implements classify.Classifier.
func (c *Classifier) Name() string { return "cloud-vision" }

// Classify returns the highest-scoring label.
func (c *Classifier) Classify(ctx context.Context, img image.Image) (string, error) {
	content, err := classify.EncodeImageBase64(img)
	if err != nil {
		return "", err
	}

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := &vision.BatchAnnotateImagesRequest{
		Requests: []*vision.AnnotateImageRequest{{
			Image:    &vision.Image{Content: content},
			Features: []*vision.Feature{{Type: "LABEL_DETECTION", MaxResults: 5}},
		}},
	}

	start := time.Now()
	resp, err := c.svc.Images.Annotate(req).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("annotate: %w", err)
	}
	log.Debug("cloud vision annotate", "latency_ms", time.Since(start).Milliseconds())

	return bestLabel(resp, c.config.MinScore)
}

func bestLabel(resp *vision.BatchAnnotateImagesResponse, minScore float64) (string, error) {
	if resp == nil || len(resp.Responses) == 0 {
		return "", classify.ErrNoLabel
	}
	r := resp.Responses[0]
	if r.Error != nil {
		return "", fmt.Errorf("vision error %d: %s", r.Error.Code, r.Error.Message)
	}

	best, score := "", -1.0
	for _, l := range r.LabelAnnotations {
		if l.Score >= minScore && l.Score > score {
			best, score = l.Description, l.Score
		}
	}
	if best == "" {
		return "", classify.ErrNoLabel
	}
	return best, nil
}

var _ classify.Classifier = (*Classifier)(nil)
