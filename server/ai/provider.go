package ai

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/pkg/errors"
	openai "github.com/sashabaranov/go-openai"

	"github.com/openparl/hansardsearch/internal/profile"
	apperr "github.com/openparl/hansardsearch/server/internal/errors"
)

// EmbeddingService turns passage texts into fixed-length vectors. One vector
// is returned per input text, in input order.
type EmbeddingService interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Config holds the embedding provider configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Dim     int
	Retry   RetryPolicy
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		BaseURL: "https://api.openai.com/v1",
		Model:   "text-embedding-3-small",
		Dim:     768,
		Retry:   DefaultRetryPolicy(),
		Timeout: 30 * time.Second,
	}
}

// ConfigFromProfile builds a provider config from the process profile.
func ConfigFromProfile(p *profile.Profile) *Config {
	cfg := DefaultConfig()
	if p.EmbeddingBaseURL != "" {
		cfg.BaseURL = p.EmbeddingBaseURL
	}
	cfg.APIKey = p.EmbeddingAPIKey
	if p.EmbeddingModel != "" {
		cfg.Model = p.EmbeddingModel
	}
	if p.EmbeddingDim > 0 {
		cfg.Dim = p.EmbeddingDim
	}
	return cfg
}

// Provider is an EmbeddingService backed by an OpenAI-compatible endpoint.
type Provider struct {
	client *openai.Client
	config *Config
}

// NewProvider creates a new embedding provider.
func NewProvider(cfg *Config) (*Provider, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 768
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	client := openai.NewClientWithConfig(clientConfig)

	return &Provider{
		client: client,
		config: cfg,
	}, nil
}

// Dimension returns the fixed embedding dimensionality.
func (p *Provider) Dimension() int {
	return p.config.Dim
}

// Embed generates one embedding per text, in input order. All texts go out in
// a single batched API call. Empty input texts are rejected without calling
// the service.
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperr.InvalidArgument("texts", "must not be empty")
	}
	for i, text := range texts {
		if text == "" {
			return nil, apperr.PermanentService(
				errors.Errorf("text %d is empty", i).Error(), nil)
		}
	}

	var result [][]float32
	err := p.config.Retry.Do(ctx, func() error {
		req := openai.EmbeddingRequest{
			Input:      texts,
			Model:      openai.EmbeddingModel(p.config.Model),
			Dimensions: p.config.Dim,
		}
		resp, err := p.client.CreateEmbeddings(ctx, req)
		if err != nil {
			return classifyServiceError(err)
		}
		if len(resp.Data) != len(texts) {
			return apperr.TransientService("embedding response length mismatch", nil)
		}
		// The API may return data out of order; Index restores input order.
		vectors := make([][]float32, len(texts))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(vectors) {
				return apperr.TransientService("embedding response index out of range", nil)
			}
			vectors[d.Index] = d.Embedding
		}
		for i, v := range vectors {
			if len(v) != p.config.Dim {
				return apperr.PermanentService(
					errors.Errorf("embedding %d has dimension %d, want %d", i, len(v), p.config.Dim).Error(), nil)
			}
		}
		result = vectors
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("embeddings generated", "count", len(result), "model", p.config.Model)
	return result, nil
}

// classifyServiceError splits embedding service failures into transient
// (retryable) and permanent (caller bug) kinds. Rate limits, 5xx responses
// and network errors are transient; every other API rejection is permanent.
func classifyServiceError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500 {
			return apperr.TransientService("embedding service unavailable", err)
		}
		return apperr.PermanentService("embedding service rejected input", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.TransientService("embedding service network error", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	// Unknown failure shape: assume transient so a flaky proxy does not turn
	// into a hard failure.
	return apperr.TransientService("embedding request failed", err)
}
