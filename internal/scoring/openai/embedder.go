package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/scoring"
)

const defaultModel = string(openai.SmallEmbedding3)

// Embedder scores a candidate by the cosine of the query and candidate embeddings
// returned by an OpenAI-compatible API.
type Embedder struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	logger     *zap.Logger
}

// Config holds the embedding provider settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
}

func NewEmbedder(cfg Config, logger *zap.Logger) (*Embedder, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      openai.EmbeddingModel(model),
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

func (e *Embedder) Model() string {
	return string(e.model)
}

// Similarity implements scoring.Client. Both texts are embedded in a single request.
func (e *Embedder) Similarity(ctx context.Context, query, text string) (float64, error) {
	req := openai.EmbeddingRequest{
		Input:          []string{query, text},
		Model:          e.model,
		EncodingFormat: openai.EmbeddingEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		req.Dimensions = e.dimensions
	}

	resp, err := e.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return 0, classifyError(err)
	}

	if len(resp.Data) != 2 {
		return 0, fmt.Errorf("expected 2 embeddings, got %d", len(resp.Data))
	}

	data := resp.Data
	sort.Slice(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	e.logger.Debug("embeddings created",
		zap.Int("dimensions", len(data[0].Embedding)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return scoring.Cosine32(data[0].Embedding, data[1].Embedding)
}

// classifyError wraps rate limits and server errors with scoring.ErrTransient.
func classifyError(err error) error {
	status := 0

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: create embeddings: %w", scoring.ErrTransient, err)
	}
	return fmt.Errorf("create embeddings: %w", err)
}
