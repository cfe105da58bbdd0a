package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/scoring"
)

const (
	contentType     = "application/json"
	contentEncoding = "gzip"
	userAgent       = "spigell/cv-matcher"

	defaultQueryField     = "query"
	defaultCandidateField = "candidateText"
	defaultScoreField     = "similarityScore"
)

// Config describes the remote similarity endpoint. Field names are configurable
// since the payload contract belongs to the remote service.
type Config struct {
	Endpoint       string
	Token          string
	QueryField     string
	CandidateField string
	// ScoreField may be a dotted path into the response object, e.g. "result.score".
	ScoreField string
}

type Client struct {
	endpoint       string
	token          string
	queryField     string
	candidateField string
	scoreField     string
	logger         *zap.Logger
	HTTPClient     *http.Client
	UserAgent      string
}

func New(cfg Config, logger *zap.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, errors.New("similarity api endpoint is required")
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("invalid similarity api endpoint: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		endpoint:       endpoint,
		token:          strings.TrimSpace(cfg.Token),
		queryField:     orDefault(cfg.QueryField, defaultQueryField),
		candidateField: orDefault(cfg.CandidateField, defaultCandidateField),
		scoreField:     orDefault(cfg.ScoreField, defaultScoreField),
		logger:         logger,
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		UserAgent: userAgent,
	}, nil
}

// Similarity posts the query and candidate text and returns the score from the response.
// Network failures, 429 and 5xx responses wrap scoring.ErrTransient.
func (c *Client) Similarity(ctx context.Context, query, text string) (float64, error) {
	payload, err := json.Marshal(map[string]string{
		c.queryField:     query,
		c.candidateField: text,
	})
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	req = c.setHeaders(req)

	c.logger.Debug("make request", zap.String("url", c.endpoint), zap.Int("payload_bytes", len(payload)))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, err
		}
		return 0, fmt.Errorf("%w: %w", scoring.ErrTransient, err)
	}
	defer resp.Body.Close()

	data, err := readBody(resp)
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("bad status: %s", resp.Status)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return 0, fmt.Errorf("%w: %w", scoring.ErrTransient, statusErr)
		}
		return 0, statusErr
	}

	var body map[string]any
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}

	raw, ok := lookup(body, c.scoreField)
	if !ok {
		return 0, fmt.Errorf("response has no %q field", c.scoreField)
	}

	var score float64
	if err := mapstructure.WeakDecode(raw, &score); err != nil {
		return 0, fmt.Errorf("decode %q: %w", c.scoreField, err)
	}

	return score, nil
}

func (c *Client) setHeaders(req *http.Request) *http.Request {
	if c.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", contentType)
	req.Header.Set("Accept-Encoding", contentEncoding)

	return req
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		reader = gz
	}

	return io.ReadAll(reader)
}

// lookup follows a dotted path through nested JSON objects.
func lookup(body map[string]any, path string) (any, bool) {
	var current any = body
	for _, key := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[key]
		if !ok {
			return nil, false
		}
	}
	return current, current != nil
}

func orDefault(value, fallback string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return fallback
}
