package scoring

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/cv-matcher/internal/document"
)

const (
	defaultConcurrency = 4
	defaultTimeout     = 30 * time.Second
	defaultBackoff     = 500 * time.Millisecond
)

// Client is the pluggable remote similarity contract: one query and one candidate text per call.
type Client interface {
	Similarity(ctx context.Context, query, text string) (float64, error)
}

// RemoteConfig controls the fan-out and failure policy of RemoteScorer.
type RemoteConfig struct {
	Concurrency int
	// Timeout bounds a single remote call. A timed-out call fails only its candidate.
	Timeout time.Duration
	// MaxRetries applies to errors wrapping ErrTransient.
	MaxRetries int
	Backoff    time.Duration
}

// RemoteScorer submits every candidate to a remote Client and keeps the best score.
type RemoteScorer struct {
	name   string
	client Client
	cfg    RemoteConfig
	logger *zap.Logger
}

func NewRemote(name string, client Client, cfg RemoteConfig, logger *zap.Logger) (*RemoteScorer, error) {
	if client == nil {
		return nil, errors.New("remote similarity client is required")
	}
	if strings.TrimSpace(name) == "" {
		name = "remote"
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RemoteScorer{name: name, client: client, cfg: cfg, logger: logger}, nil
}

func (s *RemoteScorer) Name() string { return s.name }

// Score evaluates candidates concurrently. Failed candidates are recorded and skipped.
// When no candidate with text is scored, the returned Result is still populated and the error wraps ErrNoMatch.
func (s *RemoteScorer) Score(ctx context.Context, query string, candidates []document.Document) (*Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates to score", ErrInput)
	}

	scores := make([]CandidateScore, len(candidates))

	if strings.TrimSpace(query) == "" {
		s.logger.Warn("empty query, every candidate scores zero")
		for i, c := range candidates {
			scores[i] = CandidateScore{Index: i, ID: c.ID}
		}
		return newResult(scores), nil
	}

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)

	for i, c := range candidates {
		g.Go(func() error {
			scores[i] = s.scoreOne(ctx, i, query, c)
			return nil
		})
	}
	_ = g.Wait()

	result := newResult(scores)
	failed := len(result.Failures())

	// Empty-text candidates get a zero score without a remote call; they cannot win alone.
	evaluated := 0
	for i, c := range candidates {
		if scores[i].Err == nil && strings.TrimSpace(c.Text) != "" {
			evaluated++
		}
	}

	s.logger.Debug("remote scoring completed",
		zap.Int("candidates", len(candidates)),
		zap.Int("evaluated", evaluated),
		zap.Int("failed", failed),
	)

	if result.BestIndex < 0 || evaluated == 0 {
		return result, fmt.Errorf("%w: no candidate with text was scored, %d failed", ErrNoMatch, failed)
	}

	return result, nil
}

func (s *RemoteScorer) scoreOne(ctx context.Context, idx int, query string, c document.Document) CandidateScore {
	if strings.TrimSpace(c.Text) == "" {
		s.logger.Debug("candidate has empty text, scoring zero", zap.String("document_id", c.ID))
		return CandidateScore{Index: idx, ID: c.ID}
	}

	var score float64
	attempt := 0

	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries), retry.NewExponential(s.cfg.Backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		v, err := s.client.Similarity(callCtx, query, c.Text)
		if err != nil {
			if errors.Is(err, ErrTransient) && ctx.Err() == nil {
				s.logger.Debug("transient remote failure, retrying",
					zap.String("document_id", c.ID),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				return retry.RetryableError(err)
			}
			return err
		}

		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: remote score is not a number", ErrComputation)
		}

		score = v
		return nil
	})
	if err != nil {
		s.logger.Warn("candidate skipped",
			zap.String("document_id", c.ID),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return CandidateScore{
			Index: idx,
			ID:    c.ID,
			Err:   &CandidateError{Index: idx, ID: c.ID, Err: err},
		}
	}

	return CandidateScore{Index: idx, ID: c.ID, Score: score}
}
