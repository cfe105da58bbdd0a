package matcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/utils"
)

const (
	defaultExcerptLength = 500
	defaultTop           = 5
	defaultMaxLogLength  = 200
)

// Loader collects candidate documents for one match.
type Loader interface {
	Load(ctx context.Context, dir string) (*document.Batch, error)
}

type Config struct {
	// MinimumScore rejects a winner scoring below it. Zero disables the check.
	MinimumScore  float64
	ExcerptLength int
	Top           int
	MaxLogLength  int
}

type Deps struct {
	Loader  Loader
	Filters *filtering.Filtering
	Scorer  scoring.Scorer
	Logger  *zap.Logger
}

// Request is a single user-triggered match.
type Request struct {
	Query string
	Dir   string
}

type Service struct {
	cfg     Config
	loader  Loader
	filters *filtering.Filtering
	scorer  scoring.Scorer
	logger  *zap.Logger
}

func New(cfg Config, deps Deps) (*Service, error) {
	if deps.Loader == nil {
		return nil, errors.New("document loader is required")
	}
	if deps.Scorer == nil {
		return nil, errors.New("scorer is required")
	}
	if deps.Filters == nil {
		deps.Filters = filtering.New(nil, deps.Logger)
	}
	if cfg.ExcerptLength <= 0 {
		cfg.ExcerptLength = defaultExcerptLength
	}
	if cfg.Top <= 0 {
		cfg.Top = defaultTop
	}
	if cfg.MaxLogLength <= 0 {
		cfg.MaxLogLength = defaultMaxLogLength
	}

	return &Service{
		cfg:     cfg,
		loader:  deps.Loader,
		filters: deps.Filters,
		scorer:  deps.Scorer,
		logger:  logger.WithFields(deps.Logger),
	}, nil
}

// Match finds the document of req.Dir closest to req.Query.
//
// Errors wrapping scoring.ErrInput mean the match could not start. Errors wrapping
// scoring.ErrNoMatch come with a non-nil Report describing what failed.
func (s *Service) Match(ctx context.Context, req Request) (*Report, error) {
	started := time.Now()

	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: job description is required", scoring.ErrInput)
	}
	if strings.TrimSpace(req.Dir) == "" {
		return nil, fmt.Errorf("%w: documents directory is required", scoring.ErrInput)
	}

	report := &Report{
		MatchID: uuid.NewString(),
		Backend: s.scorer.Name(),
		Query:   utils.TruncateForLog(req.Query, s.cfg.MaxLogLength),
	}
	log := s.logger.With(zap.String(logger.FieldMatchID, report.MatchID))

	log.Info("starting the match",
		zap.String("dir", req.Dir),
		zap.String("query_preview", report.Query),
	)

	batch, err := s.loader.Load(ctx, req.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", scoring.ErrInput, err)
	}
	for _, failure := range batch.Failures {
		report.Warnings = append(report.Warnings, Warning{
			DocumentID: failure.ID,
			Stage:      StageExtraction,
			Error:      failure.Err.Error(),
		})
	}

	batch, steps, err := s.filters.RunFilters(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("filtering documents: %w", err)
	}
	report.Steps = steps
	report.Candidates = batch.Len()

	if batch.Len() == 0 {
		return nil, fmt.Errorf("%w: no candidate documents found in %s", scoring.ErrInput, req.Dir)
	}

	result, err := s.scorer.Score(ctx, req.Query, batch.Documents)
	if result != nil {
		for _, failure := range result.Failures() {
			report.Warnings = append(report.Warnings, Warning{
				DocumentID: failure.ID,
				Stage:      StageScoring,
				Error:      failure.Err.Error(),
			})
		}
		for _, ranked := range result.Ranking(s.cfg.Top) {
			report.Ranking = append(report.Ranking, RankedDocument{ID: ranked.ID, Score: ranked.Score})
		}
	}
	report.Duration = time.Since(started)

	if err != nil {
		if errors.Is(err, scoring.ErrNoMatch) {
			return report, err
		}
		return nil, fmt.Errorf("scoring documents: %w", err)
	}

	best, _ := result.Best()
	report.BestID = best.ID
	report.Score = best.Score

	if s.cfg.MinimumScore > 0 && best.Score < s.cfg.MinimumScore {
		log.Info("best candidate is below the minimum score",
			zap.String(logger.FieldDocument, best.ID),
			zap.Float64("score", best.Score),
			zap.Float64("minimum_score", s.cfg.MinimumScore),
		)
		return report, fmt.Errorf("%w: best score %.4f is below minimum %.4f", scoring.ErrNoMatch, best.Score, s.cfg.MinimumScore)
	}

	if doc := batch.FindByID(best.ID); doc != nil {
		report.Excerpt = utils.Excerpt(doc.Text, s.cfg.ExcerptLength)
	}

	log.Info("match completed",
		zap.String(logger.FieldDocument, report.BestID),
		zap.Float64("score", report.Score),
		zap.Int("candidates", report.Candidates),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Duration),
	)

	return report, nil
}
