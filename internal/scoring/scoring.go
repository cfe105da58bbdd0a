// Package scoring ranks candidate documents against a job description.
//
// Two backends implement Scorer: LocalTfidfScorer vectorizes the query and the
// candidates with TF-IDF over a vocabulary built for the single call, and
// RemoteScorer asks an external service for a similarity score per candidate.
// Neither keeps state between calls.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spigell/cv-matcher/internal/document"
)

var (
	// ErrInput is returned when the operation cannot start: no candidates or no query.
	ErrInput = errors.New("insufficient input")
	// ErrNoMatch is returned when every candidate failed to score.
	ErrNoMatch = errors.New("no suitable match found")
	// ErrComputation reports an unexpected numeric failure.
	ErrComputation = errors.New("similarity computation failed")
	// ErrTransient marks remote failures worth retrying.
	ErrTransient = errors.New("transient failure")
)

// Scorer ranks candidates against a query.
type Scorer interface {
	Name() string
	Score(ctx context.Context, query string, candidates []document.Document) (*Result, error)
}

// CandidateError records a candidate that was skipped during scoring.
type CandidateError struct {
	Index int
	ID    string
	Err   error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("candidate %s: %v", e.ID, e.Err)
}

func (e *CandidateError) Unwrap() error {
	return e.Err
}

// CandidateScore is the outcome for one candidate. Err is set when the candidate was skipped.
type CandidateScore struct {
	Index int
	ID    string
	Score float64
	Err   *CandidateError
}

func (c CandidateScore) Failed() bool {
	return c.Err != nil
}

// Result holds every candidate score in input order.
type Result struct {
	Scores []CandidateScore
	// BestIndex is the position of the winner in Scores, or -1 when nothing scored.
	BestIndex int
}

// Best returns the winning candidate.
func (r *Result) Best() (CandidateScore, bool) {
	if r == nil || r.BestIndex < 0 || r.BestIndex >= len(r.Scores) {
		return CandidateScore{}, false
	}
	return r.Scores[r.BestIndex], true
}

func (r *Result) Failures() []*CandidateError {
	var failures []*CandidateError
	for _, s := range r.Scores {
		if s.Failed() {
			failures = append(failures, s.Err)
		}
	}
	return failures
}

// Ranking returns up to limit scored candidates ordered by score, earlier position first on ties.
// A non-positive limit returns all of them.
func (r *Result) Ranking(limit int) []CandidateScore {
	ranked := make([]CandidateScore, 0, len(r.Scores))
	for _, s := range r.Scores {
		if !s.Failed() {
			ranked = append(ranked, s)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// newResult picks the winner: the maximum score, first occurrence on ties.
func newResult(scores []CandidateScore) *Result {
	best := -1
	for i, s := range scores {
		if s.Failed() {
			continue
		}
		if best == -1 || s.Score > scores[best].Score {
			best = i
		}
	}
	return &Result{Scores: scores, BestIndex: best}
}
