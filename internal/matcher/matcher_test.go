package matcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/scoring"
)

type staticLoader struct {
	batch *document.Batch
	err   error
}

func (l *staticLoader) Load(_ context.Context, _ string) (*document.Batch, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.batch, nil
}

type stubClient struct {
	scores map[string]float64
	fail   map[string]bool
}

func (c *stubClient) Similarity(_ context.Context, _ string, text string) (float64, error) {
	if c.fail[text] {
		return 0, errors.New("backend rejected the document")
	}
	return c.scores[text], nil
}

func resumes() *document.Batch {
	return &document.Batch{Documents: []document.Document{
		{ID: "A.pdf", Text: "Senior backend engineer, distributed systems, Go, Kubernetes."},
		{ID: "B.pdf", Text: "Pastry chef with ten years of bakery experience."},
	}}
}

func newService(t *testing.T, cfg Config, loader Loader, scorer scoring.Scorer, filters *filtering.Filtering) *Service {
	t.Helper()

	s, err := New(cfg, Deps{Loader: loader, Scorer: scorer, Filters: filters})
	require.NoError(t, err)
	return s
}

func TestMatchPicksBestResume(t *testing.T) {
	s := newService(t, Config{ExcerptLength: 20}, &staticLoader{batch: resumes()}, scoring.NewLocalTfidf(nil), nil)

	report, err := s.Match(context.Background(), Request{Query: "senior backend engineer distributed systems", Dir: "resumes"})
	require.NoError(t, err)

	assert.Equal(t, "A.pdf", report.BestID)
	assert.Greater(t, report.Score, 0.0)
	assert.LessOrEqual(t, report.Score, 1.0)
	assert.Equal(t, scoring.BackendTfidf, report.Backend)
	assert.Equal(t, 2, report.Candidates)
	assert.NotEmpty(t, report.MatchID)
	assert.LessOrEqual(t, len([]rune(report.Excerpt)), 23)
	assert.True(t, strings.HasPrefix(report.Excerpt, "Senior backend"))

	require.Len(t, report.Ranking, 2)
	assert.Equal(t, "A.pdf", report.Ranking[0].ID)
	assert.Equal(t, 0.0, report.Ranking[1].Score)
}

func TestMatchRejectsBlankInput(t *testing.T) {
	s := newService(t, Config{}, &staticLoader{batch: resumes()}, scoring.NewLocalTfidf(nil), nil)

	for name, req := range map[string]Request{
		"query": {Query: "  ", Dir: "resumes"},
		"dir":   {Query: "go engineer", Dir: ""},
	} {
		t.Run(name, func(t *testing.T) {
			report, err := s.Match(context.Background(), req)
			require.ErrorIs(t, err, scoring.ErrInput)
			assert.Nil(t, report)
		})
	}
}

func TestMatchLoaderErrorIsInputError(t *testing.T) {
	s := newService(t, Config{}, &staticLoader{err: os.ErrNotExist}, scoring.NewLocalTfidf(nil), nil)

	_, err := s.Match(context.Background(), Request{Query: "go", Dir: "missing"})
	require.ErrorIs(t, err, scoring.ErrInput)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMatchWithoutCandidates(t *testing.T) {
	s := newService(t, Config{}, &staticLoader{batch: &document.Batch{}}, scoring.NewLocalTfidf(nil), nil)

	_, err := s.Match(context.Background(), Request{Query: "go", Dir: "empty"})
	require.ErrorIs(t, err, scoring.ErrInput)
}

func TestMatchAllCandidatesExcluded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	for _, id := range []string{"A.pdf", "B.pdf"} {
		require.NoError(t, filtering.AppendToFile(path, &filtering.ExcludedDocument{ID: id}))
	}

	filters := filtering.New([]filtering.Filter{filtering.NewExcludeFile(path, nil)}, nil)
	s := newService(t, Config{}, &staticLoader{batch: resumes()}, scoring.NewLocalTfidf(nil), filters)

	_, err := s.Match(context.Background(), Request{Query: "go", Dir: "resumes"})
	require.ErrorIs(t, err, scoring.ErrInput)
}

func TestMatchReportsFilterSteps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	require.NoError(t, filtering.AppendToFile(path, &filtering.ExcludedDocument{ID: "A.pdf"}))

	filters := filtering.New([]filtering.Filter{filtering.NewExcludeFile(path, nil)}, nil)
	s := newService(t, Config{}, &staticLoader{batch: resumes()}, scoring.NewLocalTfidf(nil), filters)

	report, err := s.Match(context.Background(), Request{Query: "bakery pastry", Dir: "resumes"})
	require.NoError(t, err)

	assert.Equal(t, "B.pdf", report.BestID)
	require.Len(t, report.Steps, 1)
	assert.Equal(t, 1, report.Steps[0].Dropped)
}

func TestMatchBelowMinimumScore(t *testing.T) {
	s := newService(t, Config{MinimumScore: 0.99}, &staticLoader{batch: resumes()}, scoring.NewLocalTfidf(nil), nil)

	report, err := s.Match(context.Background(), Request{Query: "golang kubernetes", Dir: "resumes"})
	require.ErrorIs(t, err, scoring.ErrNoMatch)
	require.NotNil(t, report)
	assert.Equal(t, "A.pdf", report.BestID)
	assert.Empty(t, report.Excerpt)
}

func TestMatchSurfacesWarnings(t *testing.T) {
	batch := resumes()
	batch.Documents = append(batch.Documents, document.Document{ID: "C.pdf"})
	batch.Failures = []*document.ExtractionError{{ID: "C.pdf", Path: "resumes/C.pdf", Err: errors.New("encrypted pdf")}}

	client := &stubClient{
		scores: map[string]float64{batch.Documents[0].Text: 0.4},
		fail:   map[string]bool{batch.Documents[1].Text: true},
	}
	remote, err := scoring.NewRemote("stub", client, scoring.RemoteConfig{MaxRetries: 0}, nil)
	require.NoError(t, err)

	s := newService(t, Config{}, &staticLoader{batch: batch}, remote, nil)

	report, err := s.Match(context.Background(), Request{Query: "backend", Dir: "resumes"})
	require.NoError(t, err)

	assert.Equal(t, "A.pdf", report.BestID)
	assert.InDelta(t, 0.4, report.Score, 1e-12)
	assert.Equal(t, "40.00%", report.ScorePercent())

	extraction := report.WarningsFor(StageExtraction)
	require.Len(t, extraction, 1)
	assert.Equal(t, "C.pdf", extraction[0].DocumentID)

	scoringWarnings := report.WarningsFor(StageScoring)
	require.Len(t, scoringWarnings, 1)
	assert.Equal(t, "B.pdf", scoringWarnings[0].DocumentID)
}

func TestMatchAllRemoteFailuresReturnReport(t *testing.T) {
	batch := resumes()
	client := &stubClient{fail: map[string]bool{
		batch.Documents[0].Text: true,
		batch.Documents[1].Text: true,
	}}
	remote, err := scoring.NewRemote("stub", client, scoring.RemoteConfig{}, nil)
	require.NoError(t, err)

	s := newService(t, Config{}, &staticLoader{batch: batch}, remote, nil)

	report, err := s.Match(context.Background(), Request{Query: "backend", Dir: "resumes"})
	require.ErrorIs(t, err, scoring.ErrNoMatch)
	require.NotNil(t, report)
	assert.Empty(t, report.BestID)
	assert.Len(t, report.WarningsFor(StageScoring), 2)
}

func TestMatchFailedExtractionDoesNotWinWhenScoringFails(t *testing.T) {
	batch := resumes()
	batch.Documents = append([]document.Document{{ID: "broken.pdf"}}, batch.Documents...)
	batch.Failures = []*document.ExtractionError{{ID: "broken.pdf", Path: "resumes/broken.pdf", Err: errors.New("bad xref")}}

	client := &stubClient{fail: map[string]bool{
		batch.Documents[1].Text: true,
		batch.Documents[2].Text: true,
	}}
	remote, err := scoring.NewRemote("stub", client, scoring.RemoteConfig{}, nil)
	require.NoError(t, err)

	s := newService(t, Config{}, &staticLoader{batch: batch}, remote, nil)

	report, err := s.Match(context.Background(), Request{Query: "backend", Dir: "resumes"})
	require.ErrorIs(t, err, scoring.ErrNoMatch)
	require.NotNil(t, report)
	assert.Empty(t, report.BestID)
	assert.Len(t, report.WarningsFor(StageExtraction), 1)
	assert.Len(t, report.WarningsFor(StageScoring), 2)
}

func TestReportEncode(t *testing.T) {
	report := &Report{MatchID: "id", Backend: "tfidf", BestID: "A.pdf", Score: 0.5}

	var yamlOut strings.Builder
	require.NoError(t, report.Encode(&yamlOut, "yaml"))

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(yamlOut.String()), &decoded))
	assert.Equal(t, "A.pdf", decoded["best_match"])

	var jsonOut strings.Builder
	require.NoError(t, report.Encode(&jsonOut, "json"))
	assert.Contains(t, jsonOut.String(), `"match_id": "id"`)

	assert.Error(t, report.Encode(&jsonOut, "xml"))
}

func TestReportDumpToTmpFile(t *testing.T) {
	report := &Report{MatchID: "id", BestID: "A.pdf"}

	name, err := report.DumpToTmpFile("yaml")
	require.NoError(t, err)
	defer os.Remove(name)

	assert.Equal(t, ".yaml", filepath.Ext(name))
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), "best_match: A.pdf")
}
