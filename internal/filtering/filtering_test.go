package filtering

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-matcher/internal/document"
)

func newBatch() *document.Batch {
	return &document.Batch{Documents: []document.Document{
		{ID: "a.pdf", Text: "go engineer"},
		{ID: "b.pdf", Text: "pastry chef"},
		{ID: "c.pdf", Text: "go   engineer\n"},
		{ID: "d.pdf", Text: ""},
		{ID: "e.pdf", Text: ""},
	}}
}

func TestExcludeFileFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	if err := AppendToFile(path, &ExcludedDocument{ID: "b.pdf", Reason: "hired"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	core, observed := observer.New(zapcore.InfoLevel)
	f := New([]Filter{NewExcludeFile(path, nil)}, zap.New(core))

	batch, steps, err := f.RunFilters(context.Background(), newBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if batch.FindByID("b.pdf") != nil {
		t.Fatal("expected b.pdf to be excluded")
	}

	if len(steps) != 1 || steps[0] != (Step{Name: "exclude_file", Initial: 5, Dropped: 1, Left: 4}) {
		t.Fatalf("unexpected steps: %+v", steps)
	}

	if observed.FilterMessage("filter step").Len() != 1 {
		t.Fatalf("expected filter step log entry")
	}
}

func TestExcludeFileFilterWithoutPath(t *testing.T) {
	_, steps, err := New([]Filter{NewExcludeFile(" ", nil)}, nil).RunFilters(context.Background(), newBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if steps[0].Dropped != 0 || steps[0].Left != 5 {
		t.Fatalf("unexpected step: %+v", steps[0])
	}
}

func TestExcludeFileFilterBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	_, _, err := New([]Filter{NewExcludeFile(path, nil)}, nil).RunFilters(context.Background(), newBatch())
	if err == nil || !strings.HasPrefix(err.Error(), "exclude_file:") {
		t.Fatalf("expected exclude_file error, got %v", err)
	}
}

func TestAppendToFileAccumulates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")
	for _, id := range []string{"a.pdf", "b.pdf"} {
		if err := AppendToFile(path, &ExcludedDocument{ID: id}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}

	excluded, err := LoadExcluded(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := strings.Join(excluded.IDs(), ","); got != "a.pdf,b.pdf" {
		t.Fatalf("unexpected ids: %s", got)
	}
	if excluded.Items[0].ExcludedAt.IsZero() {
		t.Fatal("expected exclusion time to be set")
	}
}

func TestDuplicatesFilter(t *testing.T) {
	batch, steps, err := New([]Filter{NewDuplicates(true, nil)}, nil).RunFilters(context.Background(), newBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := strings.Join(batch.IDs(), ","); got != "a.pdf,b.pdf,d.pdf,e.pdf" {
		t.Fatalf("unexpected documents: %s", got)
	}
	if steps[0].Dropped != 1 {
		t.Fatalf("unexpected step: %+v", steps[0])
	}
}

func TestDisabledFiltersAreSkipped(t *testing.T) {
	dup := NewDuplicates(true, nil)
	dup.Disable("not requested")

	f := New([]Filter{dup, &failingFilter{}}, nil)
	f.steps[1].Disable("broken")

	batch, steps, err := f.RunFilters(context.Background(), newBatch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(steps) != 0 || batch.Len() != 5 {
		t.Fatalf("expected no steps to run, got %+v", steps)
	}

	statuses := f.Describe()
	if len(statuses) != 2 || statuses[0].Reason != "not requested" || statuses[1].Enabled {
		t.Fatalf("unexpected statuses: %+v", statuses)
	}
}

func TestValidationFailureStopsRun(t *testing.T) {
	_, _, err := New([]Filter{&failingFilter{enabled: true}}, nil).RunFilters(context.Background(), newBatch())
	if err == nil || !strings.Contains(err.Error(), "failing: invalid") {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type failingFilter struct {
	enabled bool
}

func (f *failingFilter) Name() string    { return "failing" }
func (f *failingFilter) Disable(string)  { f.enabled = false }
func (f *failingFilter) IsEnabled() bool { return f.enabled }
func (f *failingFilter) Validate() error { return errors.New("invalid") }
func (f *failingFilter) Apply(_ context.Context, b *document.Batch) (*document.Batch, Step, error) {
	return b, Step{}, nil
}
