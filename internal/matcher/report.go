package matcher

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/spigell/cv-matcher/internal/filtering"
)

const (
	StageExtraction = "extraction"
	StageScoring    = "scoring"

	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the outcome of one match operation.
type Report struct {
	MatchID    string           `json:"match_id" yaml:"match_id"`
	Backend    string           `json:"backend" yaml:"backend"`
	Query      string           `json:"query" yaml:"query"`
	BestID     string           `json:"best_match,omitempty" yaml:"best_match,omitempty"`
	Score      float64          `json:"score" yaml:"score"`
	Excerpt    string           `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	Candidates int              `json:"candidates" yaml:"candidates"`
	Ranking    []RankedDocument `json:"ranking,omitempty" yaml:"ranking,omitempty"`
	Warnings   []Warning        `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Steps      []filtering.Step `json:"filters,omitempty" yaml:"filters,omitempty"`
	Duration   time.Duration    `json:"duration" yaml:"duration"`
}

type RankedDocument struct {
	ID    string  `json:"id" yaml:"id"`
	Score float64 `json:"score" yaml:"score"`
}

// Warning is a per-document problem that did not abort the match.
type Warning struct {
	DocumentID string `json:"document_id" yaml:"document_id"`
	Stage      string `json:"stage" yaml:"stage"`
	Error      string `json:"error" yaml:"error"`
}

// ScorePercent renders the score the way it is shown to users.
func (r *Report) ScorePercent() string {
	return fmt.Sprintf("%.2f%%", r.Score*100)
}

func (r *Report) WarningsFor(stage string) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Stage == stage {
			out = append(out, w)
		}
	}
	return out
}

// Encode writes the report in the given format.
func (r *Report) Encode(w io.Writer, format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML, "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

// DumpToTmpFile writes the report to a new temporary file and returns its name.
func (r *Report) DumpToTmpFile(format string) (string, error) {
	ext := FormatJSON
	if f := strings.ToLower(strings.TrimSpace(format)); f == FormatYAML || f == "yml" {
		ext = FormatYAML
	}

	file, err := os.CreateTemp("", "match_*."+ext)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := r.Encode(file, format); err != nil {
		return "", err
	}
	return file.Name(), nil
}
