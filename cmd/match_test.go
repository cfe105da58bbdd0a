package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/cv-matcher/internal/scoring"
)

func TestResolveJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.txt")
	if err := os.WriteFile(path, []byte("go engineer"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name string
		cfg  *JobConfig
		want string
	}{
		{name: "inline text wins", cfg: &JobConfig{Text: " rust engineer ", File: path}, want: "rust engineer"},
		{name: "file", cfg: &JobConfig{File: path}, want: "go engineer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveJob(tt.cfg)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}

	if _, err := resolveJob(&JobConfig{File: filepath.Join(t.TempDir(), "missing.txt")}); err == nil {
		t.Fatal("expected error for missing job file")
	}
}

func TestMenuItems(t *testing.T) {
	if got := strings.Join(menuItems(""), "|"); strings.Contains(got, PromptExcludeMatched) {
		t.Fatalf("exclude action offered without exclude file: %s", got)
	}

	items := menuItems("exclude.json")
	if items[len(items)-1] != PromptExit || items[len(items)-2] != PromptExcludeMatched {
		t.Fatalf("unexpected menu: %v", items)
	}
}

func TestNewScorer(t *testing.T) {
	t.Setenv(envHTTPAPIKey, "")
	t.Setenv(envOpenAIAPIKey, "")

	keyFile := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(keyFile, []byte("secret\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	tests := []struct {
		name    string
		cfg     *ScorerConfig
		want    string
		wantErr bool
	}{
		{name: "default", cfg: &ScorerConfig{}, want: scoring.BackendTfidf},
		{name: "tfidf", cfg: &ScorerConfig{Backend: "TFIDF"}, want: scoring.BackendTfidf},
		{
			name: "http",
			cfg:  &ScorerConfig{Backend: "http", HTTP: &HTTPConfig{Endpoint: "http://localhost:8080/score", APIKeyFile: keyFile}},
			want: backendHTTP,
		},
		{name: "http without section", cfg: &ScorerConfig{Backend: "http"}, wantErr: true},
		{name: "openai", cfg: &ScorerConfig{Backend: "openai", OpenAI: &OpenAIConfig{APIKey: "inline"}}, want: backendOpenAI},
		{name: "openai without key", cfg: &ScorerConfig{Backend: "openai"}, wantErr: true},
		{name: "unknown", cfg: &ScorerConfig{Backend: "bm25"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer, err := newScorer(context.Background(), tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if scorer.Name() != tt.want {
				t.Fatalf("expected backend %s, got %s", tt.want, scorer.Name())
			}
		})
	}
}

func TestNewScorerFallsBackToEnvKey(t *testing.T) {
	cfg := &ScorerConfig{Backend: "openai"}

	t.Setenv(envOpenAIAPIKey, "")
	if _, err := newScorer(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), envOpenAIAPIKey) {
		t.Fatalf("expected missing key error naming %s, got %v", envOpenAIAPIKey, err)
	}

	t.Setenv(envOpenAIAPIKey, "sk-from-env")
	scorer, err := newScorer(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scorer.Name() != backendOpenAI {
		t.Fatalf("expected backend %s, got %s", backendOpenAI, scorer.Name())
	}

	t.Setenv(envHTTPAPIKey, "token-from-env")
	scorer, err = newScorer(context.Background(), &ScorerConfig{
		Backend: "http",
		HTTP:    &HTTPConfig{Endpoint: "http://localhost:8080/score"},
	}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scorer.Name() != backendHTTP {
		t.Fatalf("expected backend %s, got %s", backendHTTP, scorer.Name())
	}
}

func TestPrepareFiltersLogsStatuses(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)

	f := prepareFilters(&DocumentsConfig{ExcludeFile: "exclude.json", Duplicates: true}, zap.New(core))
	if f == nil {
		t.Fatal("expected filtering pipeline")
	}

	entries := observed.FilterMessage("filter configured").All()
	if len(entries) != 2 {
		t.Fatalf("expected two filter status entries, got %d", len(entries))
	}

	enabled := map[string]bool{}
	for _, e := range entries {
		fields := e.ContextMap()
		enabled[fields["filter"].(string)] = fields["enabled"].(bool)
	}

	if !enabled["exclude_file"] || !enabled["duplicates"] {
		t.Fatalf("unexpected filter statuses: %v", enabled)
	}
}
