package cmd

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/scoring"
	"github.com/spigell/cv-matcher/internal/scoring/gemini"
	"github.com/spigell/cv-matcher/internal/scoring/httpapi"
	"github.com/spigell/cv-matcher/internal/scoring/openai"
	"github.com/spigell/cv-matcher/internal/secrets"
)

// Environment variables holding the api keys directly, checked after files and config values.
const (
	envHTTPAPIKey   = "CVM_HTTP_API_KEY"
	envGeminiAPIKey = "GEMINI_API_KEY"
	envOpenAIAPIKey = "OPENAI_API_KEY"
)

const (
	backendHTTP   = "http"
	backendGemini = "gemini"
	backendOpenAI = "openai"
)

func newScorer(ctx context.Context, cfg *ScorerConfig, log *zap.Logger) (scoring.Scorer, error) {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))

	remoteCfg := scoring.RemoteConfig{
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
	}

	switch backend {
	case "", scoring.BackendTfidf:
		return scoring.NewLocalTfidf(logger.WithScorer(log, scoring.BackendTfidf, "")), nil

	case backendHTTP:
		if cfg.HTTP == nil {
			return nil, fmt.Errorf("scorer.http section is required for the %s backend", backend)
		}

		token, err := secrets.Load(secrets.Source{
			Name:  "http scorer api key",
			File:  cfg.HTTP.APIKeyFile,
			Value: cfg.HTTP.APIKey,
			Env:   envHTTPAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set scorer.http.api-key-file, CVM_HTTP_API_KEY_FILE or CVM_HTTP_API_KEY)", err)
		}

		scorerLogger := logger.WithScorer(log, backendHTTP, cfg.HTTP.Endpoint)

		client, err := httpapi.New(httpapi.Config{
			Endpoint:       cfg.HTTP.Endpoint,
			Token:          token,
			QueryField:     cfg.HTTP.QueryField,
			CandidateField: cfg.HTTP.CandidateField,
			ScoreField:     cfg.HTTP.ScoreField,
		}, scorerLogger)
		if err != nil {
			return nil, err
		}

		return scoring.NewRemote(backendHTTP, client, remoteCfg, scorerLogger)

	case backendGemini:
		if cfg.Gemini == nil {
			cfg.Gemini = &GeminiConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "gemini api key",
			File:  cfg.Gemini.APIKeyFile,
			Value: cfg.Gemini.APIKey,
			Env:   envGeminiAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set scorer.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
		}

		generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, log)
		if err != nil {
			return nil, err
		}

		scorerLogger := logger.WithScorer(log, backendGemini, generator.Model())
		judge := gemini.NewJudge(generator, scorerLogger, cfg.MaxLogLength)

		return scoring.NewRemote(backendGemini, judge, remoteCfg, scorerLogger)

	case backendOpenAI:
		if cfg.OpenAI == nil {
			cfg.OpenAI = &OpenAIConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			File:  cfg.OpenAI.APIKeyFile,
			Value: cfg.OpenAI.APIKey,
			Env:   envOpenAIAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set scorer.openai.api-key-file, OPENAI_API_KEY_FILE or OPENAI_API_KEY)", err)
		}

		embedder, err := openai.NewEmbedder(openai.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.OpenAI.BaseURL,
			Model:      cfg.OpenAI.Model,
			Dimensions: cfg.OpenAI.Dimensions,
		}, log)
		if err != nil {
			return nil, err
		}

		scorerLogger := logger.WithScorer(log, backendOpenAI, embedder.Model())

		return scoring.NewRemote(backendOpenAI, embedder, remoteCfg, scorerLogger)

	default:
		return nil, fmt.Errorf("unsupported scorer backend: %s", cfg.Backend)
	}
}
