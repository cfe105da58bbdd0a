package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cv-matcher/internal/document"
	"github.com/spigell/cv-matcher/internal/filtering"
	"github.com/spigell/cv-matcher/internal/logger"
	"github.com/spigell/cv-matcher/internal/matcher"
	"github.com/spigell/cv-matcher/internal/scoring"
)

const (
	PromptShowExcerpt    = "Show the excerpt of the best match"
	PromptShowRanking    = "Show the ranking"
	PromptReportToJSON   = "Dump report to json file"
	PromptReportToYAML   = "Dump report to yaml file"
	PromptExcludeMatched = "Append the best match to exclude file"
	PromptExit           = "Exit"
)

var errExit = errors.New("exit requested")

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Find the resume that matches the job description best",
	Run: func(cmd *cobra.Command, _ []string) {
		match(cmd)
	},
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().String("dir", "", "directory with resumes")
	matchCmd.Flags().String("job", "", "job description text")
	matchCmd.Flags().String("job-file", "", "file with the job description")
	matchCmd.Flags().StringP("backend", "b", "", "scorer backend: tfidf, http, gemini or openai")
	matchCmd.Flags().Int("top", 0, "size of the ranking in the report")
	matchCmd.Flags().StringP("exclude-file", "e", "", "special file with resumes to exclude. Default is unset.")
	matchCmd.Flags().BoolP("auto-approve", "y", false, "print the result and exit without the interactive menu")

	viper.BindPFlag("documents.dir", matchCmd.Flags().Lookup("dir"))
	viper.BindPFlag("job.text", matchCmd.Flags().Lookup("job"))
	viper.BindPFlag("job.file", matchCmd.Flags().Lookup("job-file"))
	viper.BindPFlag("scorer.backend", matchCmd.Flags().Lookup("backend"))
	viper.BindPFlag("scorer.top", matchCmd.Flags().Lookup("top"))
	viper.BindPFlag("documents.exclude-file", matchCmd.Flags().Lookup("exclude-file"))
}

// match is the main command for the cli.
func match(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting the cv-matcher", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	query, err := resolveJob(config.Job)
	if err != nil {
		logger.Fatal("reading the job description", zap.Error(err))
	}

	scorer, err := newScorer(ctx, config.Scorer, logger)
	if err != nil {
		logger.Fatal("building the scorer", zap.Error(err))
	}

	service, err := matcher.New(matcher.Config{
		MinimumScore:  config.Scorer.MinimumScore,
		ExcerptLength: config.Scorer.ExcerptLength,
		Top:           config.Scorer.Top,
		MaxLogLength:  config.Scorer.MaxLogLength,
	}, matcher.Deps{
		Loader:  newLoader(config.Documents, logger),
		Filters: prepareFilters(config.Documents, logger),
		Scorer:  scorer,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("building the matcher", zap.Error(err))
	}

	report, err := service.Match(ctx, matcher.Request{Query: query, Dir: config.Documents.Dir})
	switch {
	case errors.Is(err, scoring.ErrNoMatch):
		logger.Info("exiting",
			zap.String("reason", "no suitable resume found"),
			zap.Error(err),
			zap.Any("warnings", report.Warnings),
		)
		return
	case errors.Is(err, scoring.ErrInput):
		logger.Fatal("invalid input", zap.Error(err))
	case err != nil:
		logger.Fatal("matching failed", zap.Error(err))
	}

	for _, w := range report.Warnings {
		logger.Warn("document skipped",
			zap.String("document_id", w.DocumentID),
			zap.String("stage", w.Stage),
			zap.String("error", w.Error),
		)
	}

	logger.Info("best match",
		zap.String("document_id", report.BestID),
		zap.String("score", report.ScorePercent()),
		zap.Int("candidates", report.Candidates),
	)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		return
	}

	prompt := promptui.Select{
		Label: "What next?",
		Items: menuItems(config.Documents.ExcludeFile),
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, config, report); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func menuItems(excludeFile string) []string {
	items := []string{PromptShowExcerpt, PromptShowRanking, PromptReportToJSON, PromptReportToYAML}
	if strings.TrimSpace(excludeFile) != "" {
		items = append(items, PromptExcludeMatched)
	}
	return append(items, PromptExit)
}

func handleAction(action string, logger *zap.Logger, config *Config, report *matcher.Report) error {
	switch action {
	case PromptShowExcerpt:
		fmt.Fprintf(os.Stdout, "%s (%s)\n\n%s\n", report.BestID, report.ScorePercent(), report.Excerpt)
		return nil
	case PromptShowRanking:
		for i, ranked := range report.Ranking {
			fmt.Fprintf(os.Stdout, "%d. %s %.2f%%\n", i+1, ranked.ID, ranked.Score*100)
		}
		return nil
	case PromptReportToJSON, PromptReportToYAML:
		format := matcher.FormatJSON
		if action == PromptReportToYAML {
			format = matcher.FormatYAML
		}

		filename, err := report.DumpToTmpFile(format)
		if err != nil {
			return fmt.Errorf("dump report to file: %w", err)
		}
		logger.Info("dumping report to file", zap.String("filename", filename))
		return nil
	case PromptExcludeMatched:
		excludeFile := config.Documents.ExcludeFile
		err := filtering.AppendToFile(excludeFile, &filtering.ExcludedDocument{
			ID:     report.BestID,
			Reason: "matched " + report.MatchID,
			Score:  report.Score,
		})
		if err != nil {
			return fmt.Errorf("append to exclude file: %w", err)
		}
		logger.Info("appended to exclude file",
			zap.String("filename", excludeFile),
			zap.String("document_id", report.BestID),
		)
		return nil
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

// resolveJob returns the job description from config, a file or an interactive prompt.
func resolveJob(cfg *JobConfig) (string, error) {
	if text := strings.TrimSpace(cfg.Text); text != "" {
		return text, nil
	}

	if file := strings.TrimSpace(cfg.File); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("reading job file: %w", err)
		}
		return string(data), nil
	}

	prompt := promptui.Prompt{
		Label: "Paste the job description",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("job description is empty")
			}
			return nil
		},
	}
	return prompt.Run()
}

func newLoader(cfg *DocumentsConfig, logger *zap.Logger) *document.Loader {
	return document.NewLoader(document.LoaderConfig{
		Extensions: cfg.Extensions,
		Workers:    cfg.Workers,
		SkipFailed: cfg.SkipFailed,
	}, document.DefaultExtractors(), logger)
}

func prepareFilters(cfg *DocumentsConfig, logger *zap.Logger) *filtering.Filtering {
	steps := []filtering.Filter{
		filtering.NewExcludeFile(cfg.ExcludeFile, logger),
		filtering.NewDuplicates(cfg.Duplicates, logger),
	}

	f := filtering.New(steps, logger)
	for _, status := range f.Describe() {
		logger.Debug("filter configured",
			zap.String("filter", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return f
}
