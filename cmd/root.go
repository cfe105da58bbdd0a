package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "cv-matcher"
)

type Config struct {
	Documents *DocumentsConfig `mapstructure:"documents"`
	Job       *JobConfig       `mapstructure:"job"`
	Scorer    *ScorerConfig    `mapstructure:"scorer"`
}

type DocumentsConfig struct {
	Dir         string   `mapstructure:"dir"`
	Extensions  []string `mapstructure:"extensions"`
	ExcludeFile string   `mapstructure:"exclude-file"`
	Workers     int      `mapstructure:"workers"`
	SkipFailed  bool     `mapstructure:"skip-failed"`
	Duplicates  bool     `mapstructure:"skip-duplicates"`
}

type JobConfig struct {
	Text string `mapstructure:"text"`
	File string `mapstructure:"file"`
}

type ScorerConfig struct {
	Backend       string        `mapstructure:"backend"`
	MinimumScore  float64       `mapstructure:"minimum-score"`
	ExcerptLength int           `mapstructure:"excerpt-length"`
	Top           int           `mapstructure:"top"`
	Concurrency   int           `mapstructure:"concurrency"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max-retries"`
	MaxLogLength  int           `mapstructure:"max-log-length"`
	HTTP          *HTTPConfig   `mapstructure:"http"`
	Gemini        *GeminiConfig `mapstructure:"gemini"`
	OpenAI        *OpenAIConfig `mapstructure:"openai"`
}

type HTTPConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api-key" json:"-"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	QueryField     string `mapstructure:"query-field"`
	CandidateField string `mapstructure:"candidate-field"`
	ScoreField     string `mapstructure:"score-field"`
}

type GeminiConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	Model      string `mapstructure:"model"`
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api-key" json:"-"`
	APIKeyFile string `mapstructure:"api-key-file"`
	BaseURL    string `mapstructure:"base-url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "cv-matcher finds the resume that fits a job description best",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	envs := map[string]string{
		"scorer.http.api-key-file":   "CVM_HTTP_API_KEY_FILE",
		"scorer.gemini.api-key-file": "GEMINI_API_KEY_FILE",
		"scorer.openai.api-key-file": "OPENAI_API_KEY_FILE",
	}
	for key, env := range envs {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	setDefaults()

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is cv-matcher.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func setDefaults() {
	viper.SetDefault("documents.extensions", []string{".pdf"})
	viper.SetDefault("documents.workers", 4)
	viper.SetDefault("scorer.backend", "tfidf")
	viper.SetDefault("scorer.excerpt-length", 500)
	viper.SetDefault("scorer.top", 5)
	viper.SetDefault("scorer.concurrency", 4)
	viper.SetDefault("scorer.timeout", 30*time.Second)
	viper.SetDefault("scorer.max-retries", 2)
	viper.SetDefault("scorer.max-log-length", 200)
}

func initConfig() {
	// Config is needed only for the match command.
	if matchCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit --config every setting may come from flags.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Documents == nil {
		config.Documents = &DocumentsConfig{}
	}
	if config.Job == nil {
		config.Job = &JobConfig{}
	}
	if config.Scorer == nil {
		config.Scorer = &ScorerConfig{}
	}

	return config, nil
}
