package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const (
	IndexBackendFile     = "file"
	IndexBackendPgvector = "pgvector"
	EmbedderGemini       = "gemini"
	EmbedderHashing      = "hashing"
)

type Config struct {
	AI        AIConfig        `mapstructure:"ai"`
	Portfolio PortfolioConfig `mapstructure:"portfolio"`
	Index     IndexConfig     `mapstructure:"index"`
	Page      PageConfig      `mapstructure:"page"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	Sender    SenderConfig    `mapstructure:"sender"`
	Timeouts  TimeoutsConfig  `mapstructure:"timeouts"`
}

type AIConfig struct {
	Provider string       `mapstructure:"provider" validate:"oneof=gemini"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key" json:"-"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model" validate:"required"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxAttempts    int    `mapstructure:"max-attempts" validate:"gte=1,lte=10"`
	MaxLogLength   int    `mapstructure:"max-log-length" validate:"gte=0"`
}

type PortfolioConfig struct {
	File string `mapstructure:"file" validate:"required"`
}

type IndexConfig struct {
	Backend    string `mapstructure:"backend" validate:"oneof=file pgvector"`
	Embedder   string `mapstructure:"embedder" validate:"oneof=gemini hashing"`
	Path       string `mapstructure:"path"`
	Collection string `mapstructure:"collection" validate:"required"`
	DSN        string `mapstructure:"dsn" json:"-" validate:"required_if=Backend pgvector"`
	Dimensions int    `mapstructure:"dimensions" validate:"gt=0"`
}

type PageConfig struct {
	Loader    string `mapstructure:"loader" validate:"oneof=http browser"`
	UserAgent string `mapstructure:"user-agent"`
}

type MatchingConfig struct {
	Results int `mapstructure:"results" validate:"gte=1"`
}

type SenderConfig struct {
	Name  string `mapstructure:"name"`
	Pitch string `mapstructure:"pitch"`
}

type TimeoutsConfig struct {
	Fetch time.Duration `mapstructure:"fetch" validate:"gt=0"`
	Model time.Duration `mapstructure:"model" validate:"gt=0"`
	Index time.Duration `mapstructure:"index" validate:"gt=0"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.api-key", "")
	v.SetDefault("ai.gemini.api-key-file", "")
	v.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	v.SetDefault("ai.gemini.embedding-model", "text-embedding-004")
	v.SetDefault("ai.gemini.max-attempts", 1)
	v.SetDefault("ai.gemini.max-log-length", 200)

	v.SetDefault("portfolio.file", "resources/my_portfolio.csv")

	v.SetDefault("index.backend", IndexBackendFile)
	v.SetDefault("index.embedder", EmbedderGemini)
	v.SetDefault("index.path", "VectorStore")
	v.SetDefault("index.collection", "portfolio")
	v.SetDefault("index.dsn", "")
	v.SetDefault("index.dimensions", 768)

	v.SetDefault("page.loader", "http")
	v.SetDefault("page.user-agent", "")

	v.SetDefault("matching.results", 2)

	v.SetDefault("sender.name", "")
	v.SetDefault("sender.pitch", "")

	v.SetDefault("timeouts.fetch", 30*time.Second)
	v.SetDefault("timeouts.model", 60*time.Second)
	v.SetDefault("timeouts.index", 30*time.Second)
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("COLD_MAILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	bindings := map[string][]string{
		"ai.gemini.api-key":      {"COLD_MAILER_AI_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"ai.gemini.api-key-file": {"COLD_MAILER_AI_GEMINI_API_KEY_FILE", "GEMINI_API_KEY_FILE"},
		"index.dsn":              {"COLD_MAILER_INDEX_DSN", "DATABASE_URL"},
	}

	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("binding %s environment variables: %w", key, err)
		}
	}

	return nil
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	config.AI.Provider = strings.ToLower(strings.TrimSpace(config.AI.Provider))
	config.Index.Backend = strings.ToLower(strings.TrimSpace(config.Index.Backend))
	config.Index.Embedder = strings.ToLower(strings.TrimSpace(config.Index.Embedder))
	config.Page.Loader = strings.ToLower(strings.TrimSpace(config.Page.Loader))

	if err := validate.Struct(config); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, 0, len(invalid))
			for _, fe := range invalid {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return nil, fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}
