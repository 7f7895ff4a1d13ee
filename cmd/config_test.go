package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()

	v := viper.New()
	setDefaults(v)
	require.NoError(t, bindEnv(v))

	if yaml != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	}

	return v
}

func TestDecodeConfigDefaults(t *testing.T) {
	config, err := decodeConfig(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "gemini", config.AI.Provider)
	assert.Equal(t, "gemini-2.5-flash", config.AI.Gemini.Model)
	assert.Equal(t, 1, config.AI.Gemini.MaxAttempts)
	assert.Equal(t, "resources/my_portfolio.csv", config.Portfolio.File)
	assert.Equal(t, IndexBackendFile, config.Index.Backend)
	assert.Equal(t, "VectorStore", config.Index.Path)
	assert.Equal(t, 2, config.Matching.Results)
	assert.Equal(t, "http", config.Page.Loader)
	assert.Equal(t, 30*time.Second, config.Timeouts.Fetch)
}

func TestDecodeConfigFromFile(t *testing.T) {
	config, err := decodeConfig(newTestViper(t, `
ai:
  gemini:
    model: gemini-2.5-pro
    max-attempts: 3
index:
  backend: PGVECTOR
  embedder: hashing
  dsn: postgres://localhost/cold
  dimensions: 256
matching:
  results: 4
sender:
  name: Kim
timeouts:
  model: 90s
`))
	require.NoError(t, err)

	assert.Equal(t, "gemini-2.5-pro", config.AI.Gemini.Model)
	assert.Equal(t, 3, config.AI.Gemini.MaxAttempts)
	assert.Equal(t, IndexBackendPgvector, config.Index.Backend)
	assert.Equal(t, EmbedderHashing, config.Index.Embedder)
	assert.Equal(t, 256, config.Index.Dimensions)
	assert.Equal(t, 4, config.Matching.Results)
	assert.Equal(t, "Kim", config.Sender.Name)
	assert.Equal(t, 90*time.Second, config.Timeouts.Model)
}

func TestDecodeConfigEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "from-env")
	t.Setenv("DATABASE_URL", "postgres://db/cold")
	t.Setenv("COLD_MAILER_MATCHING_RESULTS", "3")

	config, err := decodeConfig(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "from-env", config.AI.Gemini.APIKey)
	assert.Equal(t, "postgres://db/cold", config.Index.DSN)
	assert.Equal(t, 3, config.Matching.Results)
}

func TestDecodeConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{name: "unknown backend", yaml: "index:\n  backend: chroma\n", want: "Config.Index.Backend (oneof)"},
		{name: "pgvector without dsn", yaml: "index:\n  backend: pgvector\n", want: "Config.Index.DSN (required_if)"},
		{name: "zero results", yaml: "matching:\n  results: 0\n", want: "Config.Matching.Results (gte)"},
		{name: "unknown loader", yaml: "page:\n  loader: curl\n", want: "Config.Page.Loader (oneof)"},
		{name: "unknown provider", yaml: "ai:\n  provider: groq\n", want: "Config.AI.Provider (oneof)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			_, err := decodeConfig(newTestViper(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
