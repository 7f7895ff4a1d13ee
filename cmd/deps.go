package cmd

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/ai/gemini"
	"github.com/spigell/cold-mailer/internal/portfolio"
	"github.com/spigell/cold-mailer/internal/secrets"
	"github.com/spigell/cold-mailer/internal/vectorindex"
	"github.com/spigell/cold-mailer/internal/vectorindex/postgres"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// clients holds the lazily created model client shared by the generator and the embedder.
type clients struct {
	config *Config
	logger *zap.Logger
	client *genai.Client
}

func (c *clients) genaiClient(ctx context.Context) (*genai.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: c.config.AI.Gemini.APIKey,
		File:  c.config.AI.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key, GEMINI_API_KEY or GEMINI_API_KEY_FILE)", err)
	}

	client, err := gemini.NewClient(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	c.client = client
	return client, nil
}

func (c *clients) generator(ctx context.Context) (ai.Generator, error) {
	client, err := c.genaiClient(ctx)
	if err != nil {
		return nil, err
	}

	return gemini.NewGenerator(client, gemini.Options{
		Model:       c.config.AI.Gemini.Model,
		MaxAttempts: c.config.AI.Gemini.MaxAttempts,
		Timeout:     c.config.Timeouts.Model,
	}, c.logger.With(zap.Int("ai_retry_attempts", c.config.AI.Gemini.MaxAttempts)))
}

func (c *clients) embedder(ctx context.Context) (ai.Embedder, error) {
	switch c.config.Index.Embedder {
	case EmbedderHashing:
		return vectorindex.HashingEmbedder{Dimensions: c.config.Index.Dimensions}, nil
	case EmbedderGemini:
		client, err := c.genaiClient(ctx)
		if err != nil {
			return nil, err
		}
		return gemini.NewEmbedder(client, c.config.AI.Gemini.EmbeddingModel, c.config.Timeouts.Model, c.logger)
	default:
		return nil, fmt.Errorf("unsupported embedder: %s", c.config.Index.Embedder)
	}
}

func (c *clients) index(ctx context.Context) (vectorindex.Index, error) {
	embedder, err := c.embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("building embedder: %w", err)
	}

	cfg := c.config.Index
	switch cfg.Backend {
	case IndexBackendFile:
		return vectorindex.OpenFile(filepath.Clean(cfg.Path), cfg.Collection, embedder, c.logger)
	case IndexBackendPgvector:
		return postgres.Open(ctx, postgres.Options{
			DSN:            cfg.DSN,
			Collection:     cfg.Collection,
			Dimensions:     cfg.Dimensions,
			ConnectTimeout: c.config.Timeouts.Index,
		}, embedder, c.logger)
	default:
		return nil, fmt.Errorf("unsupported index backend: %s", cfg.Backend)
	}
}

// portfolioStore opens the index and wraps it into the portfolio store. Callers close the returned index.
func (c *clients) portfolioStore(ctx context.Context) (*portfolio.Store, vectorindex.Index, error) {
	index, err := c.index(ctx)
	if err != nil {
		return nil, nil, &portfolio.IndexError{Op: "open index", Cause: err}
	}

	return portfolio.NewStore(index, c.config.Timeouts.Index, c.logger), index, nil
}
