package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultEmbeddingModel = "text-embedding-004"

type embedContenter interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// Embedder computes text embeddings with a Gemini embedding model.
type Embedder struct {
	models  embedContenter
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewEmbedder creates an Embedder on top of an existing genai client.
func NewEmbedder(client *genai.Client, model string, timeout time.Duration, log *zap.Logger) (*Embedder, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}
	return newEmbedder(client.Models, model, timeout, log), nil
}

func newEmbedder(models embedContenter, model string, timeout time.Duration, log *zap.Logger) *Embedder {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultEmbeddingModel
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Embedder{
		models:  models,
		model:   model,
		timeout: timeout,
		logger:  logger.WithCommonFields(log, Provider, model),
	}
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		contents = append(contents, genai.NewContentFromText(text, genai.RoleUser))
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.models.EmbedContent(callCtx, e.model, contents, nil)
	if err != nil {
		return nil, e.modelError(err)
	}

	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, e.modelError(fmt.Errorf("expected %d embeddings, got %d", len(texts), got))
	}

	vectors := make([][]float32, 0, len(resp.Embeddings))
	for i, embedding := range resp.Embeddings {
		if embedding == nil || len(embedding.Values) == 0 {
			return nil, e.modelError(fmt.Errorf("embedding %d is empty", i))
		}
		vectors = append(vectors, embedding.Values)
	}

	e.logger.Debug("computed embeddings", zap.Int("count", len(vectors)), zap.Int("dimensions", len(vectors[0])))

	return vectors, nil
}

func (e *Embedder) modelError(err error) error {
	return &ai.ModelError{Provider: Provider, Model: e.model, Op: "embed content", Cause: err}
}
