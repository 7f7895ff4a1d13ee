package ai

import (
	"context"
	"fmt"
)

// Generator produces a text completion for a system instruction and a user message.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

// Embedder turns texts into embedding vectors, one vector per input text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// ModelError is returned when an inference or embedding call fails.
type ModelError struct {
	Provider string
	Model    string
	Op       string
	Cause    error
}

func (e *ModelError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model error (%s/%s) during %s: %v", e.Provider, e.Model, e.Op, e.Cause)
	}
	return fmt.Sprintf("model error (%s/%s) during %s", e.Provider, e.Model, e.Op)
}

func (e *ModelError) Unwrap() error {
	return e.Cause
}
