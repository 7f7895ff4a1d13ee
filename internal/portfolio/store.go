// Package portfolio keeps the portfolio table in a vector index and finds the links relevant to a set of skills.
package portfolio

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spigell/cold-mailer/internal/utils"
	"github.com/spigell/cold-mailer/internal/vectorindex"
	"go.uber.org/zap"
)

// MetadataLink is the document metadata key holding the portfolio link.
const MetadataLink = "links"

// Store is the portfolio backed by a vector index.
type Store struct {
	index   vectorindex.Index
	timeout time.Duration
	logger  *zap.Logger
}

// NewStore wraps index. A positive timeout bounds every index call.
func NewStore(index vectorindex.Index, timeout time.Duration, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Store{
		index:   index,
		timeout: timeout,
		logger:  logger,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Load adds entries to the index unless the index already holds documents.
// It returns the number of entries added, so repeated calls after the first add nothing.
func (s *Store) Load(ctx context.Context, entries []Entry) (int, error) {
	count, err := s.Count(ctx)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		s.logger.Debug("portfolio already indexed, skipping load", zap.Int("count", count))
		return 0, nil
	}

	if len(entries) == 0 {
		return 0, nil
	}

	docs := make([]vectorindex.Document, 0, len(entries))
	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			id = uuid.NewString()
		}

		docs = append(docs, vectorindex.Document{
			ID:       id,
			Text:     entry.TechStack,
			Metadata: map[string]string{MetadataLink: entry.Link},
		})
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.index.Add(callCtx, docs); err != nil {
		return 0, &IndexError{Op: "add portfolio entries", Cause: err}
	}

	s.logger.Info("portfolio indexed", zap.Int("entries", len(docs)))

	return len(docs), nil
}

// Match returns up to n links whose tech stack is most similar to skills, best match first.
// Skills are joined into a single query. No skills, n <= 0 or an empty index give an empty result.
func (s *Store) Match(ctx context.Context, skills []string, n int) ([]string, error) {
	query := strings.Join(utils.CleanList(skills), ", ")
	if query == "" || n <= 0 {
		return []string{}, nil
	}

	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	hits, err := s.index.Query(callCtx, query, n)
	if err != nil {
		return nil, &IndexError{Op: "query portfolio", Cause: err}
	}

	links := make([]string, 0, len(hits))
	for _, hit := range hits {
		if len(links) == n {
			break
		}
		if link := hit.Metadata[MetadataLink]; link != "" {
			links = append(links, link)
		}
	}

	s.logger.Debug("portfolio matched",
		zap.String("query", query),
		zap.Int("requested", n),
		zap.Strings("links", links),
	)

	return links, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	count, err := s.index.Count(callCtx)
	if err != nil {
		return 0, &IndexError{Op: "count portfolio entries", Cause: err}
	}

	return count, nil
}

// Clear removes every entry so the next Load repopulates the index.
func (s *Store) Clear(ctx context.Context) error {
	callCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.index.Reset(callCtx); err != nil {
		return &IndexError{Op: "clear portfolio", Cause: err}
	}

	s.logger.Info("portfolio cleared")

	return nil
}
