package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spigell/cold-mailer/internal/ai"
	"go.uber.org/zap"
)

type fileEntry struct {
	Document
	Embedding []float32 `json:"embedding"`
}

type fileData struct {
	Collection string      `json:"collection"`
	Entries    []fileEntry `json:"entries"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// FileIndex keeps a collection in memory and persists it as JSON under a directory.
type FileIndex struct {
	mu         sync.RWMutex
	entries    []fileEntry
	ids        map[string]bool
	collection string
	path       string
	embedder   ai.Embedder
	logger     *zap.Logger
}

// OpenFile loads the collection from dir, starting empty when no file exists yet.
func OpenFile(dir, collection string, embedder ai.Embedder, logger *zap.Logger) (*FileIndex, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	collection = strings.TrimSpace(collection)
	if collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	idx := &FileIndex{
		ids:        make(map[string]bool),
		collection: collection,
		path:       filepath.Join(dir, collection+".json"),
		embedder:   embedder,
		logger:     logger,
	}

	if err := idx.load(); err != nil {
		return nil, err
	}

	return idx, nil
}

func (f *FileIndex) load() error {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read index file: %w", err)
	}

	var stored fileData
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("decode index file %s: %w", f.path, err)
	}

	f.entries = stored.Entries
	for _, e := range stored.Entries {
		f.ids[e.ID] = true
	}

	f.logger.Debug("index loaded from disk", zap.String("path", f.path), zap.Int("count", len(f.entries)))

	return nil
}

// save must be called with the write lock held.
func (f *FileIndex) save() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}

	data, err := json.Marshal(fileData{
		Collection: f.collection,
		Entries:    f.entries,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index file: %w", err)
	}

	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replace index file: %w", err)
	}

	return nil
}

func (f *FileIndex) Add(ctx context.Context, docs []Document) error {
	f.mu.RLock()
	pending := make([]Document, 0, len(docs))
	seen := make(map[string]bool, len(docs))
	for _, doc := range docs {
		if f.ids[doc.ID] || seen[doc.ID] {
			continue
		}
		seen[doc.ID] = true
		pending = append(pending, doc)
	}
	f.mu.RUnlock()

	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, 0, len(pending))
	for _, doc := range pending {
		texts = append(texts, doc.Text)
	}

	vectors, err := f.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed documents: %w", err)
	}
	if len(vectors) != len(pending) {
		return fmt.Errorf("embed documents: expected %d vectors, got %d", len(pending), len(vectors))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for i, doc := range pending {
		if f.ids[doc.ID] {
			continue
		}
		if dims := f.dimensions(); dims > 0 && len(vectors[i]) != dims {
			return fmt.Errorf("document %s: %w: index has %d, got %d", doc.ID, ErrDimensionMismatch, dims, len(vectors[i]))
		}
		f.entries = append(f.entries, fileEntry{Document: doc, Embedding: vectors[i]})
		f.ids[doc.ID] = true
	}

	return f.save()
}

// dimensions must be called with a lock held.
func (f *FileIndex) dimensions() int {
	if len(f.entries) == 0 {
		return 0
	}
	return len(f.entries[0].Embedding)
}

func (f *FileIndex) Count(_ context.Context) (int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries), nil
}

func (f *FileIndex) Query(ctx context.Context, text string, n int) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	empty := len(f.entries) == 0
	f.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vectors, err := f.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	query := vectors[0]

	f.mu.RLock()
	defer f.mu.RUnlock()

	if dims := f.dimensions(); dims > 0 && len(query) != dims {
		return nil, fmt.Errorf("query: %w: index has %d, got %d", ErrDimensionMismatch, dims, len(query))
	}

	hits := make([]Hit, 0, len(f.entries))
	for _, entry := range f.entries {
		hits = append(hits, Hit{Document: entry.Document, Score: Cosine(query, entry.Embedding)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})

	if n < len(hits) {
		hits = hits[:n]
	}

	return hits, nil
}

func (f *FileIndex) Reset(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.entries = nil
	f.ids = make(map[string]bool)

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove index file: %w", err)
	}

	return nil
}

func (f *FileIndex) Close() error {
	return nil
}

// Path returns the file backing the collection.
func (f *FileIndex) Path() string {
	return f.path
}
