package jobs

import (
	"fmt"
	"os"
	"path/filepath"
)

const draftFilePattern = "cold_email_%d.txt"

// Draft is the generated email for one posting together with its inputs.
type Draft struct {
	Posting Posting  `json:"posting"`
	Links   []string `json:"links"`
	Text    string   `json:"text"`
}

type Drafts struct {
	Items []*Draft
}

func (d *Drafts) Len() int {
	return len(d.Items)
}

// WriteToDir stores every draft text as cold_email_<n>.txt (1-based) in dir and returns the file paths.
func (d *Drafts) WriteToDir(dir string) ([]string, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	paths := make([]string, 0, d.Len())
	for idx, draft := range d.Items {
		path := filepath.Join(dir, fmt.Sprintf(draftFilePattern, idx+1))
		if err := os.WriteFile(path, []byte(draft.Text), 0o644); err != nil {
			return paths, fmt.Errorf("write draft %d: %w", idx+1, err)
		}
		paths = append(paths, path)
	}

	return paths, nil
}
