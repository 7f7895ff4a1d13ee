package jobs

import (
	"strings"
)

// Posting is one job listing extracted from a careers page.
type Posting struct {
	Role        string   `json:"role" validate:"required"`
	Experience  string   `json:"experience"`
	Skills      []string `json:"skills"`
	Description string   `json:"description"`
}

// Title returns a short human readable label for the posting.
func (p Posting) Title() string {
	role := strings.TrimSpace(p.Role)
	if role == "" {
		return "Untitled role"
	}
	return role
}
