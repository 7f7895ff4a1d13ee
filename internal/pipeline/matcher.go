package pipeline

import (
	"context"

	"github.com/spigell/cold-mailer/internal/jobs"
)

// DefaultResults is the number of portfolio links looked up per posting.
const DefaultResults = 2

// Portfolio finds links relevant to a set of skills.
type Portfolio interface {
	Match(ctx context.Context, skills []string, n int) ([]string, error)
}

// Matcher looks up a fixed number of portfolio links for a posting.
type Matcher struct {
	portfolio Portfolio
	results   int
}

func NewMatcher(portfolio Portfolio, results int) *Matcher {
	if results <= 0 {
		results = DefaultResults
	}
	return &Matcher{portfolio: portfolio, results: results}
}

// Match returns at most Results links for the posting's skills, best first.
func (m *Matcher) Match(ctx context.Context, posting jobs.Posting) ([]string, error) {
	return m.portfolio.Match(ctx, posting.Skills, m.results)
}

func (m *Matcher) Results() int {
	return m.results
}
