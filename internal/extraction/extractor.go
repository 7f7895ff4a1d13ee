package extraction

import (
	"context"
	"fmt"
	"strings"
	"text/template"
	"unicode/utf8"

	_ "embed"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/jobs"
	"github.com/spigell/cold-mailer/internal/utils"
	"go.uber.org/zap"
)

//go:embed prompt.md
var systemPrompt string

//go:embed message.tmpl
var messageTemplateRaw string

var messageTemplate = template.Must(template.New("extraction").Parse(messageTemplateRaw))

const defaultMaxLogLength = 200

// Extractor asks the model to turn careers page text into job postings.
type Extractor struct {
	generator ai.Generator
	logger    *zap.Logger
	maxLogLen int
}

func NewExtractor(generator ai.Generator, logger *zap.Logger, maxLogLength int) *Extractor {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Extractor{
		generator: generator,
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Extract returns the job postings found in pageText in the order the model listed them.
func (e *Extractor) Extract(ctx context.Context, pageText string) ([]jobs.Posting, error) {
	pageText = strings.TrimSpace(pageText)
	if pageText == "" {
		return nil, ErrEmptyPage
	}

	var message strings.Builder
	if err := messageTemplate.Execute(&message, struct{ PageText string }{PageText: pageText}); err != nil {
		return nil, fmt.Errorf("render extraction prompt: %w", err)
	}

	e.logger.Debug("extraction request",
		zap.Int("page_length", utf8.RuneCountInString(pageText)),
		zap.String("page_preview", utils.TruncateForLog(pageText, e.maxLogLen)),
	)

	raw, err := e.generator.GenerateContent(ctx, systemPrompt, message.String())
	if err != nil {
		return nil, fmt.Errorf("extract job postings: %w", err)
	}

	e.logger.Debug("extraction response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
	)

	postings, err := ParsePostings(raw)
	if err != nil {
		e.logger.Warn("model returned unusable postings",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, e.maxLogLen)),
		)
		return nil, err
	}

	e.logger.Info("extracted job postings", zap.Int("count", len(postings)))

	return postings, nil
}
