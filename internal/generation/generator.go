// Package generation drafts the cold email for a job posting.
package generation

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

//go:embed prompt.tmpl
var promptTemplateRaw string

//go:embed message.tmpl
var messageTemplateRaw string

var (
	funcs           = template.FuncMap{"join": strings.Join}
	promptTemplate  = template.Must(template.New("prompt").Funcs(funcs).Parse(promptTemplateRaw))
	messageTemplate = template.Must(template.New("message").Funcs(funcs).Parse(messageTemplateRaw))
)

const (
	DefaultSenderName  = "Alex"
	DefaultSenderPitch = "a passionate developer specializing in AI and software solutions, eager to contribute your skills and enthusiasm to the company. With hands-on experience from personal and professional projects, you have helped teams achieve process automation, improved efficiency and cost reduction."

	defaultMaxLogLength = 200
)

// Sender is the persona the email is written as.
type Sender struct {
	Name  string
	Pitch string
}

func (s Sender) withDefaults() Sender {
	s.Name = strings.TrimSpace(s.Name)
	s.Pitch = strings.TrimSpace(s.Pitch)
	if s.Name == "" {
		s.Name = DefaultSenderName
	}
	if s.Pitch == "" {
		s.Pitch = DefaultSenderPitch
	}
	return s
}

type Generator struct {
	generator ai.Generator
	sender    Sender
	logger    *zap.Logger
	maxLogLen int
}

func NewGenerator(generator ai.Generator, sender Sender, logger *zap.Logger, maxLogLength int) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Generator{
		generator: generator,
		sender:    sender.withDefaults(),
		logger:    logger,
		maxLogLen: maxLogLength,
	}
}

// Generate returns the model's email for posting, citing links. The text is returned as is.
func (g *Generator) Generate(ctx context.Context, posting jobs.Posting, links []string) (string, error) {
	system, message, err := g.render(posting, links)
	if err != nil {
		return "", err
	}

	text, err := g.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return "", err
	}

	g.logger.Debug("email generated",
		zap.String("role", posting.Title()),
		zap.Int("links", len(links)),
		zap.Int("email_length", utf8.RuneCountInString(text)),
		zap.String("email_preview", utils.TruncateForLog(text, g.maxLogLen)),
	)

	return text, nil
}

func (g *Generator) render(posting jobs.Posting, links []string) (string, string, error) {
	data := struct {
		Sender  Sender
		Posting jobs.Posting
		Links   []string
	}{
		Sender:  g.sender,
		Posting: posting,
		Links:   links,
	}

	var system strings.Builder
	if err := promptTemplate.Execute(&system, data); err != nil {
		return "", "", fmt.Errorf("render email prompt: %w", err)
	}

	var message strings.Builder
	if err := messageTemplate.Execute(&message, data); err != nil {
		return "", "", fmt.Errorf("render email message: %w", err)
	}

	return system.String(), message.String(), nil
}
