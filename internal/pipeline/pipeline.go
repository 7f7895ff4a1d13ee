// Package pipeline turns a careers page URL into one cold email draft per job posting.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spigell/cold-mailer/internal/jobs"
	"github.com/spigell/cold-mailer/internal/logger"
	"go.uber.org/zap"
)

const (
	StageFetch    = "fetch"
	StageExtract  = "extract"
	StageMatch    = "match"
	StageGenerate = "generate"
)

// Loader returns the visible text of a page.
type Loader interface {
	Load(ctx context.Context, url string) (string, error)
}

// Extractor turns page text into job postings.
type Extractor interface {
	Extract(ctx context.Context, pageText string) ([]jobs.Posting, error)
}

// Writer drafts the email for a posting and its portfolio links.
type Writer interface {
	Generate(ctx context.Context, posting jobs.Posting, links []string) (string, error)
}

// Deps aggregates the stages the pipeline runs.
type Deps struct {
	Loader    Loader
	Extractor Extractor
	Matcher   *Matcher
	Writer    Writer
	Logger    *zap.Logger
}

func (d Deps) validate() error {
	var errs []error
	if d.Loader == nil {
		errs = append(errs, errors.New("page loader is required"))
	}
	if d.Extractor == nil {
		errs = append(errs, errors.New("extractor is required"))
	}
	if d.Matcher == nil || d.Matcher.portfolio == nil {
		errs = append(errs, errors.New("portfolio matcher is required"))
	}
	if d.Writer == nil {
		errs = append(errs, errors.New("email writer is required"))
	}
	return errors.Join(errs...)
}

// Step describes one executed stage.
type Step struct {
	Stage    string
	Posting  int
	Duration time.Duration
}

type Pipeline struct {
	deps  Deps
	steps []Step
}

func New(deps Deps) (*Pipeline, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps}, nil
}

// Run fetches url, extracts its job postings and drafts an email for each of them in extraction order.
// Processing stops at the first failure and no drafts are returned in that case.
func (p *Pipeline) Run(ctx context.Context, url string) (*jobs.Drafts, error) {
	p.steps = nil
	log := logger.WithFields(p.deps.Logger, zap.String(logger.FieldURL, url))

	var pageText string
	err := p.step(ctx, log, StageFetch, 0, func(ctx context.Context) error {
		var err error
		pageText, err = p.deps.Loader.Load(ctx, url)
		return err
	})
	if err != nil {
		return nil, err
	}

	var postings []jobs.Posting
	err = p.step(ctx, log, StageExtract, 0, func(ctx context.Context) error {
		var err error
		postings, err = p.deps.Extractor.Extract(ctx, pageText)
		return err
	})
	if err != nil {
		return nil, err
	}

	drafts := &jobs.Drafts{Items: make([]*jobs.Draft, 0, len(postings))}
	if len(postings) == 0 {
		log.Info("no job postings found on the page")
		return drafts, nil
	}

	log.Info("processing job postings", zap.Int("count", len(postings)))

	for idx, posting := range postings {
		num := idx + 1
		postingLog := logger.WithFields(log, logger.PostingFields(num, posting.Role)...)

		var links []string
		err := p.step(ctx, postingLog, StageMatch, num, func(ctx context.Context) error {
			var err error
			links, err = p.deps.Matcher.Match(ctx, posting)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("posting %d (%s): %w", num, posting.Title(), err)
		}

		var text string
		err = p.step(ctx, postingLog, StageGenerate, num, func(ctx context.Context) error {
			var err error
			text, err = p.deps.Writer.Generate(ctx, posting, links)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("posting %d (%s): %w", num, posting.Title(), err)
		}

		drafts.Items = append(drafts.Items, &jobs.Draft{
			Posting: posting,
			Links:   links,
			Text:    text,
		})
	}

	log.Info("drafts ready", zap.Int("count", drafts.Len()))

	return drafts, nil
}

func (p *Pipeline) step(ctx context.Context, log *zap.Logger, stage string, posting int, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}

	log = logger.WithStage(log, stage)

	started := time.Now()
	err := fn(ctx)
	elapsed := time.Since(started)

	if err != nil {
		log.Warn("pipeline step failed", zap.Duration("duration", elapsed), zap.Error(err))
		return fmt.Errorf("%s: %w", stage, err)
	}

	p.steps = append(p.steps, Step{Stage: stage, Posting: posting, Duration: elapsed})
	log.Info("pipeline step", zap.Duration("duration", elapsed))

	return nil
}

// Steps returns the stages completed by the last Run.
func (p *Pipeline) Steps() []Step {
	return p.steps
}
