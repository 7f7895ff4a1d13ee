package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spigell/cold-mailer/internal/ai"
	"github.com/spigell/cold-mailer/internal/logger"
	"github.com/spigell/cold-mailer/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

const (
	Provider     = "gemini"
	defaultModel = "gemini-2.5-flash"

	defaultTimeout = 60 * time.Second
	baseBackoff    = 2 * time.Second
	maxBackoff     = 30 * time.Second
	// Quota errors asking to wait longer than this are not retried.
	maxQuotaDelay = 30 * time.Second
)

var wait = utils.WaitFor

var retryDelayPattern = regexp.MustCompile(`(?i)retry (?:after|in) ([0-9]+(?:\.[0-9]+)?)\s*(s|sec|secs|seconds)?\b`)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Options tune the generator behaviour. Zero values fall back to defaults.
type Options struct {
	Model       string
	MaxAttempts int
	Timeout     time.Duration
}

// Generator wraps the Google GenAI chat API with bounded retries.
type Generator struct {
	chats       chatCreator
	model       string
	maxAttempts int
	timeout     time.Duration
	logger      *zap.Logger
}

// NewClient creates a genai client for the Gemini API backend.
func NewClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return client, nil
}

// NewGenerator creates a Generator on top of an existing genai client.
func NewGenerator(client *genai.Client, opts Options, log *zap.Logger) (*Generator, error) {
	if client == nil {
		return nil, errors.New("genai client is required")
	}

	return newGenerator(genaiChats{chats: client.Chats}, opts, log), nil
}

func newGenerator(chats chatCreator, opts Options, log *zap.Logger) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Generator{
		chats:       chats,
		model:       model,
		maxAttempts: attempts,
		timeout:     timeout,
		logger:      logger.WithCommonFields(log, Provider, model),
	}
}

// GenerateContent sends the message with the system instruction and returns the textual response.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", g.modelError(errors.New("gemini generator is not initialized"))
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", g.modelError(errors.New("message must not be empty"))
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr[float32](0),
	}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		output, err := g.send(ctx, config, message)
		if err == nil {
			return output, nil
		}
		lastErr = err

		if attempt == g.maxAttempts || ctx.Err() != nil {
			break
		}

		delay, retry := retryDelay(err, attempt)
		if !retry {
			g.logger.Debug("gemini error is not retryable", zap.Int("attempt", attempt), zap.Error(err))
			break
		}

		g.logger.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", g.maxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", g.modelError(errors.Join(lastErr, err))
		}
	}

	return "", g.modelError(lastErr)
}

func (g *Generator) send(ctx context.Context, config *genai.GenerateContentConfig, message string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	chat, err := g.chats.Create(callCtx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(callCtx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	return responseText(resp)
}

func (g *Generator) modelError(err error) error {
	model := ""
	if g != nil {
		model = g.model
	}
	return &ai.ModelError{Provider: Provider, Model: model, Op: "generate content", Cause: err}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Text == "" {
				continue
			}
			builder.WriteString(part.Text)
		}
		// only the first candidate with content is used
		if builder.Len() > 0 {
			break
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// retryDelay reports whether err is worth another attempt and how long to wait before it.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	backoff := baseBackoff << (attempt - 1)
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			if delay, ok := quotaDelay(apiErr); ok {
				if delay > maxQuotaDelay {
					return 0, false
				}
				return delay, true
			}
			return backoff, true
		case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return backoff, true
		default:
			return 0, false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return backoff, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return backoff, true
	}

	return 0, false
}

func quotaDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		kind, _ := detail["@type"].(string)
		if !strings.HasSuffix(kind, "RetryInfo") {
			continue
		}
		raw, _ := detail["retryDelay"].(string)
		if d, err := time.ParseDuration(strings.TrimSpace(raw)); err == nil {
			return d, true
		}
	}

	match := retryDelayPattern.FindStringSubmatch(apiErr.Message)
	if len(match) < 2 {
		return 0, false
	}

	seconds, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, false
	}

	return time.Duration(seconds * float64(time.Second)), true
}
