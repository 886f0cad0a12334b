package generate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/platinummonkey/inkwell/pkg/apperr"
	"github.com/platinummonkey/inkwell/pkg/async"
	"github.com/platinummonkey/inkwell/pkg/auth"
	"github.com/platinummonkey/inkwell/pkg/observability"
	"github.com/platinummonkey/inkwell/pkg/storage"
)

// ServiceOpenAI is the only provider API keys can be registered for
const ServiceOpenAI = "openai"

// Key sources reported in metrics and results
const (
	KeySourceUser   = "user"
	KeySourceSystem = "system"
)

// Client-facing messages
const (
	MsgNoAPIKey       = "No valid API key found for OpenAI"
	MsgRateLimited    = "API rate limit exceeded. Please try again later."
	MsgInvalidAPIKey  = "Invalid API key"
	MsgGenerateFailed = "Failed to generate content"
)

const (
	DefaultModel       = string(openai.ChatModelGPT4oMini)
	DefaultTemperature = 0.7
	touchTimeout       = 5 * time.Second
)

// Config holds generation settings
type Config struct {
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	SystemAPIKey string        `yaml:"system_api_key"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	// RateLimitPerMinute bounds generate calls per user
	RateLimitPerMinute int `yaml:"rate_limit_per_minute"`
}

// KeyStore is the persistence the client needs to pick and touch user keys
type KeyStore interface {
	GetActiveAPIKey(ctx context.Context, userID, service string) (*storage.APIKey, error)
	TouchAPIKey(ctx context.Context, id string, at time.Time) error
}

// Request is a single generation request. MaxTokens is already clamped.
type Request struct {
	Prompt    string
	MaxTokens int
}

// Result is the generated text with usage details
type Result struct {
	Content          string
	Model            string
	KeySource        string
	PromptTokens     int64
	CompletionTokens int64
}

// Client calls the OpenAI API on behalf of callers
type Client struct {
	cfg     Config
	keys    KeyStore
	metrics *observability.Metrics
	tasks   *async.Tracker
	opts    []option.RequestOption
}

// NewClient creates a generation client. tasks may be nil, in which case
// key touches run untracked. extra options are appended to every request
// and exist mainly for tests.
func NewClient(cfg Config, keys KeyStore, metrics *observability.Metrics, tasks *async.Tracker, extra ...option.RequestOption) *Client {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	opts := []option.RequestOption{option.WithMaxRetries(cfg.MaxRetries)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	opts = append(opts, extra...)

	return &Client{
		cfg:     cfg,
		keys:    keys,
		metrics: metrics,
		tasks:   tasks,
		opts:    opts,
	}
}

// Model returns the configured chat model
func (c *Client) Model() string {
	return c.cfg.Model
}

// HasSystemKey reports whether callers without their own key can generate
func (c *Client) HasSystemKey() bool {
	return c.cfg.SystemAPIKey != ""
}

// Generate runs a chat completion for caller
func (c *Client) Generate(ctx context.Context, caller *auth.User, req Request) (*Result, error) {
	ctx, span := observability.Tracer("inkwell/generate").Start(ctx, "generate.Generate")
	defer span.End()

	logger := observability.FromContext(ctx)

	key, source, userKey, err := c.selectKey(ctx, caller)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("generate.key_source", source),
		attribute.String("generate.model", c.cfg.Model),
		attribute.Int("generate.max_tokens", req.MaxTokens),
	)

	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, c.opts...)...)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.cfg.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(DefaultTemperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		mapped := mapProviderError(err)
		c.metrics.RecordGeneration(apperr.KindOf(mapped).String(), source, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider call failed")
		logger.WithError(err).WithField("key_source", source).Warn("Generation request failed")
		return nil, mapped
	}
	if len(resp.Choices) == 0 {
		c.metrics.RecordGeneration("empty", source, time.Since(start))
		return nil, apperr.Upstream(MsgGenerateFailed, errors.New("no choices in response"))
	}
	c.metrics.RecordGeneration("ok", source, time.Since(start))

	if userKey != nil {
		c.touch(ctx, userKey.ID)
	}

	logger.WithFields(map[string]interface{}{
		"model":             c.cfg.Model,
		"key_source":        source,
		"duration_ms":       time.Since(start).Milliseconds(),
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	}).Debug("Generation completed")

	return &Result{
		Content:          strings.TrimSpace(resp.Choices[0].Message.Content),
		Model:            c.cfg.Model,
		KeySource:        source,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// VerifyKey checks a raw key against the provider by listing models
func (c *Client) VerifyKey(ctx context.Context, key string) (bool, error) {
	client := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(key)}, c.opts...)...)
	if _, err := client.Models.List(ctx); err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && (apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (c *Client) selectKey(ctx context.Context, caller *auth.User) (string, string, *storage.APIKey, error) {
	if caller != nil {
		k, err := c.keys.GetActiveAPIKey(ctx, caller.ID, ServiceOpenAI)
		switch {
		case err == nil:
			return k.Key, KeySourceUser, k, nil
		case !errors.Is(err, storage.ErrNotFound):
			return "", "", nil, apperr.Internal("failed to load api key", err)
		}
	}
	if c.cfg.SystemAPIKey != "" {
		return c.cfg.SystemAPIKey, KeySourceSystem, nil, nil
	}
	return "", "", nil, apperr.Validation(MsgNoAPIKey)
}

func (c *Client) touch(ctx context.Context, keyID string) {
	fn := func(ctx context.Context) error {
		return c.keys.TouchAPIKey(ctx, keyID, time.Now().UTC())
	}
	if c.tasks == nil {
		async.SafeGo(ctx, touchTimeout, "api key touch", fn)
		return
	}
	if !c.tasks.Go(ctx, touchTimeout, "api key touch", fn) {
		observability.FromContext(ctx).
			WithField("api_key_id", keyID).
			Warn("Skipping api key touch: shutting down")
	}
}

func mapProviderError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests:
			return apperr.Wrap(apperr.KindRateLimited, MsgRateLimited, err)
		case http.StatusUnauthorized:
			return apperr.Wrap(apperr.KindValidation, MsgInvalidAPIKey, err)
		}
	}
	return apperr.Upstream(MsgGenerateFailed, err)
}
