package translator

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/mkaplan/chapterwise/internal/placeholder"
)

// OpenAIConfig holds configuration for the OpenAI-backed translator.
type OpenAIConfig struct {
	APIKey            string
	Model             string
	Temperature       float64
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
	BaseURL           string       // Optional (tests, proxies)
	HTTPClient        *http.Client // Optional (tests)
}

// OpenAITranslator implements Translator over the OpenAI chat API. Each
// call is rate limited, retried with backoff, and validated against the
// placeholder contract before it counts as a success.
type OpenAITranslator struct {
	client      openai.Client
	model       string
	temperature float64
	limiter     *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
	format      placeholder.Format
	logger      *slog.Logger
}

// NewOpenAITranslator creates a translator emitting and validating tokens
// of the given placeholder format.
func NewOpenAITranslator(cfg OpenAIConfig, format placeholder.Format, logger *slog.Logger) *OpenAITranslator {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAITranslator{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		limiter:     NewRateLimiter(cfg.RequestsPerMinute),
		maxRetries:  cfg.MaxRetries,
		retryDelay:  cfg.RetryDelay,
		format:      format,
		logger:      logger,
	}
}

// Name returns the provider identifier.
func (t *OpenAITranslator) Name() string { return "openai" }

// TranslateChunk translates one chunk, retrying transport errors and
// placeholder violations up to the configured attempt count. A result
// that drops, invents, or duplicates a placeholder token is treated the
// same as a failed request.
func (t *OpenAITranslator) TranslateChunk(ctx context.Context, req Request) (string, error) {
	var result string
	err := retry.Do(
		func() error {
			if err := t.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}
			out, err := t.callOnce(ctx, req)
			if err != nil {
				return err
			}
			if err := t.format.ValidateTokens(req.Text, out); err != nil {
				t.logger.Warn("translation violated placeholder contract, retrying", "error", err)
				return err
			}
			result = out
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(uint(t.maxRetries)),
		retry.Delay(t.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslationFailed, err)
	}
	ls := t.limiter.Status()
	t.logger.Debug("chunk translated",
		"model", t.model,
		"requests_total", ls.TotalConsumed,
		"rate_limited_total", ls.TotalWaited)
	return result, nil
}

func (t *OpenAITranslator) callOnce(ctx context.Context, req Request) (string, error) {
	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(t.systemPrompt(req)),
			openai.UserMessage(req.Text),
		},
		Temperature: openai.Float(t.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion: empty choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", fmt.Errorf("openai chat completion: empty content")
	}
	return out, nil
}

func (t *OpenAITranslator) systemPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional translator. Translate the user's text from %s to %s.\n",
		req.SourceLanguage, req.TargetLanguage)
	fmt.Fprintf(&b, "The text contains placeholder tokens like %s. ", t.format.Token(0))
	b.WriteString("Keep every placeholder token exactly as written, in a position matching its role in the sentence. ")
	b.WriteString("Never translate, renumber, remove, or add placeholder tokens. ")
	b.WriteString("Return only the translated text.")
	if req.Context != "" {
		b.WriteString("\n\nThe preceding passage was translated as:\n")
		b.WriteString(req.Context)
	}
	return b.String()
}
