// Package client wraps the generative model calls used for lead discovery
// and enrichment: grounded Gemini prompts with rate-limit retries and
// JSON extraction with an optional fallback model.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"crescoflow/platform/logger"
	"crescoflow/platform/metrics"

	"google.golang.org/genai"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
)

// Generator is the subset of the genai models service in use.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Models names the model of every phase.
type Models struct {
	Discovery  string
	Research   string
	Extraction string
}

// Client runs prompts against Gemini.
type Client struct {
	gen        Generator
	models     Models
	log        *logger.Logger
	retries    int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures a Client.
type Option func(*Client)

// WithRetry sets how often a rate-limited call is retried and the first
// delay; each retry doubles the delay.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.retryDelay = delay
	}
}

// WithSleeper replaces the wall-clock wait between retries.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

func New(gen Generator, models Models, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		gen:        gen,
		models:     models,
		log:        log.WithComponent("gemini"),
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewGemini connects to the Gemini API.
func NewGemini(ctx context.Context, apiKey string, models Models, log *logger.Logger, opts ...Option) (*Client, error) {
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return New(gc.Models, models, log, opts...), nil
}

func (c *Client) Models() Models { return c.models }

// Generate runs one prompt and returns the response text.
func (c *Client) Generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		resp, err := c.gen.GenerateContent(ctx, model, genai.Text(prompt), cfg)
		if err == nil {
			return resp.Text(), nil
		}
		if !IsRateLimited(err) || attempt >= c.retries {
			metrics.RecordIntegrationError("gemini")
			return "", fmt.Errorf("gemini %s: %w", model, err)
		}

		c.log.Warn("gemini rate limited, retrying", "model", model, "delay", delay, "left", c.retries-attempt)
		if err := c.sleep(ctx, delay); err != nil {
			return "", err
		}
		delay *= 2
	}
}

// IsRateLimited reports whether err is a quota or rate-limit rejection.
func IsRateLimited(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED"
	}
	return strings.Contains(err.Error(), "429")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
