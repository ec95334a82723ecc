// Package ai proxies farmer questions to the upstream generative-language
// API and normalises its free-text output into a structured answer.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kisansathi/gateway/pkg/logger"
)

// DefaultLanguage is used when neither the model nor the caller supplies one.
const DefaultLanguage = "hi-IN"

// AskRequest is the inbound question envelope.
type AskRequest struct {
	Query      string         `json:"query" validate:"required"`
	Section    string         `json:"section"`
	TargetLang string         `json:"targetLang"`
	UserLocale string         `json:"userLocale"`
	Context    map[string]any `json:"context"`
}

// Answer is the normalised response returned to clients.
type Answer struct {
	Answer    string `json:"answer"`
	Language  string `json:"language"`
	Timestamp string `json:"timestamp"`
	Model     string `json:"model"`
	Source    string `json:"source"`
}

// Config holds upstream connection settings.
type Config struct {
	BaseURL string
	Model   string
	APIKey  string
	Timeout time.Duration
}

// Client calls the upstream model endpoint.
type Client struct {
	baseURL string
	model   string
	apiKey  string
	client  *http.Client
	now     func() time.Time
	log     *zap.Logger
}

// Option customises the Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for upstream calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithNow overrides the clock used for answer timestamps.
func WithNow(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a Client.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("ai: base url is required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("ai: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		now:     time.Now,
		log:     logger.WithModule("ai"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Ask sends the question upstream and normalises the response. Malformed
// model output never propagates raw: the parse pipeline degrades to a
// best-effort fallback answer instead.
func (c *Client) Ask(ctx context.Context, req AskRequest) (*Answer, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Role:  "user",
			Parts: []part{{Text: systemPrompt + "\n\n" + userPrompt(req)}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("ai: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ai: upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.log.Error("upstream model request failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("detail", detail),
		)
		return nil, fmt.Errorf("ai: upstream returned %d", resp.StatusCode)
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("ai: decode upstream response: %w", err)
	}

	var text string
	if len(decoded.Candidates) > 0 && len(decoded.Candidates[0].Content.Parts) > 0 {
		text = decoded.Candidates[0].Content.Parts[0].Text
	}

	answer := buildAnswer(text, req)
	answer.Model = c.model
	answer.Source = "gemini-ai"
	answer.Timestamp = c.now().UTC().Format(time.RFC3339)
	return &answer, nil
}

const systemPrompt = `You are an expert agricultural advisor for Indian farmers with 20+ years of field experience.

CRITICAL INSTRUCTIONS:
1. Answer EXACTLY what the farmer asks - be specific and direct
2. Use the SAME LANGUAGE as the user's question
3. Give practical, actionable advice for Indian farming conditions
4. Include specific quantities, timings, and methods
5. Mention local/Indian product names when possible
6. Keep responses under 100 words but complete
7. If unsure, say "consult local agricultural officer"

Return JSON: { "language": "hi-IN", "answer": "direct-specific-answer" }`

func userPrompt(req AskRequest) string {
	target := req.TargetLang
	if target == "" {
		target = "same as question"
	}

	contextLine := "General farming query"
	if req.Context != nil {
		if _, ok := req.Context["agricultural_context"]; ok {
			contextLine = "Agricultural advice needed"
		}
	}

	return fmt.Sprintf("FARMER'S QUESTION: %q\nTARGET LANGUAGE: %s\nCONTEXT: %s\n\nProvide specific, actionable farming advice in JSON format. Answer exactly what the farmer asked.",
		req.Query, target, contextLine)
}
