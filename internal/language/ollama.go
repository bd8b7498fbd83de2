package language

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

	"github.com/nerrad567/hearth/internal/infrastructure/config"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTokens = 256

	// errorBodyLimit caps how much of a failed response is kept for the error.
	errorBodyLimit = 2048
)

// OllamaClient is a Backend backed by an Ollama server.
type OllamaClient struct {
	endpoint  string
	model     string
	maxTokens int
	client    *http.Client
	logger    Logger
}

// NewOllamaClient creates a client from cfg. A zero timeout or token limit
// falls back to 30s and 256 tokens.
func NewOllamaClient(cfg config.LanguageConfig) *OllamaClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &OllamaClient{
		endpoint:  strings.TrimRight(cfg.Endpoint, "/"),
		model:     cfg.Model,
		maxTokens: maxTokens,
		client:    &http.Client{Timeout: timeout},
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger.
func (c *OllamaClient) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// Model returns the configured model name.
func (c *OllamaClient) Model() string { return c.model }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateResponse struct {
	Response     string `json:"response"`
	Done         bool   `json:"done"`
	EvalCount    int    `json:"eval_count"`
	EvalDuration int64  `json:"eval_duration"` // nanoseconds
}

// Infer implements Backend using POST /api/generate.
func (c *OllamaClient) Infer(ctx context.Context, prompt string) (Inference, error) {
	start := time.Now()

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: generateOptions{Temperature: 0, TopP: 0.9, NumPredict: c.maxTokens},
	})
	if err != nil {
		return Inference{}, fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return Inference{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Inference{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit)) //nolint:errcheck // best effort detail
		err := fmt.Errorf("ollama status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusNotFound {
			// 404 is Ollama's answer for a model that is not pulled.
			return Inference{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return Inference{}, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if isTimeout(ctx, err) {
			return Inference{}, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		return Inference{}, fmt.Errorf("%w: decoding response: %w", ErrMalformedOutput, err)
	}
	if strings.TrimSpace(out.Response) == "" {
		return Inference{}, fmt.Errorf("%w: empty response", ErrMalformedOutput)
	}

	inf := Inference{
		Text:         out.Response,
		EvalCount:    out.EvalCount,
		EvalDuration: time.Duration(out.EvalDuration),
		Elapsed:      time.Since(start),
	}
	c.logger.Debug("inference complete",
		"model", c.model,
		"elapsed_ms", inf.Elapsed.Milliseconds(),
		"tokens", inf.EvalCount,
	)
	return inf, nil
}

// Ping checks that the server is up via GET /api/tags.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: ollama status %d", ErrBackendUnavailable, resp.StatusCode)
	}
	return nil
}

func isTimeout(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
