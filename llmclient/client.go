package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"nomadmatch/config"

	"go.uber.org/zap"
)

// ErrContextWindowExceeded is returned when the model reports the prompt
// exceeds the available context size.
var ErrContextWindowExceeded = errors.New("context window exceeded")

// Message is one chat turn in the OpenAI-compatible schema.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"` // Per-request temperature override
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// embeddingRequest carries the text under both the llama.cpp ("content") and
// OpenAI ("input") field names.
type embeddingRequest struct {
	Content string `json:"content"`
	Input   string `json:"input"`
}

// OpenAI-style response
type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// llama.cpp native response
type nativeEmbeddingResponse []struct {
	Embedding [][]float32 `json:"embedding"`
}

type Client struct {
	cfg        *config.Config
	httpClient *http.Client
	logger     *zap.Logger
}

func New(cfg *config.Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.LLMRequestTimeout},
		logger:     logger,
	}
}

// Chat performs a non-streaming chat completion call.
// temperature is optional; pass nil to use server default.
func (c *Client) Chat(ctx context.Context, host string, messages []Message, temperature *float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Messages:    messages,
		Stream:      false,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	bodyBytes, err := c.post(ctx, endpoint(host, "/v1/chat/completions"), body, "chat")
	if err != nil {
		return "", err
	}

	var cr chatResponse
	if err := json.Unmarshal(bodyBytes, &cr); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no response choices from llm server")
	}
	return cr.Choices[0].Message.Content, nil
}

// Embed generates an embedding vector for the provided document using the
// llama.cpp-compatible embeddings endpoint.
func (c *Client) Embed(ctx context.Context, host string, doc string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Content: doc, Input: doc})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	bodyBytes, err := c.post(ctx, endpoint(host, "/v1/embeddings"), body, "embedding")
	if err != nil {
		return nil, err
	}
	return decodeEmbedding(bodyBytes)
}

func decodeEmbedding(bodyBytes []byte) ([]float32, error) {
	var er embeddingResponse
	if err := json.Unmarshal(bodyBytes, &er); err == nil && len(er.Data) > 0 && len(er.Data[0].Embedding) > 0 {
		return er.Data[0].Embedding, nil
	}

	var native nativeEmbeddingResponse
	if err := json.Unmarshal(bodyBytes, &native); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if len(native) == 0 || len(native[0].Embedding) == 0 || len(native[0].Embedding[0]) == 0 {
		return nil, fmt.Errorf("embedding response was empty")
	}
	return native[0].Embedding[0], nil
}

// post sends body to url, retrying while the model server reports 503 (model
// loading). Transport errors are not retried once ctx is done.
func (c *Client) post(ctx context.Context, url string, body []byte, label string) ([]byte, error) {
	var resp *http.Response
	var lastErr error
	attempts := max(c.cfg.MaxRetries, 1)
	for attempt := 0; attempt < attempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", label, err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			// Do not retry on context cancellation/deadline
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if r.StatusCode == http.StatusServiceUnavailable {
			io.Copy(io.Discard, r.Body)
			r.Body.Close()
			lastErr = fmt.Errorf("%s server unavailable", label)
			c.logger.Warn("LLM service unavailable, retrying",
				zap.String("request", label),
				zap.Int("attempt", attempt+1))
			if err := c.backoffSleep(ctx, attempt); err != nil {
				lastErr = err
				break
			}
			continue
		}

		resp = r
		break
	}
	if resp == nil {
		return nil, fmt.Errorf("no response from %s server: %w", label, lastErr)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", label, err)
	}
	if resp.StatusCode != http.StatusOK {
		if strings.Contains(string(bodyBytes), "exceeds the available context size") {
			return nil, ErrContextWindowExceeded
		}
		return nil, fmt.Errorf("%s server status %s: %s", label, resp.Status, strings.TrimSpace(string(bodyBytes)))
	}
	return bodyBytes, nil
}

// backoffSleep waits with exponential backoff, jitter and a cap. It returns
// early with ctx's error when the context ends first.
func (c *Client) backoffSleep(ctx context.Context, attempt int) error {
	timer := time.NewTimer(c.backoffDelay(attempt))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	base := c.cfg.RetryDelaySeconds
	if base <= 0 {
		base = time.Second // config normalization should prevent this
	}
	d := base * time.Duration(1<<attempt)
	if maxWait := c.cfg.LLMBackoffMaxSeconds; maxWait > 0 && d > maxWait {
		d = maxWait
	}
	jitterRatio := c.cfg.LLMBackoffJitterRatio
	if jitterRatio < 0 || jitterRatio > 1 {
		jitterRatio = 0.1
	}
	jitter := time.Duration(float64(d) * jitterRatio)
	if jitter <= 0 {
		return d
	}
	return d - jitter + time.Duration(rand.Int63n(int64(2*jitter)+1))
}

func endpoint(host, path string) string {
	return strings.TrimRight(host, "/") + path
}
