package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taoi11/somenewsfound/internal/config"
	"github.com/taoi11/somenewsfound/internal/ports"
)

const systemPrompt = "Clean up the following scraped news article text. " +
	"Remove navigation fragments, bylines, image captions and advertising " +
	"remnants. Return only the article body as plain text, unchanged in wording."

// OllamaClient implements ports.Normalizer against an Ollama chat endpoint.
type OllamaClient struct {
	baseURL    string
	model      string
	numCtx     int
	httpClient *http.Client
}

var _ ports.Normalizer = (*OllamaClient)(nil)

// NewOllamaClient builds a client from configuration.
func NewOllamaClient(cfg config.OllamaConfig) *OllamaClient {
	return &OllamaClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		model:   cfg.Model,
		numCtx:  cfg.NumCtx,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	NumCtx int `json:"num_ctx"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

// Normalize posts the raw content to the chat endpoint and returns the
// model's cleaned text. Any failure comes back as an error; the caller is
// contractually required to keep the raw content instead.
func (c *OllamaClient) Normalize(ctx context.Context, raw string) (string, error) {
	if c.baseURL == "" || c.model == "" {
		return "", fmt.Errorf("ollama client misconfigured")
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: raw},
		},
		Stream:  false,
		Options: chatOptions{NumCtx: c.numCtx},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post chat: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("ollama error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}

	text := strings.TrimSpace(decoded.Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty chat response")
	}
	return text, nil
}
