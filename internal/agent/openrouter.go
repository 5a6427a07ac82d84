package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultModel   = "arcee-ai/trinity-large-preview:free"
	defaultBaseURL = "https://openrouter.ai/api/v1"
	maxTokens      = 500
)

// OpenRouter is a chat-completions decision provider.
type OpenRouter struct {
	apiKey  string
	model   string
	baseURL string
	referer string
	title   string
	client  *http.Client
}

func NewOpenRouter(apiKey, model string) *OpenRouter {
	if model == "" {
		model = DefaultModel
	}
	return &OpenRouter{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		referer: "https://antigravity.world",
		title:   "Antigravity Agent",
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

// SetBaseURL points the provider at a different endpoint (tests).
func (o *OpenRouter) SetBaseURL(u string) { o.baseURL = u }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenRouter) Decide(ctx context.Context, req Request) (Decision, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return Decision{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Decision{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("HTTP-Referer", o.referer)
	httpReq.Header.Set("X-Title", o.title)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		return Decision{}, fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Decision{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Decision{}, fmt.Errorf("openrouter status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var cr chatResponse
	if err := json.Unmarshal(raw, &cr); err != nil {
		return Decision{}, fmt.Errorf("openrouter response: %w", err)
	}
	if cr.Error != nil {
		return Decision{}, fmt.Errorf("openrouter error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return Decision{}, fmt.Errorf("openrouter returned no choices")
	}
	return ParseDecision(cr.Choices[0].Message.Content)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
