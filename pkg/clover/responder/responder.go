// Package responder implements the generative fallback behind the rule
// chain. It speaks the OpenAI-compatible chat completions format, which
// works with OpenAI, GLM (api.z.ai), Ollama, and any compatible endpoint.
package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jholhewres/clover/pkg/clover/config"
)

// exchange is one remembered question/answer pair.
type exchange struct {
	query string
	reply string
}

// Client talks to the chat completions endpoint and keeps a short rolling
// conversation history so follow-up questions stay coherent. Implements
// ports.Responder.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	persona      string
	historyLimit int
	httpClient   *http.Client
	logger       *slog.Logger

	mu      sync.Mutex
	history []exchange
}

// New creates a responder client from config.
func New(cfg *config.Config, logger *slog.Logger) *Client {
	baseURL := cfg.Responder.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	limit := cfg.Responder.HistoryLimit
	if limit <= 0 {
		limit = 10
	}

	return &Client{
		baseURL:      baseURL,
		apiKey:       cfg.Responder.APIKey,
		model:        cfg.Responder.Model,
		persona:      personaPrompt(cfg.Name, cfg.Language),
		historyLimit: limit,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger.With("component", "responder"),
	}
}

// personaPrompt builds the system prompt. Replies are fed straight into
// speech output, so the model is told to produce short plain text.
func personaPrompt(name, language string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, a personal voice assistant.", name)
	b.WriteString(" Your replies are spoken aloud: answer in one or two short sentences of plain conversational text, never markdown, never lists.")
	if language != "" {
		fmt.Fprintf(&b, " Answer in the language of locale %s unless asked otherwise.", language)
	}
	return b.String()
}

// ---------- Wire Types (OpenAI-compatible) ----------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ---------- Public Methods ----------

// Respond sends the query plus recent history and returns the reply text.
// An empty reply with nil error means the model had nothing to say; the
// caller decides what to tell the user.
func (c *Client) Respond(ctx context.Context, query string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured. Run 'clover secret set responder_api_key' or set CLOVER_API_KEY")
	}

	messages := c.buildMessages(query)

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Debug("sending chat completion",
		"model", c.model,
		"messages", len(messages),
		"endpoint", endpoint,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("API error",
			"status", resp.StatusCode,
			"body", truncate(string(respBody), 500),
		)
		return "", fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("parsing response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no response from model")
	}

	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)

	c.logger.Info("chat completion done",
		"model", c.model,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", chatResp.Usage.PromptTokens,
		"completion_tokens", chatResp.Usage.CompletionTokens,
	)

	if content != "" {
		c.remember(query, content)
	}
	return content, nil
}

// buildMessages assembles persona, rolling history, and the new query.
func (c *Client) buildMessages(query string) []chatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]chatMessage, 0, len(c.history)*2+2)
	messages = append(messages, chatMessage{Role: "system", Content: c.persona})
	for _, e := range c.history {
		messages = append(messages, chatMessage{Role: "user", Content: e.query})
		messages = append(messages, chatMessage{Role: "assistant", Content: e.reply})
	}
	messages = append(messages, chatMessage{Role: "user", Content: query})
	return messages
}

// remember appends an exchange, evicting the oldest past the limit.
func (c *Client) remember(query, reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, exchange{query: query, reply: reply})
	if len(c.history) > c.historyLimit {
		c.history = c.history[len(c.history)-c.historyLimit:]
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
