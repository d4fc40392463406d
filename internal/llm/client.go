// Package llm wraps the chat-completions API used by the LLM price model:
// prompt construction, JSON-mode calls with retry, and strict response
// validation.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Error classes for failed completions
const (
	ClassRateLimited   = "rate_limited"
	ClassOverloaded    = "overloaded"
	ClassUnsafeContent = "unsafe_content"
	ClassMalformed     = "malformed"
	ClassNetwork       = "network"
	ClassAuth          = "auth"
)

// APIError is a classified completion failure.
type APIError struct {
	Class      string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm %s (status %d): %s", e.Class, e.StatusCode, e.Message)
}

// Transient reports whether the error class is worth retrying.
func (e *APIError) Transient() bool {
	switch e.Class {
	case ClassRateLimited, ClassOverloaded, ClassNetwork:
		return true
	}
	return false
}

// Client calls the chat-completions endpoint.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a completions client. maxRetries counts attempts, so 3
// means one call plus up to two retries with exponential backoff.
func NewClient(apiKey, model, baseURL string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		backoff:    time.Second,
	}
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float64       `json:"temperature"`
	ResponseFormat *respFormat   `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type respFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete sends a system+user prompt pair and returns the raw assistant
// content. Transient failures (rate limit, overload, network) are retried
// with exponential backoff; other classes surface immediately.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	if c.apiKey == "" {
		return "", &APIError{Class: ClassAuth, Message: "missing API key"}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(1<<(attempt-1))
			log.Printf("llm: retrying in %s (attempt %d/%d)", wait, attempt+1, c.maxRetries)
			select {
			case <-ctx.Done():
				return "", &APIError{Class: ClassNetwork, Message: ctx.Err().Error()}
			case <-time.After(wait):
			}
		}

		content, err := c.doRequest(ctx, systemPrompt, userPrompt, jsonMode)
		if err == nil {
			return content, nil
		}
		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.Transient() {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) doRequest(ctx context.Context, systemPrompt, userPrompt string, jsonMode bool) (string, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.2,
	}
	if jsonMode {
		reqBody.ResponseFormat = &respFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", &APIError{Class: ClassMalformed, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &APIError{Class: ClassNetwork, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &APIError{Class: ClassNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIError{Class: ClassNetwork, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &APIError{Class: ClassMalformed, StatusCode: resp.StatusCode, Message: err.Error()}
	}
	if parsed.Error != nil {
		return "", &APIError{Class: ClassMalformed, StatusCode: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return "", &APIError{Class: ClassMalformed, StatusCode: resp.StatusCode, Message: "no choices in response"}
	}
	return parsed.Choices[0].Message.Content, nil
}

func classifyHTTPError(status int, body []byte) *APIError {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return &APIError{Class: ClassRateLimited, StatusCode: status, Message: msg}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &APIError{Class: ClassAuth, StatusCode: status, Message: msg}
	case status == http.StatusBadRequest:
		return &APIError{Class: ClassUnsafeContent, StatusCode: status, Message: msg}
	case status >= 500:
		return &APIError{Class: ClassOverloaded, StatusCode: status, Message: msg}
	default:
		return &APIError{Class: ClassMalformed, StatusCode: status, Message: msg}
	}
}
