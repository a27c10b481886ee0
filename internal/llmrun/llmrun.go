// Package llmrun implements the one-shot `orchestra run "<task>"` CLI
// command: a single completion call against a configured OpenAI-compatible
// provider, with no standing autonomous loop. Adapted from the control
// plane's chat-completion provider for the bus's single-call use case.
package llmrun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/marcus-qen/orchestra/internal/config"
	"github.com/marcus-qen/orchestra/internal/telemetry"
)

const defaultSystemPrompt = `You are the orchestration bus's one-shot task runner. ` +
	`You do not have tool access in this mode: respond with a single, ` +
	`concise plan or answer for the given task. Do not ask clarifying ` +
	`questions; state your assumptions and proceed.`

// Request is a single completion call.
type Request struct {
	Task string
}

// Result is the outcome of a single completion call.
type Result struct {
	Content      string
	Model        string
	PromptTokens int
	CompTokens   int
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

type completionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Runner performs one-shot completions against cfg.LLM.
type Runner struct {
	cfg    config.LLMConfig
	client *http.Client
}

// New returns a Runner configured from cfg. cfg.Provider must be set;
// cfg.BaseURL defaults to the OpenAI API when empty.
func New(cfg config.LLMConfig) (*Runner, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llmrun: no LLM provider configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	return &Runner{cfg: cfg, client: &http.Client{Timeout: 120 * time.Second}}, nil
}

// Run sends task as a single user message and returns the model's reply.
func (r *Runner) Run(ctx context.Context, task string) (Result, error) {
	ctx, span := telemetry.StartLLMCallSpan(ctx, r.cfg.Model, r.cfg.Provider, 1)

	req := completionRequest{
		Model: r.cfg.Model,
		Messages: []message{
			{Role: "system", Content: defaultSystemPrompt},
			{Role: "user", Content: task},
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}

	resp, err := r.client.Do(httpReq)
	if err != nil {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: provider returned %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: parse response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		telemetry.EndLLMCallSpan(span, 0, 0, false)
		return Result{}, fmt.Errorf("llmrun: no choices in response")
	}

	telemetry.EndLLMCallSpan(span, int64(parsed.Usage.PromptTokens), int64(parsed.Usage.CompletionTokens), false)
	return Result{
		Content:      parsed.Choices[0].Message.Content,
		Model:        parsed.Model,
		PromptTokens: parsed.Usage.PromptTokens,
		CompTokens:   parsed.Usage.CompletionTokens,
	}, nil
}
