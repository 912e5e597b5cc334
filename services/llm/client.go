// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package llm implements the C6 LLM Client: a single HTTP client against
// one configurable local model completion endpoint, with bounded retry,
// JSON-mode validation, and credential redaction on every logged prompt
// and response. Concurrency capping and result caching are out of scope
// here by design — those live in the concurrency layer (C10), which
// wraps Complete rather than duplicating its retry logic.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/awnumar/memguard"
	"github.com/cenkalti/backoff/v4"

	"github.com/pathlore/pathlore/services/config"
	"github.com/pathlore/pathlore/services/perr"
)

// Mode selects how Complete validates and unwraps the model's response.
type Mode string

const (
	ModeText Mode = "text"
	ModeJSON Mode = "json"
)

// GenerationParams controls a single completion call.
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
	Mode        Mode
}

// completionRequest is the wire format posted to the configured local
// model endpoint. It follows the Ollama-style /api/generate shape, the
// most common local-model server contract in the ecosystem.
type completionRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options options `json:"options,omitempty"`
	Format  string  `json:"format,omitempty"`
}

type options struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type completionResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// MetricsRecorder receives per-call timing and failure counts. Observers
// (the observability package's Prometheus registry) implement this
// without the llm package needing to import anything Prometheus-shaped.
type MetricsRecorder interface {
	ObserveLLMRequest(mode string, seconds float64)
	IncLLMRequestFailure()
}

type noopMetrics struct{}

func (noopMetrics) ObserveLLMRequest(string, float64) {}
func (noopMetrics) IncLLMRequestFailure()             {}

// Client talks to a single configurable local model completion endpoint.
// It is safe for concurrent use; each Complete call is independent and
// carries no memory of prior calls.
type Client struct {
	httpClient    *http.Client
	endpointURL   string
	model         string
	retryAttempts int
	credential    *memguard.Enclave
	metrics       MetricsRecorder
}

// SetMetrics attaches a metrics sink; nil is replaced with a no-op so
// callers may omit it entirely in tests.
func (c *Client) SetMetrics(m MetricsRecorder) {
	if m == nil {
		m = noopMetrics{}
	}
	c.metrics = m
}

// New builds a Client from resolved configuration. If apiKey is non-empty
// it is locked in an mlock'd enclave and attached as a bearer token on
// every request; most local model servers need no credential at all, so
// an empty apiKey is the common case.
func New(cfg *config.Config, apiKey string) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: cfg.LLMTimeout},
		endpointURL:   cfg.LLMEndpointURL,
		model:         cfg.LLMModelName,
		retryAttempts: cfg.LLMRetryAttempts,
		metrics:       noopMetrics{},
	}
	if apiKey != "" {
		c.credential = memguard.NewEnclave([]byte(apiKey))
	}
	return c
}

// Complete generates text for prompt. In ModeJSON, the response is
// stripped of any surrounding markdown code fence and validated as JSON
// before being returned; a response that still fails to parse as JSON
// after stripping counts as a transient failure and is retried like a
// network error. Complete never retries on a caller-cancelled context.
func (c *Client) Complete(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	logger := slog.Default().With("component", "llm.Client", "model", c.model, "mode", params.Mode)
	start := time.Now()

	var result string
	attempt := 0
	op := func() error {
		attempt++
		out, err := c.doRequest(ctx, prompt, params)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			logger.Warn("llm request failed, will retry", "attempt", attempt, "error", SafeLogString(err.Error()))
			return err
		}
		if params.Mode == ModeJSON {
			cleaned, verr := stripAndValidateJSON(out)
			if verr != nil {
				logger.Warn("llm json validation failed, will retry", "attempt", attempt, "error", verr.Error())
				return verr
			}
			out = cleaned
		}
		result = out
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.retryAttempts))
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		c.metrics.IncLLMRequestFailure()
		if ctx.Err() != nil {
			return "", perr.NewCancelled(ctx.Err())
		}
		return "", perr.NewLlmUnavailable("llm completion failed after retries", err)
	}

	c.metrics.ObserveLLMRequest(string(params.Mode), time.Since(start).Seconds())
	logger.Debug("llm completion succeeded", "attempts", attempt, "response", SafeLogString(result))
	return result, nil
}

func (c *Client) doRequest(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	reqBody := completionRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		Options: options{
			Temperature: params.Temperature,
			NumPredict:  params.MaxTokens,
		},
	}
	if params.Mode == ModeJSON {
		reqBody.Format = "json"
	}

	raw, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.credential != nil {
		buf, err := c.credential.Open()
		if err != nil {
			return "", fmt.Errorf("open credential enclave: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+string(buf.Bytes()))
		buf.Destroy()
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read completion response: %w", err)
	}

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, SafeLogString(string(body)))
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("completion endpoint returned %d: %s", resp.StatusCode, SafeLogString(string(body))))
	}

	var parsed completionResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("unmarshal completion response: %w", err)
	}

	return parsed.Response, nil
}

// stripAndValidateJSON removes a surrounding ```json ... ``` or ``` ... ```
// fence if present, then confirms the remainder parses as JSON.
func stripAndValidateJSON(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var v any
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return "", fmt.Errorf("response is not valid json: %w", err)
	}
	return trimmed, nil
}
