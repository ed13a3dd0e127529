package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/threadloom/threadloom/logging"
)

// Defaults for the OpenRouter client.
const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	DefaultTimeout = 60 * time.Second

	// Retry policy for transport timeouts: 3 attempts total, exponential
	// backoff from 2s capped at 10s.
	maxAttempts     = 3
	backoffInitial  = 2 * time.Second
	backoffInterval = 10 * time.Second
)

// Identification headers sent with every request.
const (
	refererHeader = "https://threadloom.local"
	titleHeader   = "Threadloom"
)

// OpenRouterConfig configures an OpenRouter client.
type OpenRouterConfig struct {
	// APIKey is the OpenRouter API key (required).
	APIKey string

	// BaseURL overrides the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string

	// Timeout is the per-request transport timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// HTTPClient overrides the transport. When set, Timeout is ignored.
	HTTPClient *http.Client

	// Logger receives the request/response events. Defaults to no-op.
	Logger logging.Logger
}

// OpenRouter calls LLM models through the OpenRouter chat-completions API.
// Transport timeouts are retried with exponential backoff; all HTTP error
// classes propagate immediately since a retry cannot fix them.
type OpenRouter struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  logging.Logger
}

// NewOpenRouter creates an OpenRouter client.
func NewOpenRouter(cfg OpenRouterConfig) *OpenRouter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &OpenRouter{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  client,
		logger:  logging.OrNoop(cfg.Logger),
	}
}

// Complete implements Client.
func (o *OpenRouter) Complete(ctx context.Context, req Request) (*Result, error) {
	o.logger.Info("gateway_request",
		"model", req.Model,
		"message_count", len(req.Messages),
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = backoffInitial
	policy.MaxInterval = backoffInterval
	policy.MaxElapsedTime = 0

	result, err := backoff.RetryWithData(func() (*Result, error) {
		res, err := o.doRequest(ctx, req)
		if err != nil {
			if isTransportTimeout(err) {
				o.logger.Warn("gateway_timeout_retry", "model", req.Model)
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			// Everything else is not fixable by retrying.
			return nil, backoff.Permanent(err)
		}
		return res, nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
	if err != nil {
		return nil, err
	}

	o.logger.Info("gateway_response",
		"model", result.Model,
		"tokens", result.Tokens,
		"finish_reason", result.FinishReason,
	)
	return result, nil
}

// chatResponse mirrors the OpenAI-compatible chat-completions wire format.
type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (o *OpenRouter) doRequest(ctx context.Context, req Request) (*Result, error) {
	payload := map[string]any{
		"model":       req.Model,
		"messages":    req.Messages,
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	for key, value := range req.Extra {
		payload[key] = value
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &BadRequestError{Detail: fmt.Sprintf("encode payload: %v", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("HTTP-Referer", refererHeader)
	httpReq.Header.Set("X-Title", titleHeader)

	resp, err := o.client.Do(httpReq)
	if err != nil {
		if isTransportTimeout(err) {
			return nil, err
		}
		return nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, o.classifyStatus(resp, raw)
	}

	var data chatResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: fmt.Sprintf("malformed response: %v", err)}
	}
	if len(data.Choices) == 0 {
		return nil, &UpstreamError{Status: resp.StatusCode, Detail: "response contained no choices"}
	}

	model := data.Model
	if model == "" {
		model = req.Model
	}
	finish := data.Choices[0].FinishReason
	if finish == "" {
		finish = "stop"
	}

	return &Result{
		Content:      data.Choices[0].Message.Content,
		Model:        model,
		Tokens:       data.Usage.TotalTokens,
		FinishReason: finish,
		Usage:        data.Usage,
	}, nil
}

func (o *OpenRouter) classifyStatus(resp *http.Response, raw []byte) error {
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := resp.Header.Get("Retry-After")
		if retryAfter == "" {
			retryAfter = "unknown"
		}
		o.logger.Warn("gateway_rate_limited", "retry_after", retryAfter)
		return &RateLimitError{RetryAfter: retryAfter}
	case http.StatusUnauthorized:
		o.logger.Error("gateway_auth_failed")
		return ErrAuthFailed
	case http.StatusBadRequest:
		detail := upstreamDetail(raw)
		o.logger.Error("gateway_bad_request", "detail", detail)
		return &BadRequestError{Detail: detail}
	default:
		detail := upstreamDetail(raw)
		o.logger.Error("gateway_upstream_error", "status", resp.StatusCode, "detail", detail)
		return &UpstreamError{Status: resp.StatusCode, Detail: detail}
	}
}

// upstreamDetail extracts the error message from an error response body,
// falling back to a truncated raw body.
func upstreamDetail(raw []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	detail := string(raw)
	if len(detail) > 200 {
		detail = detail[:200]
	}
	return detail
}

// isTransportTimeout reports whether err is a transport-level timeout, the
// only failure class worth retrying.
func isTransportTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
