package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/cenkalti/backoff/v4"

	"github.com/threadloom/threadloom/logging"
	"github.com/threadloom/threadloom/types"
)

// anthropicDefaultMaxTokens is used when the request does not limit response
// length; the Anthropic API requires an explicit max_tokens.
const anthropicDefaultMaxTokens = 4096

// Anthropic calls Claude models directly through the Anthropic API instead of
// routing through OpenRouter. It implements the same Client contract,
// including the timeout-only retry policy and the shared error taxonomy.
type Anthropic struct {
	client *anthropic.Client
	logger logging.Logger
}

// NewAnthropic creates a native Anthropic gateway client.
func NewAnthropic(client *anthropic.Client, logger logging.Logger) *Anthropic {
	return &Anthropic{
		client: client,
		logger: logging.OrNoop(logger),
	}
}

// Complete implements Client.
func (a *Anthropic) Complete(ctx context.Context, req Request) (*Result, error) {
	a.logger.Info("gateway_request",
		"model", req.Model,
		"message_count", len(req.Messages),
	)

	params := a.buildParams(req)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = backoffInitial
	policy.MaxInterval = backoffInterval
	policy.MaxElapsedTime = 0

	message, err := backoff.RetryWithData(func() (*anthropic.Message, error) {
		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			if isTransportTimeout(err) {
				a.logger.Warn("gateway_timeout_retry", "model", req.Model)
				return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
			}
			return nil, backoff.Permanent(a.classifyError(err))
		}
		return msg, nil
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxAttempts-1), ctx))
	if err != nil {
		return nil, err
	}

	var content strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	usage := Usage{
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
		TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
	}
	result := &Result{
		Content:      content.String(),
		Model:        req.Model,
		Tokens:       usage.TotalTokens,
		FinishReason: string(message.StopReason),
		Usage:        usage,
	}

	a.logger.Info("gateway_response",
		"model", result.Model,
		"tokens", result.Tokens,
		"finish_reason", result.FinishReason,
	)
	return result, nil
}

func (a *Anthropic) buildParams(req Request) anthropic.MessageNewParams {
	maxTokens := int64(req.MaxTokens)
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(nativeModelID(req.Model)),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
	}

	// System entries become the system prompt; user/assistant entries map to
	// conversation turns.
	messages := make([]anthropic.MessageParam, 0, len(req.Messages))
	for _, entry := range req.Messages {
		switch entry.Role {
		case types.RoleSystem:
			params.System = append(params.System, anthropic.TextBlockParam{Text: entry.Content})
		case types.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(entry.Content)))
		default:
			messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(entry.Content)))
		}
	}
	params.Messages = messages
	return params
}

// classifyError maps Anthropic API errors onto the shared taxonomy.
func (a *Anthropic) classifyError(err error) error {
	var apierr *anthropic.Error
	if !errors.As(err, &apierr) {
		a.logger.Error("gateway_network_error", "detail", err.Error())
		return &NetworkError{Err: err}
	}

	switch apierr.StatusCode {
	case http.StatusTooManyRequests:
		retryAfter := "unknown"
		if apierr.Response != nil {
			if v := apierr.Response.Header.Get("Retry-After"); v != "" {
				retryAfter = v
			}
		}
		a.logger.Warn("gateway_rate_limited", "retry_after", retryAfter)
		return &RateLimitError{RetryAfter: retryAfter}
	case http.StatusUnauthorized:
		a.logger.Error("gateway_auth_failed")
		return ErrAuthFailed
	case http.StatusBadRequest:
		a.logger.Error("gateway_bad_request", "detail", apierr.Error())
		return &BadRequestError{Detail: apierr.Error()}
	default:
		a.logger.Error("gateway_upstream_error", "status", apierr.StatusCode, "detail", apierr.Error())
		return &UpstreamError{Status: apierr.StatusCode, Detail: apierr.Error()}
	}
}

// nativeModelID strips the OpenRouter provider prefix so registry identifiers
// like "anthropic/claude-3.5-sonnet" work against the native API.
func nativeModelID(model string) string {
	return strings.TrimPrefix(model, "anthropic/")
}
