package client

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"

	"github.com/luzdodia/api/internal/apperr"
)

// statusKind maps an HTTP status to a failure class when the body says
// nothing more specific.
func statusKind(status int) apperr.ProviderKind {
	switch status {
	case http.StatusUnauthorized:
		return apperr.KindInvalidKey
	case http.StatusPaymentRequired:
		return apperr.KindQuotaExceeded
	case http.StatusForbidden:
		return apperr.KindPermissionDenied
	case http.StatusNotFound:
		return apperr.KindModelNotFound
	case http.StatusTooManyRequests:
		return apperr.KindRateLimited
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return apperr.KindTimeout
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return apperr.KindNetworkError
	}
	return apperr.KindUnknown
}

// statusError is the fallback parser for providers without a structured
// error body.
func statusError(provider, model string, status int, body []byte) error {
	return &apperr.ProviderError{
		Provider:   provider,
		Model:      model,
		Kind:       statusKind(status),
		StatusCode: status,
		Message:    truncate(strings.TrimSpace(string(body)), 200),
	}
}

// openAIError parses {"error": {"message", "type", "code"}}, which Groq
// also uses.
func openAIError(provider, model string, status int, body []byte) error {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    any    `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &env)

	kind := statusKind(status)
	code, _ := env.Error.Code.(string)
	switch {
	case code == "invalid_api_key":
		kind = apperr.KindInvalidKey
	case code == "insufficient_quota" || env.Error.Type == "insufficient_quota":
		kind = apperr.KindQuotaExceeded
	case code == "model_not_found" || code == "model_decommissioned":
		kind = apperr.KindModelNotFound
	case code == "rate_limit_exceeded":
		kind = apperr.KindRateLimited
	case status == http.StatusTooManyRequests && strings.Contains(strings.ToLower(env.Error.Message), "quota"):
		kind = apperr.KindQuotaExceeded
	}

	msg := env.Error.Message
	if msg == "" {
		msg = truncate(string(body), 200)
	}
	return &apperr.ProviderError{Provider: provider, Model: model, Kind: kind, StatusCode: status, Message: msg}
}

// geminiError parses Google's {"error": {"code", "message", "status"}}.
func geminiError(provider, model string, status int, body []byte) error {
	var env struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &env)

	kind := statusKind(status)
	mentionsKey := strings.Contains(env.Error.Message, "API key")
	switch env.Error.Status {
	case "UNAUTHENTICATED":
		kind = apperr.KindInvalidKey
	case "INVALID_ARGUMENT":
		if mentionsKey {
			kind = apperr.KindInvalidKey
		}
	case "PERMISSION_DENIED":
		kind = apperr.KindPermissionDenied
		if mentionsKey {
			kind = apperr.KindInvalidKey
		}
	case "RESOURCE_EXHAUSTED":
		kind = apperr.KindRateLimited
		if strings.Contains(strings.ToLower(env.Error.Message), "quota") {
			kind = apperr.KindQuotaExceeded
		}
	case "NOT_FOUND":
		kind = apperr.KindModelNotFound
	case "DEADLINE_EXCEEDED":
		kind = apperr.KindTimeout
	case "UNAVAILABLE":
		kind = apperr.KindNetworkError
	}

	return &apperr.ProviderError{Provider: provider, Model: model, Kind: kind, StatusCode: status, Message: env.Error.Message}
}

// elevenLabsError parses {"detail": {"status", "message"}}. Validation
// failures put a list or a string under detail instead.
func elevenLabsError(provider, model string, status int, body []byte) error {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	_ = json.Unmarshal(body, &env)

	var detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(env.Detail, &detail)

	kind := statusKind(status)
	switch detail.Status {
	case "invalid_api_key", "needs_authorization":
		kind = apperr.KindInvalidKey
	case "quota_exceeded", "payment_required":
		kind = apperr.KindQuotaExceeded
	case "too_many_concurrent_requests", "system_busy":
		kind = apperr.KindRateLimited
	case "model_not_found", "voice_not_found":
		kind = apperr.KindModelNotFound
	case "missing_permissions":
		kind = apperr.KindPermissionDenied
	}

	msg := detail.Message
	if msg == "" {
		msg = truncate(string(env.Detail), 200)
	}
	return &apperr.ProviderError{Provider: provider, Model: model, Kind: kind, StatusCode: status, Message: msg}
}

// googleAPIError classifies errors from the Google API client libraries.
func googleAPIError(provider, model string, err error) error {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return transportError(provider, model, err)
	}

	kind := statusKind(gerr.Code)
	for _, item := range gerr.Errors {
		switch item.Reason {
		case "keyInvalid", "authError":
			kind = apperr.KindInvalidKey
		case "quotaExceeded", "dailyLimitExceeded", "uploadLimitExceeded":
			kind = apperr.KindQuotaExceeded
		case "rateLimitExceeded", "userRateLimitExceeded":
			kind = apperr.KindRateLimited
		case "forbidden", "insufficientPermissions", "accessNotConfigured":
			kind = apperr.KindPermissionDenied
		}
	}
	if gerr.Code == http.StatusNotFound {
		kind = apperr.KindUnknown
	}

	return &apperr.ProviderError{Provider: provider, Model: model, Kind: kind, StatusCode: gerr.Code, Message: gerr.Message, Cause: err}
}

// transportError classifies failures that never produced an HTTP status.
func transportError(provider, model string, err error) error {
	kind := apperr.KindNetworkError
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = apperr.KindTimeout
	}
	return &apperr.ProviderError{Provider: provider, Model: model, Kind: kind, Message: err.Error(), Cause: err}
}

// malformed reports a 2xx response whose body could not be understood.
func malformed(provider, model string, err error) error {
	return &apperr.ProviderError{Provider: provider, Model: model, Kind: apperr.KindUnknown, Message: "malformed response: " + err.Error(), Cause: err}
}

// missingKey is returned by adapters called without credentials.
func missingKey(provider string) error {
	return &apperr.ConfigError{Key: provider, Reason: "provider credentials not configured"}
}
