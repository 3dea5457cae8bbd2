// Package apperr defines the error taxonomy shared by the pipeline, the
// execution adapter and the HTTP layer.
package apperr

import (
	"context"
	"errors"
	"fmt"
)

// ValidationError reports a caller-side usage error, such as advancing a
// phase whose readiness predicate is false. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Validation builds a ValidationError.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ConfigError reports a provider or dependency that has no usable
// configuration (missing credentials, unknown provider id).
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// ProviderKind is the normalized failure class of a provider call.
type ProviderKind string

const (
	KindInvalidKey       ProviderKind = "invalid_key"
	KindRateLimited      ProviderKind = "rate_limited"
	KindQuotaExceeded    ProviderKind = "quota_exceeded"
	KindModelNotFound    ProviderKind = "model_not_found"
	KindPermissionDenied ProviderKind = "permission_denied"
	KindNetworkError     ProviderKind = "network_error"
	KindTimeout          ProviderKind = "timeout"
	KindUnknown          ProviderKind = "unknown"
)

// ProviderError is a failed call to an external AI or media provider.
type ProviderError struct {
	Provider   string
	Model      string
	Kind       ProviderKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s error (%s)", e.Provider, e.Kind)
	if e.StatusCode > 0 {
		msg = fmt.Sprintf("%s [HTTP %d]", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// RenderKind is the terminal failure class of a render job.
type RenderKind string

const (
	RenderTimeout         RenderKind = "timeout"
	RenderExplicitFailure RenderKind = "explicit_failure"
	RenderInconsistent    RenderKind = "inconsistent_state"
)

// RenderError is a terminal render-job failure. Render errors are always
// surfaced and never resubmitted automatically.
type RenderError struct {
	Kind     RenderKind
	JobID    string
	Attempts int
	Status   string
	Message  string
}

func (e *RenderError) Error() string {
	msg := fmt.Sprintf("render job %s %s after %d attempts", e.JobID, e.Kind, e.Attempts)
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	return msg
}

// Remediation tells a human which kind of action fixes an error.
type Remediation string

const (
	NotConfigured     Remediation = "not_configured"
	ConfiguredFailing Remediation = "configured_failing"
	Transient         Remediation = "transient"
	Unknown           Remediation = "unknown"
)

// Classify maps an error to the remediation a human should take.
func Classify(err error) Remediation {
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return NotConfigured
	}

	var provErr *ProviderError
	if errors.As(err, &provErr) {
		switch provErr.Kind {
		case KindInvalidKey, KindPermissionDenied, KindQuotaExceeded, KindModelNotFound:
			return ConfiguredFailing
		case KindRateLimited, KindNetworkError, KindTimeout:
			return Transient
		}
		return Unknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return Transient
	}
	return Unknown
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
