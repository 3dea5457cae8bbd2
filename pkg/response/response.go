// Package response writes the JSON envelopes of the API.
package response

import "github.com/gofiber/fiber/v2"

// Error codes
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMITED"
	CodeRenderFailed    = "RENDER_FAILED"
	CodeServiceError    = "SERVICE_ERROR"
	CodeConfigError     = "CONFIG_ERROR"
	CodeProviderError   = "PROVIDER_ERROR"
)

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail is the body of every failed request. Remediation is a short
// operator hint and is only set for configuration and provider failures.
type ErrorDetail struct {
	Code        string      `json:"code"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     interface{} `json:"details,omitempty"`
}

func Error(c *fiber.Ctx, status int, code, message string, details interface{}) error {
	return Fail(c, status, ErrorDetail{Code: code, Message: message, Details: details})
}

// Fail writes detail with status.
func Fail(c *fiber.Ctx, status int, detail ErrorDetail) error {
	return c.Status(status).JSON(ErrorResponse{Error: detail})
}

func ValidationError(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadRequest, CodeValidationError, message, details)
}

func Unauthorized(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusUnauthorized, CodeUnauthorized, message, nil)
}

func NotFound(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusNotFound, CodeNotFound, message, nil)
}

// Conflict reports a request that is valid but clashes with the session
// state, such as a second publish or a render already running.
func Conflict(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusConflict, CodeConflict, message, details)
}

func RateLimited(c *fiber.Ctx) error {
	return Error(c, fiber.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded", nil)
}

func ServiceError(c *fiber.Ctx, message string) error {
	return Error(c, fiber.StatusInternalServerError, CodeServiceError, message, nil)
}

// NotConfigured reports a dependency without usable configuration
func NotConfigured(c *fiber.Ctx, message, remediation string, details interface{}) error {
	return Fail(c, fiber.StatusServiceUnavailable, ErrorDetail{
		Code:        CodeConfigError,
		Message:     message,
		Remediation: remediation,
		Details:     details,
	})
}

// ProviderError reports a failing upstream provider. Rate limited
// providers surface as 429, everything else as 502.
func ProviderError(c *fiber.Ctx, rateLimited bool, message, remediation string, details interface{}) error {
	status := fiber.StatusBadGateway
	if rateLimited {
		status = fiber.StatusTooManyRequests
	}
	return Fail(c, status, ErrorDetail{
		Code:        CodeProviderError,
		Message:     message,
		Remediation: remediation,
		Details:     details,
	})
}

func RenderFailed(c *fiber.Ctx, message string, details interface{}) error {
	return Error(c, fiber.StatusBadGateway, CodeRenderFailed, message, details)
}

func OK(c *fiber.Ctx, data interface{}) error {
	return c.JSON(data)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusCreated).JSON(data)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return c.Status(fiber.StatusAccepted).JSON(data)
}

func NoContent(c *fiber.Ctx) error {
	return c.SendStatus(fiber.StatusNoContent)
}
