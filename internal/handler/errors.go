package handler

import (
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/luzdodia/api/internal/apperr"
	"github.com/luzdodia/api/internal/service"
	"github.com/luzdodia/api/pkg/response"
)

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}

// bind parses and validates a JSON body. It writes the error response
// itself and returns false when the request must stop.
func bind(c *fiber.Ctx, v *validator.Validate, req interface{}) (bool, error) {
	if err := c.BodyParser(req); err != nil {
		return false, response.ValidationError(c, "Invalid request body", nil)
	}
	if err := v.Struct(req); err != nil {
		return false, response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	return true, nil
}

// fail maps a service error to the HTTP envelope
func fail(c *fiber.Ctx, err error) error {
	var (
		validationErr *apperr.ValidationError
		notFoundErr   *apperr.NotFoundError
		configErr     *apperr.ConfigError
		providerErr   *apperr.ProviderError
		renderErr     *apperr.RenderError
	)

	switch {
	case errors.Is(err, service.ErrSessionBusy):
		return response.Conflict(c, "Session is being changed by another request", nil)

	case errors.As(err, &validationErr):
		details := fiber.Map{"field": validationErr.Field}
		if validationErr.Field == "render" || validationErr.Field == "delivery" {
			return response.Conflict(c, validationErr.Message, details)
		}
		return response.ValidationError(c, validationErr.Message, details)

	case errors.As(err, &notFoundErr):
		return response.NotFound(c, notFoundErr.Error())

	case errors.As(err, &configErr):
		return response.NotConfigured(c, err.Error(), string(apperr.Classify(err)), fiber.Map{"key": configErr.Key})

	case errors.As(err, &providerErr):
		return response.ProviderError(c, providerErr.Kind == apperr.KindRateLimited, err.Error(), string(apperr.Classify(err)), fiber.Map{
			"provider": providerErr.Provider,
			"model":    providerErr.Model,
			"kind":     providerErr.Kind,
		})

	case errors.As(err, &renderErr):
		return response.RenderFailed(c, err.Error(), fiber.Map{"jobId": renderErr.JobID, "kind": renderErr.Kind})
	}

	slog.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	return response.ServiceError(c, "Internal error")
}
