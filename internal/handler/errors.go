package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songgen/internal/apperr"
	"github.com/makeasinger/songgen/internal/logger"
	"github.com/makeasinger/songgen/pkg/response"
)

// respondError maps a service failure onto the error envelope.
func respondError(c *fiber.Ctx, err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return response.NotFound(c, "Job not found")
	case apperr.KindUnauthorized:
		return response.Forbidden(c, "You do not have access to this job")
	case apperr.KindNotReady:
		return response.NotReady(c, "Song is still being generated")
	case apperr.KindGenerationFailed:
		return response.GenerationFailed(c, "Song generation failed", nil)
	case apperr.KindAssetUnavailable:
		return response.AssetUnavailable(c, "Song media is not available")
	case apperr.KindInvalidArgument:
		return response.ValidationError(c, err.Error(), nil)
	case apperr.KindTimeout, apperr.KindTransport, apperr.KindBackendError, apperr.KindCatalogUnavailable:
		logger.WithComponent("http").WithError(err).Warn("Upstream failure")
		return response.BackendError(c, "Upstream service unavailable")
	default:
		logger.WithComponent("http").WithError(err).Error("Request failed")
		return response.ServiceError(c, "Internal server error")
	}
}

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
