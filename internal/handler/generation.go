package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/makeasinger/songgen/internal/middleware"
	"github.com/makeasinger/songgen/internal/model"
	"github.com/makeasinger/songgen/internal/service"
	"github.com/makeasinger/songgen/pkg/response"
)

const maxListLimit = 100

type GenerationHandler struct {
	generation *service.GenerationService
	resolver   *service.ResolverService
	library    *service.LibraryService
	media      *service.MediaService
	validator  *validator.Validate
}

func NewGenerationHandler(
	generation *service.GenerationService,
	resolver *service.ResolverService,
	library *service.LibraryService,
	media *service.MediaService,
	v *validator.Validate,
) *GenerationHandler {
	return &GenerationHandler{
		generation: generation,
		resolver:   resolver,
		library:    library,
		media:      media,
		validator:  v,
	}
}

// Start handles POST /api/generation/start
// Creates the job and returns 202 before the render backend is called.
func (h *GenerationHandler) Start(c *fiber.Ctx) error {
	var req model.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}
	if req.IsEmpty() {
		return response.ValidationError(c, "One of prompt, lyrics, describedLyrics or fullDescribedSong is required", nil)
	}

	job, err := h.generation.Submit(c.UserContext(), middleware.GetUserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return response.Accepted(c, model.GenerateStartResponse{
		JobID:     job.ID,
		Title:     job.Title,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// Status handles GET /api/generation/status/:jobId
func (h *GenerationHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.library.Status(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return response.OK(c, result)
}

// Play handles GET /api/generation/play/:jobId
// Resolves a playable URL and counts one listen.
func (h *GenerationHandler) Play(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	url, err := h.resolver.ResolvePlayURL(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return response.OK(c, model.PlayURLResponse{JobID: jobID, URL: url})
}

// Cover handles GET /api/generation/cover/:jobId
func (h *GenerationHandler) Cover(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	url, err := h.resolver.ResolveCoverURL(c.UserContext(), jobID, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return response.OK(c, model.CoverURLResponse{JobID: jobID, URL: url})
}

// List handles GET /api/generation/list
func (h *GenerationHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > maxListLimit {
		return response.ValidationError(c, "limit must be between 1 and 100", nil)
	}

	result, err := h.library.List(c.UserContext(), middleware.GetUserID(c), limit)
	if err != nil {
		return respondError(c, err)
	}
	return response.OK(c, result)
}

// Publish handles POST /api/generation/publish/:jobId
func (h *GenerationHandler) Publish(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	var req model.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}
	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.library.SetPublished(c.UserContext(), jobID, middleware.GetUserID(c), *req.Published)
	if err != nil {
		return respondError(c, err)
	}
	return response.OK(c, result)
}

// DeleteMedia handles DELETE /api/generation/media/:jobId
// Removes the stored audio and cover; the job record is kept.
func (h *GenerationHandler) DeleteMedia(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	if err := h.media.DeleteMedia(c.UserContext(), jobID, middleware.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return response.NoContent(c)
}

// AuthorizeWatch guards the job websocket: the requester must be able to
// read the job.
func (h *GenerationHandler) AuthorizeWatch(c *fiber.Ctx) error {
	if _, err := h.library.Status(c.UserContext(), c.Params("jobId"), middleware.GetUserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.Next()
}

// Register mounts the generation routes on router. limit guards Start.
func (h *GenerationHandler) Register(router fiber.Router, limit fiber.Handler) {
	router.Post("/start", limit, h.Start)
	router.Get("/list", h.List)
	router.Get("/status/:jobId", h.Status)
	router.Get("/play/:jobId", h.Play)
	router.Get("/cover/:jobId", h.Cover)
	router.Post("/publish/:jobId", h.Publish)
	router.Delete("/media/:jobId", h.DeleteMedia)
}
