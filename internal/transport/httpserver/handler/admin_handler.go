package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"stream-resolver/internal/app/service"
	"stream-resolver/internal/transport/httpserver/dto"
	"stream-resolver/internal/validator"
)

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	service   *service.ResolveService
	validator *validator.Validator
	logger    *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(svc *service.ResolveService, v *validator.Validator, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// GetProviders handles GET /api/v1/admin/providers
func (h *AdminHandler) GetProviders(c *fiber.Ctx) error {
	return c.JSON(dto.ProvidersResponse{
		Providers: h.service.ProviderNames(),
	})
}

// Refresh handles POST /api/v1/admin/refresh/:type/:id
func (h *AdminHandler) Refresh(c *fiber.Ctx) error {
	req, errResp := parseContentRequest(c, h.validator)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}

	key := h.service.CacheKey(req)
	h.logger.Info("manual refresh triggered", zap.String("key", key))

	streams := h.service.Refresh(c.UserContext(), req)

	return c.JSON(dto.RefreshResponse{
		Key:     key,
		Count:   len(streams),
		Streams: dto.FromResolvedStreams(streams).Streams,
	})
}

// Diagnose handles GET /api/v1/admin/diagnose/:type/:id
//
// It runs every provider without touching the cache and reports each
// provider's outcome.
func (h *AdminHandler) Diagnose(c *fiber.Ctx) error {
	req, errResp := parseContentRequest(c, h.validator)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}

	streams, results := h.service.ResolveAll(c.UserContext(), req)

	return c.JSON(dto.FromProviderResults(streams, results))
}
