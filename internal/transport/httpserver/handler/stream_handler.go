// Package handler provides HTTP handlers for the API.
package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"stream-resolver/internal/app/service"
	"stream-resolver/internal/domain"
	"stream-resolver/internal/transport/httpserver/dto"
	"stream-resolver/internal/validator"
)

// StreamHandler handles stream lookup requests.
type StreamHandler struct {
	service   *service.ResolveService
	validator *validator.Validator
	logger    *zap.Logger
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(svc *service.ResolveService, v *validator.Validator, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{
		service:   svc,
		validator: v,
		logger:    logger,
	}
}

// Streams handles GET /api/v1/streams/:type/:id
//
// The response is 200 with a possibly empty list for every valid request;
// upstream failures are never surfaced.
func (h *StreamHandler) Streams(c *fiber.Ctx) error {
	req, errResp := parseContentRequest(c, h.validator)
	if errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}

	streams := h.service.Resolve(c.UserContext(), req)

	return c.JSON(dto.FromResolvedStreams(streams))
}

// parseContentRequest binds and validates the :type and :id path params.
func parseContentRequest(c *fiber.Ctx, v *validator.Validator) (domain.ContentRequest, *dto.ErrorResponse) {
	var params dto.StreamRequest
	if err := c.ParamsParser(&params); err != nil {
		return domain.ContentRequest{}, &dto.ErrorResponse{
			Error: "invalid path parameters",
			Code:  "INVALID_PARAMS",
		}
	}

	if err := v.Validate(&params); err != nil {
		return domain.ContentRequest{}, &dto.ErrorResponse{
			Error:   "validation failed",
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	req, err := params.ToContentRequest()
	if err != nil {
		return domain.ContentRequest{}, &dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_CONTENT_ID",
		}
	}

	return req, nil
}
