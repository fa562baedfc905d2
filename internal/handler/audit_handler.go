package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/service"
	"github.com/medcompli/cme-go-api/internal/utils"
)

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	service service.AuditService
	logger  zerolog.Logger
}

// NewAuditHandler constructs the audit handler.
func NewAuditHandler(service service.AuditService, logger zerolog.Logger) *AuditHandler {
	return &AuditHandler{
		service: service,
		logger:  logger.With().Str("component", "audit_handler").Logger(),
	}
}

// Register wires audit routes.
func (h *AuditHandler) Register(router fiber.Router) {
	router.Get("", h.list)
}

func (h *AuditHandler) list(c *fiber.Ctx) error {
	var req dto.AuditListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid filters")
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 50
	}

	result, err := h.service.List(c.Context(), req)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list audit entries")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list audit entries")
	}

	return utils.SendSuccess(c, "audit entries retrieved", result)
}
