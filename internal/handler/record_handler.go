package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/service"
	"github.com/medcompli/cme-go-api/internal/utils"
)

// RecordHandler exposes the activity record submission lifecycle.
type RecordHandler struct {
	service service.RecordService
	logger  zerolog.Logger
}

// NewRecordHandler constructs the record handler.
func NewRecordHandler(service service.RecordService, logger zerolog.Logger) *RecordHandler {
	return &RecordHandler{
		service: service,
		logger:  logger.With().Str("component", "record_handler").Logger(),
	}
}

// Register wires submission routes. Review and revoke routes carry the
// router's reviewer role guard.
func (h *RecordHandler) Register(submit fiber.Router, review fiber.Router) {
	submit.Post("", h.create)
	submit.Get("", h.list)
	submit.Get("/:id", h.get)
	submit.Delete("/:id", h.remove)
	review.Post("/bulk/review", h.bulkReview)
	review.Post("/bulk/revoke", h.bulkRevoke)
	review.Post("/:id/review", h.review)
	review.Post("/:id/revoke", h.revoke)
}

func (h *RecordHandler) create(c *fiber.Ctx) error {
	var payload dto.RecordCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	// Practitioners may only submit on their own behalf.
	if actorID := actorIDFromContext(c); userRoleFromContext(c) == "practitioner" && actorID != "" {
		payload.PractitionerID = actorID
	}

	record, err := h.service.Create(c.Context(), payload, auditActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		case errors.Is(err, service.ErrCatalogEntryNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "catalog entry not found")
		case errors.Is(err, service.ErrCatalogEntryUnusable):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "catalog entry is not available for new submissions")
		case errors.Is(err, service.ErrMissingCreditValue):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "ad-hoc submissions must supply a credit value")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create activity record")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create activity record")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity record submitted", record)
}

func (h *RecordHandler) list(c *fiber.Ctx) error {
	var req dto.RecordListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid filters")
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	// Practitioners only see their own submissions.
	if userRoleFromContext(c) == "practitioner" {
		req.PractitionerID = actorIDFromContext(c)
	}

	result, err := h.service.List(c.Context(), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid filters")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list activity records")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list activity records")
	}

	return utils.SendSuccess(c, "activity records retrieved", result)
}

func (h *RecordHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	record, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "activity record not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("record_id", id).Msg("failed to load activity record")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load activity record")
	}

	if userRoleFromContext(c) == "practitioner" && record.PractitionerID != actorIDFromContext(c) {
		return utils.SendError(c, fiber.StatusNotFound, "activity record not found")
	}

	return utils.SendSuccess(c, "activity record retrieved", record)
}

func (h *RecordHandler) remove(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	if err := h.service.Delete(c.Context(), id, actorIDFromContext(c)); err != nil {
		if errors.Is(err, service.ErrRecordNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "activity record not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("record_id", id).Msg("failed to delete activity record")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete activity record")
	}

	return utils.SendSuccess(c, "activity record deleted", nil)
}

func (h *RecordHandler) review(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	var payload dto.ReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Review(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		return h.translateTransitionError(c, err, id, "failed to review activity record")
	}

	return utils.SendSuccess(c, "activity record reviewed", record)
}

func (h *RecordHandler) revoke(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid record id")
	}

	var payload dto.RevokeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	record, err := h.service.Revoke(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		return h.translateTransitionError(c, err, id, "failed to revoke activity record")
	}

	return utils.SendSuccess(c, "activity record revoked", record)
}

func (h *RecordHandler) bulkReview(c *fiber.Ctx) error {
	var payload dto.BulkReviewRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.BulkReview(c.Context(), payload, unitIDFromContext(c), auditActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to bulk review activity records")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to bulk review activity records")
	}

	return utils.SendSuccess(c, "bulk review applied", result)
}

func (h *RecordHandler) bulkRevoke(c *fiber.Ctx) error {
	var payload dto.BulkRevokeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.BulkRevoke(c.Context(), payload, unitIDFromContext(c), auditActorFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to bulk revoke activity records")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to bulk revoke activity records")
	}

	return utils.SendSuccess(c, "bulk revoke applied", result)
}

func (h *RecordHandler) translateTransitionError(c *fiber.Ctx, err error, id uint, message string) error {
	switch {
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	case errors.Is(err, service.ErrRecordNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "activity record not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, "record is not in the expected status")
	default:
		requestLogger(h.logger, c).Error().Err(err).Uint("record_id", id).Msg(message)
		return utils.SendError(c, fiber.StatusInternalServerError, message)
	}
}
