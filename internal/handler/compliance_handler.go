package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/service"
	"github.com/medcompli/cme-go-api/internal/utils"
)

// ComplianceHandler exposes cycle resolution, credit reporting and the
// cohort statistics endpoint.
type ComplianceHandler struct {
	compliance service.ComplianceService
	statistics service.StatisticsService
	logger     zerolog.Logger
}

// NewComplianceHandler constructs the compliance handler.
func NewComplianceHandler(compliance service.ComplianceService, statistics service.StatisticsService, logger zerolog.Logger) *ComplianceHandler {
	return &ComplianceHandler{
		compliance: compliance,
		statistics: statistics,
		logger:     logger.With().Str("component", "compliance_handler").Logger(),
	}
}

// Register wires compliance routes. The statistics route is registered by the
// router separately so it can carry its own rate limiter.
func (h *ComplianceHandler) Register(router fiber.Router) {
	router.Get("/:practitionerId/cycle", h.currentCycle)
	router.Get("/:practitionerId/summary", h.creditSummary)
	router.Get("/:practitionerId/history", h.creditHistory)
	router.Post("/limits/validate", h.validateLimit)
}

// StartCycle provisions a new compliance cycle from the credit rule in force.
func (h *ComplianceHandler) StartCycle(c *fiber.Ctx) error {
	practitionerID := c.Params("practitionerId")

	var payload struct {
		StartDate time.Time `json:"start_date"`
	}
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if payload.StartDate.IsZero() {
		return utils.SendError(c, fiber.StatusBadRequest, "start_date is required")
	}

	cycle, err := h.compliance.StartCycle(c.Context(), practitionerID, payload.StartDate)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCycleExists):
			return utils.SendError(c, fiber.StatusConflict, "an active cycle already covers this date")
		case errors.Is(err, service.ErrNoRuleInForce):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, "no credit rule in force at this date")
		default:
			requestLogger(h.logger, c).Error().Err(err).Str("practitioner_id", practitionerID).Msg("failed to start compliance cycle")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to start compliance cycle")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "compliance cycle started", cycle)
}

// Statistics handles the cohort classification endpoint.
func (h *ComplianceHandler) Statistics(c *fiber.Ctx) error {
	var payload dto.StatisticsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.statistics.GetComplianceStatistics(c.Context(), payload.PractitionerIDs)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to compute compliance statistics")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to compute compliance statistics")
	}

	if result.CacheHit {
		c.Set("X-Cache-Hit", "true")
	} else {
		c.Set("X-Cache-Hit", "false")
	}

	return utils.SendSuccess(c, "compliance statistics computed", result)
}

func (h *ComplianceHandler) currentCycle(c *fiber.Ctx) error {
	practitionerID, err := h.practitionerIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	cycle, err := h.compliance.GetCurrentCycle(c.Context(), practitionerID)
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Str("practitioner_id", practitionerID).Msg("failed to resolve current cycle")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve current cycle")
	}
	if cycle == nil {
		return utils.SendError(c, fiber.StatusNotFound, "no active compliance cycle")
	}

	return utils.SendSuccess(c, "compliance cycle resolved", cycle)
}

func (h *ComplianceHandler) creditSummary(c *fiber.Ctx) error {
	practitionerID, err := h.practitionerIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	start, end, err := h.resolveWindow(c, practitionerID)
	if err != nil {
		return h.translateWindowError(c, err)
	}

	summary, err := h.compliance.GetCreditSummaryByType(c.Context(), practitionerID, start, end)
	if err != nil {
		if errors.Is(err, service.ErrInvalidWindow) {
			return utils.SendError(c, fiber.StatusBadRequest, "window start must not be after end")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("practitioner_id", practitionerID).Msg("failed to build credit summary")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build credit summary")
	}

	return utils.SendSuccess(c, "credit summary built", summary)
}

func (h *ComplianceHandler) creditHistory(c *fiber.Ctx) error {
	practitionerID, err := h.practitionerIDParam(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	}

	start, end, err := h.resolveWindow(c, practitionerID)
	if err != nil {
		return h.translateWindowError(c, err)
	}

	history, err := h.compliance.GetCreditHistory(c.Context(), practitionerID, start, end)
	if err != nil {
		if errors.Is(err, service.ErrInvalidWindow) {
			return utils.SendError(c, fiber.StatusBadRequest, "window start must not be after end")
		}
		requestLogger(h.logger, c).Error().Err(err).Str("practitioner_id", practitionerID).Msg("failed to build credit history")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to build credit history")
	}

	return utils.SendSuccess(c, "credit history built", history)
}

func (h *ComplianceHandler) validateLimit(c *fiber.Ctx) error {
	var payload dto.CategoryLimitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	if userRoleFromContext(c) == "practitioner" {
		payload.PractitionerID = actorIDFromContext(c)
	}

	result, err := h.compliance.ValidateCategoryLimit(c.Context(), payload)
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to validate category limit")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to validate category limit")
	}

	return utils.SendSuccess(c, "category limit validated", result)
}

var errWindowCycleAbsent = errors.New("no cycle window for summary defaults")

// resolveWindow reads from/to query parameters, falling back to the
// practitioner's active cycle window when both are absent.
func (h *ComplianceHandler) resolveWindow(c *fiber.Ctx, practitionerID string) (time.Time, time.Time, error) {
	fromRaw := c.Query("from")
	toRaw := c.Query("to")

	if fromRaw == "" && toRaw == "" {
		cycle, err := h.compliance.GetCurrentCycle(c.Context(), practitionerID)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		if cycle == nil {
			return time.Time{}, time.Time{}, errWindowCycleAbsent
		}
		return cycle.StartDate, cycle.EndDate, nil
	}

	from, err := time.Parse(time.RFC3339, fromRaw)
	if err != nil {
		return time.Time{}, time.Time{}, service.ErrInvalidWindow
	}
	to, err := time.Parse(time.RFC3339, toRaw)
	if err != nil {
		return time.Time{}, time.Time{}, service.ErrInvalidWindow
	}
	return from, to, nil
}

func (h *ComplianceHandler) translateWindowError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, errWindowCycleAbsent):
		return utils.SendError(c, fiber.StatusNotFound, "no active compliance cycle")
	case errors.Is(err, service.ErrInvalidWindow):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid window")
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to resolve reporting window")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to resolve reporting window")
	}
}

// practitionerIDParam resolves the target practitioner, restricting
// practitioners to their own data.
func (h *ComplianceHandler) practitionerIDParam(c *fiber.Ctx) (string, error) {
	practitionerID := c.Params("practitionerId")
	if userRoleFromContext(c) == "practitioner" && practitionerID != actorIDFromContext(c) {
		return "", errors.New("practitioner scope violation")
	}
	return practitionerID, nil
}
