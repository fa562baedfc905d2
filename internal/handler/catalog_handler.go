package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/medcompli/cme-go-api/internal/dto"
	"github.com/medcompli/cme-go-api/internal/service"
	"github.com/medcompli/cme-go-api/internal/utils"
)

// CatalogHandler exposes activity catalog management endpoints.
type CatalogHandler struct {
	service service.CatalogService
	logger  zerolog.Logger
}

// NewCatalogHandler constructs the catalog handler.
func NewCatalogHandler(service service.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		logger:  logger.With().Str("component", "catalog_handler").Logger(),
	}
}

// Register wires catalog routes. Write access is enforced by the router's
// role middleware; handlers only translate service errors.
func (h *CatalogHandler) Register(read fiber.Router, write fiber.Router) {
	read.Get("", h.list)
	read.Get("/:id", h.get)
	write.Post("", h.create)
	write.Patch("/:id", h.update)
	write.Delete("/:id", h.remove)
	write.Post("/:id/restore", h.restore)
}

func (h *CatalogHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	req := dto.CatalogListRequest{
		Page:           page,
		PageSize:       pageSize,
		ActivityType:   c.Query("activity_type"),
		Status:         c.Query("status"),
		Search:         c.Query("search"),
		IncludeDeleted: c.QueryBool("include_deleted"),
	}

	result, err := h.service.List(c.Context(), req, unitIDFromContext(c))
	if err != nil {
		if isValidationError(err) {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid filters")
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list catalog entries")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list catalog entries")
	}

	return utils.SendSuccess(c, "catalog entries retrieved", result)
}

func (h *CatalogHandler) get(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid catalog entry id")
	}

	entry, err := h.service.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrCatalogEntryNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "catalog entry not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("catalog_entry_id", id).Msg("failed to load catalog entry")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to load catalog entry")
	}

	return utils.SendSuccess(c, "catalog entry retrieved", entry)
}

func (h *CatalogHandler) create(c *fiber.Ctx) error {
	var payload dto.CatalogCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	entry, err := h.service.Create(c.Context(), payload, auditActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		case errors.Is(err, service.ErrNegativeConversionRatio),
			errors.Is(err, service.ErrInvalidHourThresholds):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to create catalog entry")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to create catalog entry")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "catalog entry created", entry)
}

func (h *CatalogHandler) update(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid catalog entry id")
	}

	var payload dto.CatalogUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	entry, err := h.service.Update(c.Context(), id, payload, auditActorFromContext(c))
	if err != nil {
		switch {
		case isValidationError(err):
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		case errors.Is(err, service.ErrCatalogEntryNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "catalog entry not found")
		case errors.Is(err, service.ErrNegativeConversionRatio),
			errors.Is(err, service.ErrInvalidHourThresholds):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, err.Error())
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("catalog_entry_id", id).Msg("failed to update catalog entry")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to update catalog entry")
		}
	}

	return utils.SendSuccess(c, "catalog entry updated", entry)
}

func (h *CatalogHandler) remove(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid catalog entry id")
	}

	if err := h.service.Delete(c.Context(), id, auditActorFromContext(c)); err != nil {
		if errors.Is(err, service.ErrCatalogEntryNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "catalog entry not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("catalog_entry_id", id).Msg("failed to delete catalog entry")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to delete catalog entry")
	}

	return utils.SendSuccess(c, "catalog entry deleted", nil)
}

func (h *CatalogHandler) restore(c *fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid catalog entry id")
	}

	entry, err := h.service.Restore(c.Context(), id, auditActorFromContext(c))
	if err != nil {
		if errors.Is(err, service.ErrCatalogEntryNotFound) {
			return utils.SendError(c, fiber.StatusNotFound, "catalog entry not found")
		}
		requestLogger(h.logger, c).Error().Err(err).Uint("catalog_entry_id", id).Msg("failed to restore catalog entry")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to restore catalog entry")
	}

	return utils.SendSuccess(c, "catalog entry restored", entry)
}
