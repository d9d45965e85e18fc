package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// IncidentHandler exposes the incident escalation endpoints.
type IncidentHandler struct {
	service service.IncidentService
	logger  zerolog.Logger
}

// NewIncidentHandler constructs an incident handler.
func NewIncidentHandler(service service.IncidentService, logger zerolog.Logger) *IncidentHandler {
	return &IncidentHandler{
		service: service,
		logger:  logger.With().Str("component", "incident_handler").Logger(),
	}
}

// Register wires incident routes.
func (h *IncidentHandler) Register(router fiber.Router) {
	router.Get("/categories", h.categories)
	router.Post("/print", h.print)
	router.Post("", h.create)
	router.Get("", h.list)
	router.Get("/:number", h.get)
	router.Patch("/:number", h.update)
	router.Post("/:number/responses", h.respond)
}

func (h *IncidentHandler) create(c *fiber.Ctx) error {
	var payload dto.IncidentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	incident, err := h.service.Create(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to create incident")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "incident created", incident)
}

func (h *IncidentHandler) respond(c *fiber.Ctx) error {
	number, err := parseUintParam(c, "number")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid incident number")
	}

	var payload dto.IncidentResponseRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	incident, err := h.service.RecordResponse(c.UserContext(), number, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record response")
	}

	return utils.SendSuccess(c, "response recorded", incident)
}

func (h *IncidentHandler) update(c *fiber.Ctx) error {
	number, err := parseUintParam(c, "number")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid incident number")
	}

	var payload dto.IncidentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	incident, err := h.service.Update(c.UserContext(), number, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to update incident")
	}

	return utils.SendSuccess(c, "incident updated", incident)
}

func (h *IncidentHandler) get(c *fiber.Ctx) error {
	number, err := parseUintParam(c, "number")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid incident number")
	}

	incident, err := h.service.Get(c.UserContext(), number)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load incident")
	}

	return utils.SendSuccess(c, "incident retrieved", incident)
}

func (h *IncidentHandler) list(c *fiber.Ctx) error {
	var query dto.IncidentListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	incidents, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list incidents")
	}

	return utils.SendSuccess(c, "incidents retrieved", incidents)
}

func (h *IncidentHandler) print(c *fiber.Ctx) error {
	var payload dto.IncidentPrintRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	printed, err := h.service.Print(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to print incidents")
	}

	return utils.SendSuccess(c, "incidents sent to print", printed)
}

func (h *IncidentHandler) categories(c *fiber.Ctx) error {
	return utils.SendSuccess(c, "incident categories", h.service.Categories())
}
