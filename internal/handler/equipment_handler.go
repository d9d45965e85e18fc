package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// EquipmentHandler exposes the shared device pool endpoints.
type EquipmentHandler struct {
	service service.EquipmentService
	logger  zerolog.Logger
}

// NewEquipmentHandler constructs an equipment handler.
func NewEquipmentHandler(service service.EquipmentService, logger zerolog.Logger) *EquipmentHandler {
	return &EquipmentHandler{
		service: service,
		logger:  logger.With().Str("component", "equipment_handler").Logger(),
	}
}

// Register wires equipment routes.
func (h *EquipmentHandler) Register(router fiber.Router) {
	router.Post("/units", h.registerUnits)
	router.Get("/units", h.inventory)
	router.Get("/availability", h.availability)
	router.Post("/reservations", h.reserve)
	router.Get("/reservations", h.activeReservations)
	router.Post("/reservations/:id/pickup", h.pickup)
	router.Post("/reservations/:id/return", h.giveBack)
	router.Post("/faults", h.reportFault)
	router.Get("/faults", h.faults)
}

func (h *EquipmentHandler) registerUnits(c *fiber.Ctx) error {
	var payload dto.EquipmentUnitsRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	units, err := h.service.RegisterUnits(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to register units")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "units registered", units)
}

func (h *EquipmentHandler) inventory(c *fiber.Ctx) error {
	units, err := h.service.Inventory(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list units")
	}

	return utils.SendSuccess(c, "units retrieved", units)
}

func (h *EquipmentHandler) availability(c *fiber.Ctx) error {
	counts, err := h.service.Availability(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to count units")
	}

	return utils.SendSuccess(c, "availability retrieved", counts)
}

func (h *EquipmentHandler) reserve(c *fiber.Ctx) error {
	var payload dto.EquipmentReserveRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	reservation, err := h.service.Reserve(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to reserve equipment")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "equipment reserved", reservation)
}

func (h *EquipmentHandler) activeReservations(c *fiber.Ctx) error {
	var query dto.EquipmentReservationQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	reservations, err := h.service.ActiveReservations(c.UserContext(), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list reservations")
	}

	return utils.SendSuccess(c, "reservations retrieved", reservations)
}

func (h *EquipmentHandler) pickup(c *fiber.Ctx) error {
	reservationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reservation id")
	}

	var payload dto.EquipmentPickupRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	handover, err := h.service.BindAtPickup(c.UserContext(), reservationID, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record pickup")
	}

	return utils.SendSuccess(c, "equipment picked up", handover)
}

func (h *EquipmentHandler) giveBack(c *fiber.Ctx) error {
	reservationID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid reservation id")
	}

	handover, err := h.service.Return(c.UserContext(), reservationID)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record return")
	}

	return utils.SendSuccess(c, "equipment returned", handover)
}

func (h *EquipmentHandler) reportFault(c *fiber.Ctx) error {
	var payload dto.EquipmentFaultRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	fault, err := h.service.ReportFault(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to report fault")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "fault reported", fault)
}

func (h *EquipmentHandler) faults(c *fiber.Ctx) error {
	faults, err := h.service.Faults(c.UserContext())
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to list faults")
	}

	return utils.SendSuccess(c, "faults retrieved", faults)
}
