package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/service"
	"github.com/noah-isme/school-records-api/internal/utils"
)

// AttendanceHandler exposes roll call and attendance day endpoints.
type AttendanceHandler struct {
	service service.AttendanceService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs an attendance handler.
func NewAttendanceHandler(service service.AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register wires attendance routes. rollCall middlewares guard the bulk
// roll call endpoint only.
func (h *AttendanceHandler) Register(router fiber.Router, rollCall ...fiber.Handler) {
	router.Post("/roll-call", append(rollCall, h.markBulk)...)
	router.Get("/roll-call", h.rollCallStatus)
	router.Post("/late", h.recordLate)
	router.Post("/early", h.recordEarly)
	router.Get("/students/:id/days/:date", h.day)
	router.Get("/report", h.report)
}

func (h *AttendanceHandler) markBulk(c *fiber.Ctx) error {
	var payload dto.AttendanceRollCallRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	result, err := h.service.MarkBulk(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record roll call")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "roll call recorded", result)
}

func (h *AttendanceHandler) rollCallStatus(c *fiber.Ctx) error {
	var query dto.AttendanceRollCallQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	status, err := h.service.RollCallStatus(c.UserContext(), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load roll call status")
	}

	return utils.SendSuccess(c, "roll call status", status)
}

func (h *AttendanceHandler) recordLate(c *fiber.Ctx) error {
	var payload dto.AttendanceEventRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	day, err := h.service.RecordLateArrival(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record late arrival")
	}

	return utils.SendSuccess(c, "late arrival recorded", day)
}

func (h *AttendanceHandler) recordEarly(c *fiber.Ctx) error {
	var payload dto.AttendanceEventRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	day, err := h.service.RecordEarlyDeparture(c.UserContext(), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to record early departure")
	}

	return utils.SendSuccess(c, "early departure recorded", day)
}

func (h *AttendanceHandler) day(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student id")
	}

	day, err := h.service.GetDay(c.UserContext(), studentID, c.Params("date"))
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to load attendance day")
	}

	return utils.SendSuccess(c, "attendance day retrieved", day)
}

func (h *AttendanceHandler) report(c *fiber.Ctx) error {
	var query dto.AttendanceReportQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	report, err := h.service.MonthlyReport(c.UserContext(), query)
	if err != nil {
		return sendServiceError(c, h.logger, err, "failed to build attendance report")
	}

	return utils.SendSuccess(c, "attendance report", report)
}
