package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/observability"
	"github.com/noah-isme/school-records-api/internal/repository"
	"github.com/noah-isme/school-records-api/internal/rules"
)

// EquipmentService exposes the shared device pool: registration, reservations,
// pickups, returns and fault reports.
type EquipmentService interface {
	RegisterUnits(ctx context.Context, req dto.EquipmentUnitsRequest) ([]dto.EquipmentUnitResponse, error)
	Inventory(ctx context.Context) ([]dto.EquipmentUnitResponse, error)
	Availability(ctx context.Context) (dto.EquipmentAvailabilityResponse, error)
	Reserve(ctx context.Context, req dto.EquipmentReserveRequest) (dto.EquipmentReservationResponse, error)
	ActiveReservations(ctx context.Context, query dto.EquipmentReservationQuery) ([]dto.EquipmentReservationResponse, error)
	BindAtPickup(ctx context.Context, reservationID uint, req dto.EquipmentPickupRequest) (dto.EquipmentHandoverResponse, error)
	Return(ctx context.Context, reservationID uint) (dto.EquipmentHandoverResponse, error)
	ReportFault(ctx context.Context, req dto.EquipmentFaultRequest) (dto.EquipmentFaultResponse, error)
	Faults(ctx context.Context) ([]dto.EquipmentFaultResponse, error)
}

type equipmentService struct {
	repo           repository.EquipmentRepository
	validator      *validator.Validate
	damageKeywords []string
	logger         zerolog.Logger
	tracer         trace.Tracer
	now            func() time.Time
}

// NewEquipmentService constructs the reservation manager. An empty keyword
// list falls back to rules.DefaultDamageKeywords.
func NewEquipmentService(repo repository.EquipmentRepository, damageKeywords []string, validate *validator.Validate, logger zerolog.Logger) EquipmentService {
	if len(damageKeywords) == 0 {
		damageKeywords = rules.DefaultDamageKeywords
	}
	return &equipmentService{
		repo:           repo,
		validator:      validate,
		damageKeywords: damageKeywords,
		logger:         logger.With().Str("component", "equipment_service").Logger(),
		tracer:         otel.Tracer("github.com/noah-isme/school-records-api/internal/service/equipment"),
		now:            time.Now,
	}
}

func (s *equipmentService) RegisterUnits(ctx context.Context, req dto.EquipmentUnitsRequest) ([]dto.EquipmentUnitResponse, error) {
	const op = "equipment.register_units"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	req.Bay = strings.TrimSpace(req.Bay)
	var extra []string
	seen := make(map[string]struct{}, len(req.Labels))
	for i := range req.Labels {
		req.Labels[i] = strings.TrimSpace(req.Labels[i])
		if req.Labels[i] == "" {
			continue
		}
		if _, dup := seen[req.Labels[i]]; dup {
			extra = append(extra, fmt.Sprintf("labels[%d]", i))
		}
		seen[req.Labels[i]] = struct{}{}
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	existing, err := s.repo.ExistingLabels(ctx, req.Bay, req.Labels)
	if err != nil {
		return nil, s.storage(span, op, err)
	}
	if len(existing) > 0 {
		span.SetStatus(codes.Error, "units exist")
		return nil, conflict(op, fmt.Sprintf("units already registered in bay %s: %s", req.Bay, strings.Join(existing, ", ")))
	}

	units := make([]models.EquipmentUnit, 0, len(req.Labels))
	for _, label := range req.Labels {
		units = append(units, models.EquipmentUnit{Bay: req.Bay, Label: label, Status: models.UnitAvailable})
	}
	if err := s.repo.CreateUnits(ctx, units); err != nil {
		return nil, s.storage(span, op, err)
	}

	s.logger.Info().Str("bay", req.Bay).Int("units", len(units)).Msg("equipment units registered")
	return dto.NewEquipmentUnitResponseSlice(units), nil
}

func (s *equipmentService) Inventory(ctx context.Context) ([]dto.EquipmentUnitResponse, error) {
	const op = "equipment.inventory"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	units, err := s.repo.ListUnits(ctx)
	if err != nil {
		return nil, s.storage(span, op, err)
	}
	return dto.NewEquipmentUnitResponseSlice(units), nil
}

func (s *equipmentService) Availability(ctx context.Context) (dto.EquipmentAvailabilityResponse, error) {
	const op = "equipment.availability"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return dto.EquipmentAvailabilityResponse{}, s.storage(span, op, err)
	}
	return dto.NewEquipmentAvailabilityResponse(counts), nil
}

func (s *equipmentService) Reserve(ctx context.Context, req dto.EquipmentReserveRequest) (dto.EquipmentReservationResponse, error) {
	const op = "equipment.reserve"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	req.Date = strings.TrimSpace(req.Date)
	req.LessonSlot = strings.TrimSpace(req.LessonSlot)

	var extra []string
	if req.Date != "" && !rules.ValidDate(req.Date) {
		extra = append(extra, "date")
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.EquipmentReservationResponse{}, err
	}

	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return dto.EquipmentReservationResponse{}, s.storage(span, op, err)
	}
	available := counts[models.UnitAvailable]
	span.SetAttributes(attribute.Int64("equipment.available", available), attribute.Int("equipment.quantity", req.Quantity))

	if !rules.Admit(available, req.Quantity) {
		observability.ReservationRejections().WithLabelValues("insufficient").Inc()
		span.SetStatus(codes.Error, "insufficient units")
		return dto.EquipmentReservationResponse{}, capacityExceeded(op, fmt.Sprintf("requested %d units but only %d available", req.Quantity, available))
	}

	reservation := models.EquipmentReservation{
		TeacherID:  req.TeacherID,
		RoomID:     req.RoomID,
		Date:       req.Date,
		LessonSlot: req.LessonSlot,
		Quantity:   req.Quantity,
		Status:     models.ReservationScheduled,
	}
	if err := s.repo.CreateReservation(ctx, &reservation); err != nil {
		if errors.Is(err, repository.ErrInsufficientUnits) {
			observability.ReservationRejections().WithLabelValues("concurrent").Inc()
			span.SetStatus(codes.Error, "units taken concurrently")
			return dto.EquipmentReservationResponse{}, capacityExceeded(op, fmt.Sprintf("requested %d units but they were taken by another reservation", req.Quantity))
		}
		return dto.EquipmentReservationResponse{}, s.storage(span, op, err)
	}

	s.logger.Info().
		Uint("reservation_id", reservation.ID).
		Uint("teacher_id", reservation.TeacherID).
		Int("quantity", reservation.Quantity).
		Msg("equipment reserved")

	return dto.NewEquipmentReservationResponse(reservation), nil
}

func (s *equipmentService) ActiveReservations(ctx context.Context, query dto.EquipmentReservationQuery) ([]dto.EquipmentReservationResponse, error) {
	const op = "equipment.active_reservations"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	filter := repository.ReservationFilter{
		Statuses: []models.ReservationStatus{models.ReservationScheduled, models.ReservationInUse},
	}
	if query.TeacherID != 0 {
		teacherID := query.TeacherID
		filter.TeacherID = &teacherID
	}

	reservations, err := s.repo.ListReservations(ctx, filter)
	if err != nil {
		return nil, s.storage(span, op, err)
	}
	return dto.NewEquipmentReservationResponseSlice(reservations), nil
}

func (s *equipmentService) BindAtPickup(ctx context.Context, reservationID uint, req dto.EquipmentPickupRequest) (dto.EquipmentHandoverResponse, error) {
	const op = "equipment.bind_at_pickup"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("equipment.reservation_id", int64(reservationID)))

	var extra []string
	units := make(map[uint]struct{}, len(req.Bindings))
	students := make(map[uint]struct{}, len(req.Bindings))
	for i, binding := range req.Bindings {
		if binding.UnitID != 0 {
			if _, dup := units[binding.UnitID]; dup {
				extra = append(extra, fmt.Sprintf("bindings[%d].unit_id", i))
			}
			units[binding.UnitID] = struct{}{}
		}
		if binding.StudentID != 0 {
			if _, dup := students[binding.StudentID]; dup {
				extra = append(extra, fmt.Sprintf("bindings[%d].student_id", i))
			}
			students[binding.StudentID] = struct{}{}
		}
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.EquipmentHandoverResponse{}, err
	}

	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EquipmentHandoverResponse{}, notFound(op, "reservation not found")
		}
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}
	if reservation.Status != models.ReservationScheduled {
		return dto.EquipmentHandoverResponse{}, notFound(op, "no scheduled reservation awaiting pickup")
	}
	if len(req.Bindings) > reservation.Quantity {
		return dto.EquipmentHandoverResponse{}, &Error{
			Kind:    ErrValidation,
			Op:      op,
			Fields:  []string{"bindings"},
			Message: fmt.Sprintf("reservation covers %d units", reservation.Quantity),
		}
	}

	unitIDs := make([]uint, 0, len(req.Bindings))
	for _, binding := range req.Bindings {
		unitIDs = append(unitIDs, binding.UnitID)
	}
	found, err := s.repo.ListUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}
	byID := make(map[uint]models.EquipmentUnit, len(found))
	for _, unit := range found {
		byID[unit.ID] = unit
	}

	bindings := make([]models.EquipmentBinding, 0, len(req.Bindings))
	for _, entry := range req.Bindings {
		unit, ok := byID[entry.UnitID]
		if !ok {
			return dto.EquipmentHandoverResponse{}, notFound(op, fmt.Sprintf("unit %d not found", entry.UnitID))
		}
		if !rules.CanBind(unit, reservation.ID) {
			return dto.EquipmentHandoverResponse{}, conflict(op, fmt.Sprintf("unit %s/%s is %s", unit.Bay, unit.Label, strings.ToLower(string(unit.Status))))
		}
		bindings = append(bindings, models.EquipmentBinding{StudentID: entry.StudentID, UnitID: entry.UnitID})
	}

	if err := s.repo.Bind(ctx, reservation.ID, bindings, s.now()); err != nil {
		switch {
		case errors.Is(err, repository.ErrUnitUnavailable):
			return dto.EquipmentHandoverResponse{}, conflict(op, "a unit changed state during pickup")
		case errors.Is(err, repository.ErrReservationState):
			return dto.EquipmentHandoverResponse{}, conflict(op, "reservation changed state during pickup")
		default:
			return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
		}
	}

	s.logger.Info().
		Uint("reservation_id", reservation.ID).
		Int("bindings", len(bindings)).
		Msg("equipment picked up")

	return s.handover(ctx, span, op, reservation.ID, unitIDs)
}

func (s *equipmentService) Return(ctx context.Context, reservationID uint) (dto.EquipmentHandoverResponse, error) {
	const op = "equipment.return"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("equipment.reservation_id", int64(reservationID)))

	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EquipmentHandoverResponse{}, notFound(op, "reservation not found")
		}
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}
	if reservation.Status == models.ReservationCompleted {
		return dto.EquipmentHandoverResponse{}, conflict(op, "reservation already returned")
	}

	units, err := s.repo.ListUnitsByReservation(ctx, reservation.ID)
	if err != nil {
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}
	statuses := make(map[uint]models.UnitStatus, len(units))
	unitIDs := make([]uint, 0, len(units))
	for _, unit := range units {
		statuses[unit.ID] = rules.ReturnedStatus(unit.Status)
		unitIDs = append(unitIDs, unit.ID)
	}

	if err := s.repo.Complete(ctx, reservation.ID, statuses, s.now()); err != nil {
		if errors.Is(err, repository.ErrReservationState) {
			return dto.EquipmentHandoverResponse{}, conflict(op, "reservation already returned")
		}
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}

	s.logger.Info().
		Uint("reservation_id", reservation.ID).
		Int("units", len(units)).
		Msg("equipment returned")

	return s.handover(ctx, span, op, reservation.ID, unitIDs)
}

func (s *equipmentService) ReportFault(ctx context.Context, req dto.EquipmentFaultRequest) (dto.EquipmentFaultResponse, error) {
	const op = "equipment.report_fault"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	req.Description = cleanText(req.Description)
	req.Action = cleanText(req.Action)
	if err := validate(s.validator, op, req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.EquipmentFaultResponse{}, err
	}

	unit, err := s.repo.GetUnit(ctx, req.UnitID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EquipmentFaultResponse{}, notFound(op, "unit not found")
		}
		return dto.EquipmentFaultResponse{}, s.storage(span, op, err)
	}

	fault := models.EquipmentFault{
		UnitID:      unit.ID,
		TeacherID:   req.TeacherID,
		StudentID:   req.StudentID,
		Description: req.Description,
		Action:      req.Action,
		Damaging:    rules.IsDamageReport(req.Description, s.damageKeywords),
	}
	if err := s.repo.CreateFault(ctx, &fault); err != nil {
		return dto.EquipmentFaultResponse{}, s.storage(span, op, err)
	}

	if fault.Damaging && unit.Status != models.UnitMaintenance {
		if err := s.repo.UpdateUnitStatus(ctx, unit.ID, models.UnitMaintenance); err != nil {
			return dto.EquipmentFaultResponse{}, s.storage(span, op, err)
		}
		s.logger.Info().
			Uint("unit_id", unit.ID).
			Str("previous", string(unit.Status)).
			Msg("unit moved to maintenance")
		unit.Status = models.UnitMaintenance
	}

	resp := dto.NewEquipmentFaultResponse(fault)
	resp.UnitStatus = string(unit.Status)
	return resp, nil
}

func (s *equipmentService) Faults(ctx context.Context) ([]dto.EquipmentFaultResponse, error) {
	const op = "equipment.faults"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	faults, err := s.repo.ListFaults(ctx)
	if err != nil {
		return nil, s.storage(span, op, err)
	}
	return dto.NewEquipmentFaultResponseSlice(faults), nil
}

func (s *equipmentService) handover(ctx context.Context, span trace.Span, op string, reservationID uint, unitIDs []uint) (dto.EquipmentHandoverResponse, error) {
	reservation, err := s.repo.GetReservation(ctx, reservationID)
	if err != nil {
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}
	bindings, err := s.repo.ListBindings(ctx, reservationID)
	if err != nil {
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}
	units, err := s.repo.ListUnitsByIDs(ctx, unitIDs)
	if err != nil {
		return dto.EquipmentHandoverResponse{}, s.storage(span, op, err)
	}

	return dto.EquipmentHandoverResponse{
		Reservation: dto.NewEquipmentReservationResponse(reservation),
		Bindings:    dto.NewEquipmentBindingResponseSlice(bindings),
		Units:       dto.NewEquipmentUnitResponseSlice(units),
	}, nil
}

func (s *equipmentService) storage(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "storage failure")
	s.logger.Error().Err(err).Str("op", op).Msg("equipment storage failure")
	return storageFailed(op, err)
}
