package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// EquipmentUnitsRequest registers units in a charging bay.
type EquipmentUnitsRequest struct {
	Bay    string   `json:"bay" validate:"required,max=32"`
	Labels []string `json:"labels" validate:"required,min=1,dive,required,max=32"`
}

// EquipmentUnitResponse is the serialized representation of a unit.
type EquipmentUnitResponse struct {
	ID            uint   `json:"id"`
	Bay           string `json:"bay"`
	Label         string `json:"label"`
	Status        string `json:"status"`
	StudentID     *uint  `json:"student_id"`
	ReservationID *uint  `json:"reservation_id"`
}

// EquipmentAvailabilityResponse counts units per status.
type EquipmentAvailabilityResponse struct {
	Available   int64 `json:"available"`
	Reserved    int64 `json:"reserved"`
	InUse       int64 `json:"in_use"`
	Maintenance int64 `json:"maintenance"`
	Total       int64 `json:"total"`
}

// EquipmentReserveRequest asks for a number of units for one lesson.
type EquipmentReserveRequest struct {
	TeacherID  uint   `json:"teacher_id" validate:"required"`
	RoomID     uint   `json:"room_id" validate:"required"`
	Date       string `json:"date" validate:"required"`
	LessonSlot string `json:"lesson_slot" validate:"required,max=32"`
	Quantity   int    `json:"quantity" validate:"gt=0"`
}

// EquipmentReservationQuery filters active reservations.
type EquipmentReservationQuery struct {
	TeacherID uint `query:"teacher_id"`
}

// EquipmentReservationResponse is the serialized representation of a reservation.
type EquipmentReservationResponse struct {
	ID         uint       `json:"id"`
	TeacherID  uint       `json:"teacher_id"`
	RoomID     uint       `json:"room_id"`
	Date       string     `json:"date"`
	LessonSlot string     `json:"lesson_slot"`
	Quantity   int        `json:"quantity"`
	UnitIDs    []uint     `json:"unit_ids"`
	Status     string     `json:"status"`
	PickedUpAt *time.Time `json:"picked_up_at"`
	ReturnedAt *time.Time `json:"returned_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EquipmentBindingEntry hands one unit to one student.
type EquipmentBindingEntry struct {
	StudentID uint `json:"student_id" validate:"required"`
	UnitID    uint `json:"unit_id" validate:"required"`
}

// EquipmentPickupRequest lists the pickups of a reservation.
type EquipmentPickupRequest struct {
	Bindings []EquipmentBindingEntry `json:"bindings" validate:"required,min=1,dive"`
}

// EquipmentBindingResponse is the serialized representation of a pickup.
type EquipmentBindingResponse struct {
	StudentID  uint       `json:"student_id"`
	UnitID     uint       `json:"unit_id"`
	Status     string     `json:"status"`
	BoundAt    time.Time  `json:"bound_at"`
	ReturnedAt *time.Time `json:"returned_at"`
}

// EquipmentHandoverResponse is returned by pickup and return.
type EquipmentHandoverResponse struct {
	Reservation EquipmentReservationResponse `json:"reservation"`
	Bindings    []EquipmentBindingResponse   `json:"bindings"`
	Units       []EquipmentUnitResponse      `json:"units"`
}

// EquipmentFaultRequest reports a problem with a unit.
type EquipmentFaultRequest struct {
	UnitID      uint   `json:"unit_id" validate:"required"`
	TeacherID   uint   `json:"teacher_id" validate:"required"`
	StudentID   *uint  `json:"student_id"`
	Description string `json:"description" validate:"required,max=2000"`
	Action      string `json:"action" validate:"max=2000"`
}

// EquipmentFaultResponse is the serialized representation of a fault.
type EquipmentFaultResponse struct {
	ID          uint      `json:"id"`
	UnitID      uint      `json:"unit_id"`
	TeacherID   uint      `json:"teacher_id"`
	StudentID   *uint     `json:"student_id"`
	Description string    `json:"description"`
	Action      string    `json:"action"`
	Damaging    bool      `json:"damaging"`
	UnitStatus  string    `json:"unit_status,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewEquipmentUnitResponse converts a model into a DTO.
func NewEquipmentUnitResponse(unit models.EquipmentUnit) EquipmentUnitResponse {
	return EquipmentUnitResponse{
		ID:            unit.ID,
		Bay:           unit.Bay,
		Label:         unit.Label,
		Status:        string(unit.Status),
		StudentID:     unit.StudentID,
		ReservationID: unit.ReservationID,
	}
}

// NewEquipmentUnitResponseSlice converts a slice of models into DTOs.
func NewEquipmentUnitResponseSlice(units []models.EquipmentUnit) []EquipmentUnitResponse {
	out := make([]EquipmentUnitResponse, 0, len(units))
	for _, unit := range units {
		out = append(out, NewEquipmentUnitResponse(unit))
	}
	return out
}

// NewEquipmentAvailabilityResponse flattens per-status counts.
func NewEquipmentAvailabilityResponse(counts map[models.UnitStatus]int64) EquipmentAvailabilityResponse {
	resp := EquipmentAvailabilityResponse{
		Available:   counts[models.UnitAvailable],
		Reserved:    counts[models.UnitReserved],
		InUse:       counts[models.UnitInUse],
		Maintenance: counts[models.UnitMaintenance],
	}
	resp.Total = resp.Available + resp.Reserved + resp.InUse + resp.Maintenance
	return resp
}

// NewEquipmentReservationResponse converts a model into a DTO.
func NewEquipmentReservationResponse(reservation models.EquipmentReservation) EquipmentReservationResponse {
	unitIDs := make([]uint, 0, len(reservation.UnitIDs))
	unitIDs = append(unitIDs, reservation.UnitIDs...)
	return EquipmentReservationResponse{
		ID:         reservation.ID,
		TeacherID:  reservation.TeacherID,
		RoomID:     reservation.RoomID,
		Date:       reservation.Date,
		LessonSlot: reservation.LessonSlot,
		Quantity:   reservation.Quantity,
		UnitIDs:    unitIDs,
		Status:     string(reservation.Status),
		PickedUpAt: reservation.PickedUpAt,
		ReturnedAt: reservation.ReturnedAt,
		CreatedAt:  reservation.CreatedAt,
	}
}

// NewEquipmentReservationResponseSlice converts a slice of models into DTOs.
func NewEquipmentReservationResponseSlice(reservations []models.EquipmentReservation) []EquipmentReservationResponse {
	out := make([]EquipmentReservationResponse, 0, len(reservations))
	for _, reservation := range reservations {
		out = append(out, NewEquipmentReservationResponse(reservation))
	}
	return out
}

// NewEquipmentBindingResponseSlice converts binding models into DTOs.
func NewEquipmentBindingResponseSlice(bindings []models.EquipmentBinding) []EquipmentBindingResponse {
	out := make([]EquipmentBindingResponse, 0, len(bindings))
	for _, binding := range bindings {
		out = append(out, EquipmentBindingResponse{
			StudentID:  binding.StudentID,
			UnitID:     binding.UnitID,
			Status:     string(binding.Status),
			BoundAt:    binding.BoundAt,
			ReturnedAt: binding.ReturnedAt,
		})
	}
	return out
}

// NewEquipmentFaultResponse converts a model into a DTO.
func NewEquipmentFaultResponse(fault models.EquipmentFault) EquipmentFaultResponse {
	return EquipmentFaultResponse{
		ID:          fault.ID,
		UnitID:      fault.UnitID,
		TeacherID:   fault.TeacherID,
		StudentID:   fault.StudentID,
		Description: fault.Description,
		Action:      fault.Action,
		Damaging:    fault.Damaging,
		CreatedAt:   fault.CreatedAt,
	}
}

// NewEquipmentFaultResponseSlice converts a slice of models into DTOs.
func NewEquipmentFaultResponseSlice(faults []models.EquipmentFault) []EquipmentFaultResponse {
	out := make([]EquipmentFaultResponse, 0, len(faults))
	for _, fault := range faults {
		out = append(out, NewEquipmentFaultResponse(fault))
	}
	return out
}
