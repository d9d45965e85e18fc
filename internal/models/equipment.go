package models

import (
	"time"

	"gorm.io/datatypes"
)

// UnitStatus is the state of a single shared device.
type UnitStatus string

const (
	UnitAvailable   UnitStatus = "AVAILABLE"
	UnitReserved    UnitStatus = "RESERVED"
	UnitInUse       UnitStatus = "IN_USE"
	UnitMaintenance UnitStatus = "MAINTENANCE"
)

// ReservationStatus is the state of a reservation request.
type ReservationStatus string

const (
	ReservationScheduled ReservationStatus = "SCHEDULED"
	ReservationInUse     ReservationStatus = "IN_USE"
	ReservationCompleted ReservationStatus = "COMPLETED"
)

// BindingStatus tracks a student's pickup of a unit.
type BindingStatus string

const (
	BindingInUse    BindingStatus = "IN_USE"
	BindingReturned BindingStatus = "RETURNED"
)

// EquipmentUnit is a device stored in a charging bay.
type EquipmentUnit struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Bay           string     `gorm:"size:32;not null;uniqueIndex:idx_equipment_bay_label" json:"bay"`
	Label         string     `gorm:"size:32;not null;uniqueIndex:idx_equipment_bay_label" json:"label"`
	Status        UnitStatus `gorm:"size:16;not null;index" json:"status"`
	StudentID     *uint      `json:"student_id"`
	ReservationID *uint      `gorm:"index" json:"reservation_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// EquipmentReservation is a teacher's request for a number of units for one lesson.
type EquipmentReservation struct {
	ID         uint                      `gorm:"primaryKey" json:"id"`
	TeacherID  uint                      `gorm:"not null;index" json:"teacher_id"`
	RoomID     uint                      `gorm:"not null" json:"room_id"`
	Date       string                    `gorm:"size:10;not null" json:"date"`
	LessonSlot string                    `gorm:"size:32;not null" json:"lesson_slot"`
	Quantity   int                       `gorm:"not null" json:"quantity"`
	UnitIDs    datatypes.JSONSlice[uint] `gorm:"type:json" json:"unit_ids"`
	Status     ReservationStatus         `gorm:"size:16;not null;index" json:"status"`
	PickedUpAt *time.Time                `json:"picked_up_at"`
	ReturnedAt *time.Time                `json:"returned_at"`
	CreatedAt  time.Time                 `json:"created_at"`
	UpdatedAt  time.Time                 `json:"updated_at"`
}

// EquipmentBinding records which student took which unit at pickup.
type EquipmentBinding struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	ReservationID uint          `gorm:"not null;index" json:"reservation_id"`
	StudentID     uint          `gorm:"not null" json:"student_id"`
	UnitID        uint          `gorm:"not null" json:"unit_id"`
	Status        BindingStatus `gorm:"size:16;not null" json:"status"`
	BoundAt       time.Time     `json:"bound_at"`
	ReturnedAt    *time.Time    `json:"returned_at"`
}

// EquipmentFault is a problem reported against a unit.
type EquipmentFault struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UnitID      uint      `gorm:"not null;index" json:"unit_id"`
	TeacherID   uint      `gorm:"not null" json:"teacher_id"`
	StudentID   *uint     `json:"student_id"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Action      string    `gorm:"type:text" json:"action"`
	Damaging    bool      `gorm:"not null;default:false" json:"damaging"`
	CreatedAt   time.Time `json:"created_at"`
}
