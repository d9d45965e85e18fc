package models

import "time"

// AttendanceCode is the composite status of a student's school day.
type AttendanceCode string

const (
	// AttendancePresent is the plain present mark.
	AttendancePresent AttendanceCode = "P"
	// AttendanceAbsent is the plain absent mark.
	AttendanceAbsent AttendanceCode = "F"
	// AttendanceLate is present with a late arrival.
	AttendanceLate AttendanceCode = "PA"
	// AttendanceEarly is present with an early departure.
	AttendanceEarly AttendanceCode = "PS"
	// AttendanceLateEarly is present with both a late arrival and an early departure.
	AttendanceLateEarly AttendanceCode = "PSA"
)

// AttendanceEventKind names an amending event.
type AttendanceEventKind string

const (
	AttendanceEventLate  AttendanceEventKind = "LATE"
	AttendanceEventEarly AttendanceEventKind = "EARLY"
)

// DateLayout is the calendar date format used for attendance and reservations.
const DateLayout = "2006-01-02"

// AttendanceDay is the one-per-day attendance row of a student.
type AttendanceDay struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	StudentID  uint           `gorm:"not null;uniqueIndex:idx_attendance_student_date" json:"student_id"`
	Date       string         `gorm:"size:10;not null;uniqueIndex:idx_attendance_student_date;index:idx_attendance_room_date" json:"date"`
	RoomID     uint           `gorm:"not null;index:idx_attendance_room_date" json:"room_id"`
	Status     AttendanceCode `gorm:"size:4;not null" json:"status"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// AttendanceEvent keeps the detail of a late arrival or early departure.
type AttendanceEvent struct {
	ID         uint                `gorm:"primaryKey" json:"id"`
	StudentID  uint                `gorm:"not null;uniqueIndex:idx_attendance_event" json:"student_id"`
	Date       string              `gorm:"size:10;not null;uniqueIndex:idx_attendance_event" json:"date"`
	Kind       AttendanceEventKind `gorm:"size:8;not null;uniqueIndex:idx_attendance_event" json:"kind"`
	Time       string              `gorm:"size:5;not null" json:"time"`
	Reason     string              `gorm:"type:text" json:"reason"`
	Guardian   string              `gorm:"size:255" json:"guardian"`
	Phone      string              `gorm:"size:32" json:"phone"`
	RecordedAt time.Time           `json:"recorded_at"`
}
