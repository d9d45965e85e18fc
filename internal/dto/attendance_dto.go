package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
)

// AttendanceEntry is one student's mark in a roll call.
type AttendanceEntry struct {
	StudentID uint   `json:"student_id" validate:"required"`
	Mark      string `json:"mark" validate:"required"`
}

// AttendanceRollCallRequest records the base marks of a room for one date.
type AttendanceRollCallRequest struct {
	RoomID  uint              `json:"room_id" validate:"required"`
	Date    string            `json:"date" validate:"required"`
	Entries []AttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceRollCallResponse summarises a stored roll call.
type AttendanceRollCallResponse struct {
	RoomID   uint   `json:"room_id"`
	Date     string `json:"date"`
	Recorded int    `json:"recorded"`
}

// AttendanceEventRequest records a late arrival or an early departure.
type AttendanceEventRequest struct {
	StudentID uint   `json:"student_id" validate:"required"`
	RoomID    uint   `json:"room_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Time      string `json:"time" validate:"required"`
	Reason    string `json:"reason" validate:"max=2000"`
	Guardian  string `json:"guardian" validate:"max=255"`
	Phone     string `json:"phone" validate:"max=32"`
}

// AttendanceRollCallQuery identifies a room's roll call.
type AttendanceRollCallQuery struct {
	RoomID uint   `query:"room_id" validate:"required"`
	Date   string `query:"date" validate:"required"`
}

// AttendanceRollCallStatusResponse tells whether a roll call was taken.
type AttendanceRollCallStatusResponse struct {
	RoomID  uint   `json:"room_id"`
	Date    string `json:"date"`
	Taken   bool   `json:"taken"`
	Records int64  `json:"records"`
}

// AttendanceEventResponse is the serialized detail of a late or early event.
type AttendanceEventResponse struct {
	Kind       string    `json:"kind"`
	Time       string    `json:"time"`
	Reason     string    `json:"reason"`
	Guardian   string    `json:"guardian"`
	Phone      string    `json:"phone"`
	RecordedAt time.Time `json:"recorded_at"`
}

// AttendanceDayResponse is a student's day with its amending events.
type AttendanceDayResponse struct {
	StudentID  uint                     `json:"student_id"`
	RoomID     uint                     `json:"room_id"`
	Date       string                   `json:"date"`
	Status     string                   `json:"status"`
	RecordedAt time.Time                `json:"recorded_at"`
	Late       *AttendanceEventResponse `json:"late"`
	Early      *AttendanceEventResponse `json:"early"`
}

// AttendanceReportQuery selects a monthly report.
type AttendanceReportQuery struct {
	RoomID uint `query:"room_id" validate:"required"`
	Year   int  `query:"year" validate:"required,min=1"`
	Month  int  `query:"month" validate:"required,min=1,max=12"`
}

// AttendanceReportRow is one student's month.
type AttendanceReportRow struct {
	StudentID   uint              `json:"student_id"`
	StudentName string            `json:"student_name"`
	Days        map[string]string `json:"days"`
}

// AttendanceReportResponse is the monthly attendance grid of a room.
type AttendanceReportResponse struct {
	RoomID   uint                  `json:"room_id"`
	Year     int                   `json:"year"`
	Month    int                   `json:"month"`
	From     string                `json:"from"`
	To       string                `json:"to"`
	Students []AttendanceReportRow `json:"students"`
}

// NewAttendanceEventResponse converts an event model into a DTO.
func NewAttendanceEventResponse(event models.AttendanceEvent) *AttendanceEventResponse {
	return &AttendanceEventResponse{
		Kind:       string(event.Kind),
		Time:       event.Time,
		Reason:     event.Reason,
		Guardian:   event.Guardian,
		Phone:      event.Phone,
		RecordedAt: event.RecordedAt,
	}
}

// NewAttendanceDayResponse combines a day with its event details.
func NewAttendanceDayResponse(day models.AttendanceDay, events []models.AttendanceEvent) AttendanceDayResponse {
	resp := AttendanceDayResponse{
		StudentID:  day.StudentID,
		RoomID:     day.RoomID,
		Date:       day.Date,
		Status:     string(day.Status),
		RecordedAt: day.RecordedAt,
	}
	for _, event := range events {
		switch event.Kind {
		case models.AttendanceEventLate:
			resp.Late = NewAttendanceEventResponse(event)
		case models.AttendanceEventEarly:
			resp.Early = NewAttendanceEventResponse(event)
		}
	}
	return resp
}
