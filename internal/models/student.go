package models

import "time"

// Student represents a learner enrolled in a room. TutorID points at the
// student's current tutor and may change over the school year.
type Student struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"size:255;not null;index" json:"name"`
	Enrollment string    `gorm:"size:64" json:"enrollment"`
	RoomID     uint      `gorm:"index" json:"room_id"`
	TutorID    *uint     `json:"tutor_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Room is a class section.
type Room struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:128;not null" json:"name"`
}

// Staff is any employee that can report, tutor or answer an incident.
type Staff struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:255;not null" json:"name"`
}

// TableName keeps the staff table name singular-free and stable.
func (Staff) TableName() string {
	return "staff"
}
