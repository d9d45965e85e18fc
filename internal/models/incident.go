package models

import "time"

// IncidentStatus is the derived lifecycle state of an incident.
type IncidentStatus string

const (
	// IncidentStatusOpen means at least one requested tier still owes a response.
	IncidentStatusOpen IncidentStatus = "OPEN"
	// IncidentStatusClosed means every requested tier has answered.
	IncidentStatusClosed IncidentStatus = "CLOSED"
)

// IncidentCategory classifies an incident.
type IncidentCategory string

const (
	IncidentCategoryBehavior    IncidentCategory = "BEHAVIOR"
	IncidentCategoryPerformance IncidentCategory = "PERFORMANCE"
	IncidentCategoryAttendance  IncidentCategory = "ATTENDANCE"
	IncidentCategorySocial      IncidentCategory = "SOCIAL"
	IncidentCategoryOther       IncidentCategory = "OTHER"
)

// Tier names one of the escalation levels an incident can be routed to.
type Tier string

const (
	TierTutor        Tier = "tutor"
	TierCoordination Tier = "coordination"
	TierManagement   Tier = "management"
)

// Tiers lists the escalation tiers in routing order.
var Tiers = []Tier{TierTutor, TierCoordination, TierManagement}

// SentinelNotRequested marks a tier that was never asked to respond.
const SentinelNotRequested = "NOT REQUESTED"

// TierState holds the escalation fields of a single tier.
type TierState struct {
	Requested    bool       `gorm:"not null;default:false" json:"requested"`
	ResponseText string     `gorm:"type:text;not null;default:''" json:"response_text"`
	RespondedAt  *time.Time `json:"responded_at"`
}

// Incident is a behavioral or administrative report raised against a student.
type Incident struct {
	Number        uint             `gorm:"primaryKey;autoIncrement:false" json:"number"`
	Description   string           `gorm:"type:text;not null" json:"description"`
	Category      IncidentCategory `gorm:"size:32;not null" json:"category"`
	StudentID     uint             `gorm:"not null;index" json:"student_id"`
	RoomID        uint             `gorm:"index" json:"room_id"`
	TeacherID     uint             `json:"teacher_id"`
	TutorID       *uint            `json:"tutor_id"`
	TeacherAction string           `gorm:"type:text;not null;default:''" json:"teacher_action"`
	Tutor         TierState        `gorm:"embedded;embeddedPrefix:tutor_" json:"tutor"`
	Coordination  TierState        `gorm:"embedded;embeddedPrefix:coordination_" json:"coordination"`
	Management    TierState        `gorm:"embedded;embeddedPrefix:management_" json:"management"`
	Status        IncidentStatus   `gorm:"size:16;not null;index" json:"status"`
	Printed       bool             `gorm:"not null;default:false" json:"printed"`
	PrintedAt     *time.Time       `json:"printed_at"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// TierState returns a copy of the named tier and whether the tier is known.
func (i Incident) TierState(tier Tier) (TierState, bool) {
	switch tier {
	case TierTutor:
		return i.Tutor, true
	case TierCoordination:
		return i.Coordination, true
	case TierManagement:
		return i.Management, true
	default:
		return TierState{}, false
	}
}

// SetTierState replaces the named tier. Unknown tiers are ignored.
func (i *Incident) SetTierState(tier Tier, state TierState) {
	switch tier {
	case TierTutor:
		i.Tutor = state
	case TierCoordination:
		i.Coordination = state
	case TierManagement:
		i.Management = state
	}
}
