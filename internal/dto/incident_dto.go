package dto

import (
	"time"

	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/rules"
	"github.com/noah-isme/school-records-api/pkg/render"
)

// IncidentEscalation selects the tiers an incident is routed to.
type IncidentEscalation struct {
	Tutor        bool `json:"tutor"`
	Coordination bool `json:"coordination"`
	Management   bool `json:"management"`
}

// IncidentCreateRequest describes the payload to raise an incident.
type IncidentCreateRequest struct {
	Description   string             `json:"description" validate:"required,max=5000"`
	Category      string             `json:"category" validate:"required"`
	StudentID     uint               `json:"student_id" validate:"required"`
	RoomID        uint               `json:"room_id"`
	TeacherID     uint               `json:"teacher_id"`
	TeacherAction string             `json:"teacher_action" validate:"max=5000"`
	Escalation    IncidentEscalation `json:"escalation"`
}

// IncidentResponseRequest records a tier's answer.
type IncidentResponseRequest struct {
	Tier string `json:"tier" validate:"required"`
	Text string `json:"text" validate:"required,max=5000"`
}

// IncidentEscalationUpdate toggles individual tiers; nil leaves a tier as is.
type IncidentEscalationUpdate struct {
	Tutor        *bool `json:"tutor"`
	Coordination *bool `json:"coordination"`
	Management   *bool `json:"management"`
}

// IncidentUpdateRequest edits an incident after creation. Omitted fields are kept.
type IncidentUpdateRequest struct {
	Description   *string                   `json:"description" validate:"omitnil,required,max=5000"`
	Category      *string                   `json:"category"`
	TeacherAction *string                   `json:"teacher_action" validate:"omitnil,max=5000"`
	Escalation    *IncidentEscalationUpdate `json:"escalation"`
}

// IncidentListQuery filters incident listings. Status accepts OPEN, CLOSED or ALL.
type IncidentListQuery struct {
	Status      string `query:"status"`
	RoomID      uint   `query:"room_id"`
	StudentID   uint   `query:"student_id"`
	StudentName string `query:"student"`
}

// IncidentPrintRequest lists the incidents to print.
type IncidentPrintRequest struct {
	Numbers []uint `json:"numbers" validate:"required,min=1"`
}

// IncidentTierResponse is the serialized state of one tier.
type IncidentTierResponse struct {
	Requested    bool       `json:"requested"`
	ResponseText string     `json:"response_text"`
	RespondedAt  *time.Time `json:"responded_at"`
	Pending      bool       `json:"pending"`
}

// IncidentResponse is the serialized representation of an incident.
type IncidentResponse struct {
	Number        uint                 `json:"number"`
	Description   string               `json:"description"`
	Category      string               `json:"category"`
	StudentID     uint                 `json:"student_id"`
	RoomID        uint                 `json:"room_id"`
	TeacherID     uint                 `json:"teacher_id"`
	TutorID       *uint                `json:"tutor_id"`
	TeacherAction string               `json:"teacher_action"`
	Tutor         IncidentTierResponse `json:"tutor"`
	Coordination  IncidentTierResponse `json:"coordination"`
	Management    IncidentTierResponse `json:"management"`
	Status        string               `json:"status"`
	PendingTiers  []string             `json:"pending_tiers"`
	Printed       bool                 `json:"printed"`
	PrintedAt     *time.Time           `json:"printed_at"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// IncidentPrintResponse returns the rendered sheets in number order.
type IncidentPrintResponse struct {
	PrintedAt time.Time              `json:"printed_at"`
	Documents []render.IncidentSheet `json:"documents"`
}

// IncidentCategoryResponse describes one entry of the category catalogue.
type IncidentCategoryResponse struct {
	Code  string `json:"code"`
	Label string `json:"label"`
}

func newIncidentTierResponse(state models.TierState) IncidentTierResponse {
	return IncidentTierResponse{
		Requested:    state.Requested,
		ResponseText: state.ResponseText,
		RespondedAt:  state.RespondedAt,
		Pending:      rules.TierPending(state),
	}
}

// NewIncidentResponse converts a model into a DTO.
func NewIncidentResponse(incident models.Incident) IncidentResponse {
	pending := rules.PendingTiers(incident)
	tiers := make([]string, 0, len(pending))
	for _, tier := range pending {
		tiers = append(tiers, string(tier))
	}

	return IncidentResponse{
		Number:        incident.Number,
		Description:   incident.Description,
		Category:      string(incident.Category),
		StudentID:     incident.StudentID,
		RoomID:        incident.RoomID,
		TeacherID:     incident.TeacherID,
		TutorID:       incident.TutorID,
		TeacherAction: incident.TeacherAction,
		Tutor:         newIncidentTierResponse(incident.Tutor),
		Coordination:  newIncidentTierResponse(incident.Coordination),
		Management:    newIncidentTierResponse(incident.Management),
		Status:        string(incident.Status),
		PendingTiers:  tiers,
		Printed:       incident.Printed,
		PrintedAt:     incident.PrintedAt,
		CreatedAt:     incident.CreatedAt,
		UpdatedAt:     incident.UpdatedAt,
	}
}

// NewIncidentResponseSlice converts a slice of models into DTOs.
func NewIncidentResponseSlice(incidents []models.Incident) []IncidentResponse {
	out := make([]IncidentResponse, 0, len(incidents))
	for _, incident := range incidents {
		out = append(out, NewIncidentResponse(incident))
	}
	return out
}
