package render

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// DocumentIncidentReport is the document type of a printed incident batch.
const DocumentIncidentReport = "incident-report"

// TierSheet is the printable state of one escalation tier.
type TierSheet struct {
	Tier        string     `json:"tier"`
	Requested   bool       `json:"requested"`
	Response    string     `json:"response"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// IncidentSheet is a single incident with its display names resolved.
type IncidentSheet struct {
	Number        uint        `json:"number"`
	Date          time.Time   `json:"date"`
	Category      string      `json:"category"`
	Status        string      `json:"status"`
	Description   string      `json:"description"`
	StudentName   string      `json:"student_name"`
	RoomName      string      `json:"room_name"`
	TutorName     string      `json:"tutor_name"`
	TeacherName   string      `json:"teacher_name"`
	TeacherAction string      `json:"teacher_action"`
	Tiers         []TierSheet `json:"tiers"`
}

// Document is one render request.
type Document struct {
	Type        string          `json:"type"`
	GeneratedAt time.Time       `json:"generated_at"`
	Incidents   []IncidentSheet `json:"incidents"`
}

// Renderer turns a document into its printable form.
type Renderer interface {
	Render(ctx context.Context, doc Document) error
}

// LogRenderer only logs documents. It is used when no render service is configured.
type LogRenderer struct {
	logger zerolog.Logger
}

// NewLogRenderer constructs a logging renderer.
func NewLogRenderer(logger zerolog.Logger) *LogRenderer {
	return &LogRenderer{logger: logger.With().Str("component", "log_renderer").Logger()}
}

// Render logs the document and reports success.
func (l *LogRenderer) Render(ctx context.Context, doc Document) error {
	numbers := make([]uint, 0, len(doc.Incidents))
	for _, sheet := range doc.Incidents {
		numbers = append(numbers, sheet.Number)
	}
	l.logger.Info().Str("type", doc.Type).Interface("incidents", numbers).Msg("document render requested")
	return nil
}
