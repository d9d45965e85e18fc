package service

import (
	"context"
	"errors"
	"sort"
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
	"github.com/noah-isme/school-records-api/pkg/render"
)

const incidentSequence = "incident"

var incidentCategoryLabels = []dto.IncidentCategoryResponse{
	{Code: string(models.IncidentCategoryBehavior), Label: "Behavior"},
	{Code: string(models.IncidentCategoryPerformance), Label: "Academic performance"},
	{Code: string(models.IncidentCategoryAttendance), Label: "Attendance"},
	{Code: string(models.IncidentCategorySocial), Label: "Social"},
	{Code: string(models.IncidentCategoryOther), Label: "Other"},
}

// IncidentService exposes the incident escalation workflow.
type IncidentService interface {
	Create(ctx context.Context, req dto.IncidentCreateRequest) (dto.IncidentResponse, error)
	RecordResponse(ctx context.Context, number uint, req dto.IncidentResponseRequest) (dto.IncidentResponse, error)
	Update(ctx context.Context, number uint, req dto.IncidentUpdateRequest) (dto.IncidentResponse, error)
	Get(ctx context.Context, number uint) (dto.IncidentResponse, error)
	List(ctx context.Context, query dto.IncidentListQuery) ([]dto.IncidentResponse, error)
	Print(ctx context.Context, req dto.IncidentPrintRequest) (dto.IncidentPrintResponse, error)
	Categories() []dto.IncidentCategoryResponse
}

type incidentService struct {
	repo      repository.IncidentRepository
	directory repository.DirectoryRepository
	sequence  repository.SequenceAllocator
	renderer  render.Renderer
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewIncidentService constructs the incident lifecycle manager.
func NewIncidentService(repo repository.IncidentRepository, directory repository.DirectoryRepository, sequence repository.SequenceAllocator, renderer render.Renderer, validate *validator.Validate, logger zerolog.Logger) IncidentService {
	return &incidentService{
		repo:      repo,
		directory: directory,
		sequence:  sequence,
		renderer:  renderer,
		validator: validate,
		logger:    logger.With().Str("component", "incident_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/school-records-api/internal/service/incident"),
		now:       time.Now,
	}
}

func (s *incidentService) Create(ctx context.Context, req dto.IncidentCreateRequest) (dto.IncidentResponse, error) {
	const op = "incident.create"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	req.Description = cleanText(req.Description)
	req.TeacherAction = cleanText(req.TeacherAction)

	var extra []string
	category, ok := rules.ParseCategory(req.Category)
	if strings.TrimSpace(req.Category) != "" && !ok {
		extra = append(extra, "category")
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.IncidentResponse{}, err
	}

	student, err := s.directory.GetStudent(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "student not found")
			return dto.IncidentResponse{}, notFound(op, "student not found")
		}
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}

	highest, err := s.repo.MaxNumber(ctx)
	if err != nil {
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}
	number, err := s.sequence.Next(ctx, incidentSequence, uint64(highest))
	if err != nil {
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}

	roomID := req.RoomID
	if roomID == 0 {
		roomID = student.RoomID
	}

	incident := models.Incident{
		Number:        uint(number),
		Description:   req.Description,
		Category:      category,
		StudentID:     student.ID,
		RoomID:        roomID,
		TeacherID:     req.TeacherID,
		TutorID:       student.TutorID,
		TeacherAction: req.TeacherAction,
		Tutor:         rules.InitialTierState(req.Escalation.Tutor),
		Coordination:  rules.InitialTierState(req.Escalation.Coordination),
		Management:    rules.InitialTierState(req.Escalation.Management),
		Status:        models.IncidentStatusOpen,
	}
	incident.Status = rules.DeriveIncidentStatus(incident)

	if err := s.repo.Create(ctx, &incident); err != nil {
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}

	span.SetAttributes(attribute.Int64("incident.number", int64(incident.Number)))
	s.logger.Info().
		Uint("number", incident.Number).
		Uint("student_id", incident.StudentID).
		Str("status", string(incident.Status)).
		Msg("incident created")

	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) RecordResponse(ctx context.Context, number uint, req dto.IncidentResponseRequest) (dto.IncidentResponse, error) {
	const op = "incident.record_response"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("incident.number", int64(number)))

	req.Text = cleanText(req.Text)

	var extra []string
	tier, ok := rules.ParseTier(req.Tier)
	if strings.TrimSpace(req.Tier) != "" && !ok {
		extra = append(extra, "tier")
	}
	if req.Text == models.SentinelNotRequested {
		extra = append(extra, "text")
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.IncidentResponse{}, err
	}

	incident, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "incident not found")
			return dto.IncidentResponse{}, notFound(op, "incident not found")
		}
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}

	now := s.now()
	state, _ := incident.TierState(tier)
	state.ResponseText = req.Text
	state.RespondedAt = &now

	if err := s.repo.UpdateTier(ctx, number, tier, state); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.IncidentResponse{}, notFound(op, "incident not found")
		}
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}
	incident.SetTierState(tier, state)

	derived := rules.DeriveIncidentStatus(incident)
	if derived != incident.Status {
		if err := s.repo.UpdateStatus(ctx, number, derived); err != nil {
			// The response is stored; the next read re-derives the status.
			return dto.IncidentResponse{}, s.storage(span, op, err)
		}
		incident.Status = derived
	}

	s.logger.Info().
		Uint("number", number).
		Str("tier", string(tier)).
		Str("status", string(incident.Status)).
		Msg("incident response recorded")

	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) Update(ctx context.Context, number uint, req dto.IncidentUpdateRequest) (dto.IncidentResponse, error) {
	const op = "incident.update"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()
	span.SetAttributes(attribute.Int64("incident.number", int64(number)))

	if req.Description != nil {
		description := cleanText(*req.Description)
		req.Description = &description
	}
	if req.TeacherAction != nil {
		action := cleanText(*req.TeacherAction)
		req.TeacherAction = &action
	}

	var extra []string
	var category models.IncidentCategory
	if req.Category != nil {
		parsed, ok := rules.ParseCategory(*req.Category)
		if !ok {
			extra = append(extra, "category")
		}
		category = parsed
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.IncidentResponse{}, err
	}

	incident, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "incident not found")
			return dto.IncidentResponse{}, notFound(op, "incident not found")
		}
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}

	before := incident
	if req.Description != nil {
		incident.Description = *req.Description
	}
	if req.TeacherAction != nil {
		incident.TeacherAction = *req.TeacherAction
	}
	if req.Category != nil {
		incident.Category = category
	}
	if esc := req.Escalation; esc != nil {
		toggles := map[models.Tier]*bool{
			models.TierTutor:        esc.Tutor,
			models.TierCoordination: esc.Coordination,
			models.TierManagement:   esc.Management,
		}
		for _, tier := range models.Tiers {
			if toggles[tier] == nil {
				continue
			}
			state, _ := incident.TierState(tier)
			incident.SetTierState(tier, rules.ToggleTier(state, *toggles[tier]))
		}
	}

	if detailsChanged(before, incident) {
		if err := s.repo.UpdateDetails(ctx, incident); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return dto.IncidentResponse{}, notFound(op, "incident not found")
			}
			return dto.IncidentResponse{}, s.storage(span, op, err)
		}
	}

	derived := rules.DeriveIncidentStatus(incident)
	if derived != incident.Status {
		if err := s.repo.UpdateStatus(ctx, number, derived); err != nil {
			return dto.IncidentResponse{}, s.storage(span, op, err)
		}
		incident.Status = derived
	}

	s.logger.Info().
		Uint("number", number).
		Str("status", string(incident.Status)).
		Msg("incident updated")

	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) Get(ctx context.Context, number uint) (dto.IncidentResponse, error) {
	const op = "incident.get"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	incident, err := s.repo.GetByNumber(ctx, number)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.IncidentResponse{}, notFound(op, "incident not found")
		}
		return dto.IncidentResponse{}, s.storage(span, op, err)
	}

	s.heal(ctx, &incident)
	return dto.NewIncidentResponse(incident), nil
}

func (s *incidentService) List(ctx context.Context, query dto.IncidentListQuery) ([]dto.IncidentResponse, error) {
	const op = "incident.list"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	var wanted models.IncidentStatus
	switch strings.ToUpper(strings.TrimSpace(query.Status)) {
	case "", "ALL":
	case string(models.IncidentStatusOpen):
		wanted = models.IncidentStatusOpen
	case string(models.IncidentStatusClosed):
		wanted = models.IncidentStatusClosed
	default:
		return nil, validationFailed(op, "status")
	}

	filter := repository.IncidentFilter{StudentName: query.StudentName}
	if query.RoomID != 0 {
		roomID := query.RoomID
		filter.RoomID = &roomID
	}
	if query.StudentID != 0 {
		studentID := query.StudentID
		filter.StudentID = &studentID
	}

	incidents, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, s.storage(span, op, err)
	}

	matched := incidents[:0]
	for i := range incidents {
		s.heal(ctx, &incidents[i])
		if wanted != "" && incidents[i].Status != wanted {
			continue
		}
		matched = append(matched, incidents[i])
	}
	out := dto.NewIncidentResponseSlice(matched)

	span.SetAttributes(attribute.Int("incident.count", len(out)))
	return out, nil
}

func (s *incidentService) Print(ctx context.Context, req dto.IncidentPrintRequest) (dto.IncidentPrintResponse, error) {
	const op = "incident.print"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	if err := validate(s.validator, op, req); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.IncidentPrintResponse{}, err
	}

	incidents, err := s.repo.ListByNumbers(ctx, uniqueNumbers(req.Numbers))
	if err != nil {
		return dto.IncidentPrintResponse{}, s.storage(span, op, err)
	}
	if len(incidents) == 0 {
		span.SetStatus(codes.Error, "incidents not found")
		return dto.IncidentPrintResponse{}, notFound(op, "no incidents found for the given numbers")
	}

	for i := range incidents {
		s.heal(ctx, &incidents[i])
	}

	sheets, err := s.sheets(ctx, incidents)
	if err != nil {
		return dto.IncidentPrintResponse{}, s.storage(span, op, err)
	}

	printedAt := s.now()
	doc := render.Document{
		Type:        render.DocumentIncidentReport,
		GeneratedAt: printedAt,
		Incidents:   sheets,
	}
	if err := s.renderer.Render(ctx, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render failed")
		s.logger.Error().Err(err).Int("incidents", len(sheets)).Msg("incident render failed")
		return dto.IncidentPrintResponse{}, &Error{Kind: ErrRenderer, Op: op, Message: "document renderer unavailable", Err: err}
	}

	numbers := make([]uint, 0, len(incidents))
	for _, incident := range incidents {
		numbers = append(numbers, incident.Number)
	}
	if err := s.repo.MarkPrinted(ctx, numbers, printedAt); err != nil {
		return dto.IncidentPrintResponse{}, s.storage(span, op, err)
	}

	observability.IncidentsPrinted().Add(float64(len(numbers)))
	s.logger.Info().Interface("numbers", numbers).Msg("incidents printed")

	return dto.IncidentPrintResponse{PrintedAt: printedAt, Documents: sheets}, nil
}

func (s *incidentService) Categories() []dto.IncidentCategoryResponse {
	out := make([]dto.IncidentCategoryResponse, len(incidentCategoryLabels))
	copy(out, incidentCategoryLabels)
	return out
}

// heal re-derives the status and rewrites the stored value when it drifted.
// A failed correction is logged; the caller still gets the derived status.
func (s *incidentService) heal(ctx context.Context, incident *models.Incident) {
	derived := rules.DeriveIncidentStatus(*incident)
	if derived == incident.Status {
		return
	}

	stored := incident.Status
	incident.Status = derived
	if err := s.repo.UpdateStatus(ctx, incident.Number, derived); err != nil {
		s.logger.Warn().Err(err).Uint("number", incident.Number).Msg("failed to correct incident status")
		return
	}

	observability.StatusCorrections().WithLabelValues("incident").Inc()
	s.logger.Info().
		Uint("number", incident.Number).
		Str("stored", string(stored)).
		Str("derived", string(derived)).
		Msg("incident status corrected")
}

func detailsChanged(before, after models.Incident) bool {
	if before.Description != after.Description ||
		before.Category != after.Category ||
		before.TeacherAction != after.TeacherAction {
		return true
	}
	for _, tier := range models.Tiers {
		was, _ := before.TierState(tier)
		is, _ := after.TierState(tier)
		if was.Requested != is.Requested || was.ResponseText != is.ResponseText || was.RespondedAt != is.RespondedAt {
			return true
		}
	}
	return false
}

func (s *incidentService) sheets(ctx context.Context, incidents []models.Incident) ([]render.IncidentSheet, error) {
	studentIDs := make([]uint, 0, len(incidents))
	roomIDs := make([]uint, 0, len(incidents))
	staffIDs := make([]uint, 0, len(incidents)*2)
	for _, incident := range incidents {
		studentIDs = append(studentIDs, incident.StudentID)
		roomIDs = append(roomIDs, incident.RoomID)
		staffIDs = append(staffIDs, incident.TeacherID)
		if incident.TutorID != nil {
			staffIDs = append(staffIDs, *incident.TutorID)
		}
	}

	students, err := s.directory.StudentNames(ctx, uniqueNumbers(studentIDs))
	if err != nil {
		return nil, err
	}
	rooms, err := s.directory.RoomNames(ctx, uniqueNumbers(roomIDs))
	if err != nil {
		return nil, err
	}
	staff, err := s.directory.StaffNames(ctx, uniqueNumbers(staffIDs))
	if err != nil {
		return nil, err
	}

	sheets := make([]render.IncidentSheet, 0, len(incidents))
	for _, incident := range incidents {
		sheet := render.IncidentSheet{
			Number:        incident.Number,
			Date:          incident.CreatedAt,
			Category:      string(incident.Category),
			Status:        string(incident.Status),
			Description:   incident.Description,
			StudentName:   students[incident.StudentID],
			RoomName:      rooms[incident.RoomID],
			TeacherName:   staff[incident.TeacherID],
			TeacherAction: incident.TeacherAction,
			Tiers:         make([]render.TierSheet, 0, len(models.Tiers)),
		}
		if incident.TutorID != nil {
			sheet.TutorName = staff[*incident.TutorID]
		}
		for _, tier := range models.Tiers {
			state, _ := incident.TierState(tier)
			sheet.Tiers = append(sheet.Tiers, render.TierSheet{
				Tier:        string(tier),
				Requested:   state.Requested,
				Response:    state.ResponseText,
				RespondedAt: state.RespondedAt,
			})
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}

func (s *incidentService) storage(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "storage failure")
	s.logger.Error().Err(err).Str("op", op).Msg("incident storage failure")
	return storageFailed(op, err)
}

func uniqueNumbers(values []uint) []uint {
	seen := make(map[uint]struct{}, len(values))
	out := make([]uint, 0, len(values))
	for _, value := range values {
		if value == 0 {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
