package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
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

// AttendanceService exposes roll calls, late/early events and attendance reports.
type AttendanceService interface {
	MarkBulk(ctx context.Context, req dto.AttendanceRollCallRequest) (dto.AttendanceRollCallResponse, error)
	RecordLateArrival(ctx context.Context, req dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error)
	RecordEarlyDeparture(ctx context.Context, req dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error)
	GetDay(ctx context.Context, studentID uint, date string) (dto.AttendanceDayResponse, error)
	RollCallStatus(ctx context.Context, query dto.AttendanceRollCallQuery) (dto.AttendanceRollCallStatusResponse, error)
	MonthlyReport(ctx context.Context, query dto.AttendanceReportQuery) (dto.AttendanceReportResponse, error)
}

type attendanceService struct {
	repo      repository.AttendanceRepository
	directory repository.DirectoryRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewAttendanceService constructs the attendance composer. cache may be nil.
func NewAttendanceService(repo repository.AttendanceRepository, directory repository.DirectoryRepository, cache *redis.Client, ttl time.Duration, validate *validator.Validate, logger zerolog.Logger) AttendanceService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &attendanceService{
		repo:      repo,
		directory: directory,
		cache:     cache,
		cacheTTL:  ttl,
		validator: validate,
		logger:    logger.With().Str("component", "attendance_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/school-records-api/internal/service/attendance"),
		now:       time.Now,
	}
}

func (s *attendanceService) MarkBulk(ctx context.Context, req dto.AttendanceRollCallRequest) (dto.AttendanceRollCallResponse, error) {
	const op = "attendance.mark_bulk"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	req.Date = strings.TrimSpace(req.Date)

	var extra []string
	if req.Date != "" && !rules.ValidDate(req.Date) {
		extra = append(extra, "date")
	}
	seen := make(map[uint]struct{}, len(req.Entries))
	marks := make([]models.AttendanceCode, len(req.Entries))
	for i, entry := range req.Entries {
		if strings.TrimSpace(entry.Mark) != "" {
			code, ok := rules.ParseAttendanceCode(entry.Mark)
			if !ok || !rules.IsBaseMark(code) {
				extra = append(extra, fmt.Sprintf("entries[%d].mark", i))
			}
			marks[i] = code
		}
		if entry.StudentID != 0 {
			if _, dup := seen[entry.StudentID]; dup {
				extra = append(extra, fmt.Sprintf("entries[%d].student_id", i))
			}
			seen[entry.StudentID] = struct{}{}
		}
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.AttendanceRollCallResponse{}, err
	}

	studentIDs := make([]uint, 0, len(req.Entries))
	for _, entry := range req.Entries {
		studentIDs = append(studentIDs, entry.StudentID)
	}

	existing, err := s.repo.CountConflicting(ctx, req.RoomID, req.Date, studentIDs)
	if err != nil {
		return dto.AttendanceRollCallResponse{}, s.storage(span, op, err)
	}
	if existing > 0 {
		span.SetStatus(codes.Error, "roll call exists")
		return dto.AttendanceRollCallResponse{}, conflict(op, "attendance already recorded for this room or these students on this date")
	}

	now := s.now()
	days := make([]models.AttendanceDay, 0, len(req.Entries))
	for i, entry := range req.Entries {
		days = append(days, models.AttendanceDay{
			StudentID:  entry.StudentID,
			RoomID:     req.RoomID,
			Date:       req.Date,
			Status:     marks[i],
			RecordedAt: now,
		})
	}

	if err := s.repo.CreateDays(ctx, days); err != nil {
		return dto.AttendanceRollCallResponse{}, s.storage(span, op, err)
	}

	s.invalidateReport(ctx, req.Date, req.RoomID)
	span.SetAttributes(attribute.Int("attendance.recorded", len(days)))
	s.logger.Info().
		Uint("room_id", req.RoomID).
		Str("date", req.Date).
		Int("recorded", len(days)).
		Msg("roll call recorded")

	return dto.AttendanceRollCallResponse{RoomID: req.RoomID, Date: req.Date, Recorded: len(days)}, nil
}

func (s *attendanceService) RecordLateArrival(ctx context.Context, req dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error) {
	return s.recordEvent(ctx, "attendance.record_late", models.AttendanceEventLate, req)
}

func (s *attendanceService) RecordEarlyDeparture(ctx context.Context, req dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error) {
	return s.recordEvent(ctx, "attendance.record_early", models.AttendanceEventEarly, req)
}

func (s *attendanceService) recordEvent(ctx context.Context, op string, kind models.AttendanceEventKind, req dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error) {
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	req.Reason = cleanText(req.Reason)
	req.Guardian = cleanText(req.Guardian)
	req.Phone = cleanText(req.Phone)

	var extra []string
	if req.Date != "" && !rules.ValidDate(req.Date) {
		extra = append(extra, "date")
	}
	if req.Time != "" && !rules.ValidClock(req.Time) {
		extra = append(extra, "time")
	}
	if err := validate(s.validator, op, req, extra...); err != nil {
		span.SetStatus(codes.Error, "validation failed")
		return dto.AttendanceDayResponse{}, err
	}

	now := s.now()
	day, err := s.repo.GetDay(ctx, req.StudentID, req.Date)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		day = models.AttendanceDay{
			StudentID:  req.StudentID,
			RoomID:     req.RoomID,
			Date:       req.Date,
			Status:     rules.ComposeAttendance("", kind),
			RecordedAt: now,
		}
		if err := s.repo.CreateDay(ctx, &day); err != nil {
			return dto.AttendanceDayResponse{}, s.storage(span, op, err)
		}
	case err != nil:
		return dto.AttendanceDayResponse{}, s.storage(span, op, err)
	default:
		composed := rules.ComposeAttendance(day.Status, kind)
		if composed != day.Status {
			if err := s.repo.UpdateDayStatus(ctx, day.ID, composed, now); err != nil {
				return dto.AttendanceDayResponse{}, s.storage(span, op, err)
			}
			day.Status = composed
			day.RecordedAt = now
		}
	}

	event := models.AttendanceEvent{
		StudentID:  req.StudentID,
		Date:       req.Date,
		Kind:       kind,
		Time:       req.Time,
		Reason:     req.Reason,
		Guardian:   req.Guardian,
		Phone:      req.Phone,
		RecordedAt: now,
	}
	if err := s.repo.UpsertEvent(ctx, &event); err != nil {
		return dto.AttendanceDayResponse{}, s.storage(span, op, err)
	}

	events, err := s.repo.ListEvents(ctx, req.StudentID, req.Date)
	if err != nil {
		return dto.AttendanceDayResponse{}, s.storage(span, op, err)
	}

	s.invalidateReport(ctx, req.Date, s.reportRooms(ctx, day.RoomID, req.StudentID)...)
	observability.AttendanceEvents().WithLabelValues(string(kind)).Inc()
	s.logger.Info().
		Uint("student_id", req.StudentID).
		Str("date", req.Date).
		Str("kind", string(kind)).
		Str("status", string(day.Status)).
		Msg("attendance event recorded")

	return dto.NewAttendanceDayResponse(day, events), nil
}

func (s *attendanceService) GetDay(ctx context.Context, studentID uint, date string) (dto.AttendanceDayResponse, error) {
	const op = "attendance.get_day"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	var fields []string
	if studentID == 0 {
		fields = append(fields, "student_id")
	}
	if !rules.ValidDate(date) {
		fields = append(fields, "date")
	}
	if len(fields) > 0 {
		return dto.AttendanceDayResponse{}, validationFailed(op, fields...)
	}

	day, err := s.repo.GetDay(ctx, studentID, date)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AttendanceDayResponse{}, notFound(op, "attendance day not found")
		}
		return dto.AttendanceDayResponse{}, s.storage(span, op, err)
	}

	events, err := s.repo.ListEvents(ctx, studentID, date)
	if err != nil {
		return dto.AttendanceDayResponse{}, s.storage(span, op, err)
	}
	return dto.NewAttendanceDayResponse(day, events), nil
}

func (s *attendanceService) RollCallStatus(ctx context.Context, query dto.AttendanceRollCallQuery) (dto.AttendanceRollCallStatusResponse, error) {
	const op = "attendance.roll_call_status"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	var extra []string
	if query.Date != "" && !rules.ValidDate(query.Date) {
		extra = append(extra, "date")
	}
	if err := validate(s.validator, op, query, extra...); err != nil {
		return dto.AttendanceRollCallStatusResponse{}, err
	}

	count, err := s.repo.CountRollCall(ctx, query.RoomID, query.Date)
	if err != nil {
		return dto.AttendanceRollCallStatusResponse{}, s.storage(span, op, err)
	}
	return dto.AttendanceRollCallStatusResponse{
		RoomID:  query.RoomID,
		Date:    query.Date,
		Taken:   count > 0,
		Records: count,
	}, nil
}

func (s *attendanceService) MonthlyReport(ctx context.Context, query dto.AttendanceReportQuery) (dto.AttendanceReportResponse, error) {
	const op = "attendance.monthly_report"
	ctx, span := s.tracer.Start(ctx, op)
	defer span.End()

	if err := validate(s.validator, op, query); err != nil {
		return dto.AttendanceReportResponse{}, err
	}
	from, to, ok := rules.MonthRange(query.Year, query.Month)
	if !ok {
		return dto.AttendanceReportResponse{}, validationFailed(op, "year", "month")
	}

	cacheKey := reportCacheKey(query.RoomID, from)
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, cacheKey).Result(); err == nil {
			var response dto.AttendanceReportResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				observability.ReportCacheLookups().WithLabelValues("hit").Inc()
				s.logger.Debug().Str("key", cacheKey).Msg("attendance report cache hit")
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read attendance report cache")
		}
		observability.ReportCacheLookups().WithLabelValues("miss").Inc()
	}

	students, err := s.directory.StudentsByRoom(ctx, query.RoomID)
	if err != nil {
		return dto.AttendanceReportResponse{}, s.storage(span, op, err)
	}

	ids := make([]uint, 0, len(students))
	for _, student := range students {
		ids = append(ids, student.ID)
	}
	days, err := s.repo.ListDays(ctx, ids, from, to)
	if err != nil {
		return dto.AttendanceReportResponse{}, s.storage(span, op, err)
	}

	byStudent := make(map[uint]map[string]string, len(students))
	for _, day := range days {
		if byStudent[day.StudentID] == nil {
			byStudent[day.StudentID] = make(map[string]string)
		}
		byStudent[day.StudentID][day.Date] = string(day.Status)
	}

	response := dto.AttendanceReportResponse{
		RoomID:   query.RoomID,
		Year:     query.Year,
		Month:    query.Month,
		From:     from,
		To:       to,
		Students: make([]dto.AttendanceReportRow, 0, len(students)),
	}
	for _, student := range students {
		row := dto.AttendanceReportRow{
			StudentID:   student.ID,
			StudentName: student.Name,
			Days:        byStudent[student.ID],
		}
		if row.Days == nil {
			row.Days = map[string]string{}
		}
		response.Students = append(response.Students, row)
	}

	if s.cache != nil {
		payload, err := json.Marshal(response)
		if err == nil {
			if err := s.cache.Set(ctx, cacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store attendance report cache")
			}
		}
	}

	return response, nil
}

// reportRooms lists the rooms whose monthly report can show the student's
// day: the room the day was recorded in and the student's home room, which
// is how reports select their rows.
func (s *attendanceService) reportRooms(ctx context.Context, dayRoomID, studentID uint) []uint {
	rooms := []uint{dayRoomID}
	if s.cache == nil {
		return rooms
	}
	student, err := s.directory.GetStudent(ctx, studentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to resolve home room for cache invalidation")
		}
		return rooms
	}
	return append(rooms, student.RoomID)
}

func (s *attendanceService) invalidateReport(ctx context.Context, date string, roomIDs ...uint) {
	if s.cache == nil {
		return
	}
	keys := make([]string, 0, len(roomIDs))
	for _, roomID := range uniqueNumbers(roomIDs) {
		keys = append(keys, reportCacheKey(roomID, date))
	}
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(ctx, keys...).Err(); err != nil {
		s.logger.Warn().Err(err).Strs("keys", keys).Msg("failed to invalidate attendance report cache")
	}
}

func (s *attendanceService) storage(span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "storage failure")
	s.logger.Error().Err(err).Str("op", op).Msg("attendance storage failure")
	return storageFailed(op, err)
}

// reportCacheKey builds attendance:report:<room>:<yyyy-mm> from any date in the month.
func reportCacheKey(roomID uint, date string) string {
	month := date
	if len(month) >= 7 {
		month = month[:7]
	}
	return fmt.Sprintf("attendance:report:%d:%s", roomID, month)
}
