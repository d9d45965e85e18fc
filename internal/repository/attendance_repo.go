package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/models"
)

// AttendanceRepository defines data operations for attendance days and their
// late/early details.
type AttendanceRepository interface {
	GetDay(ctx context.Context, studentID uint, date string) (models.AttendanceDay, error)
	CreateDay(ctx context.Context, day *models.AttendanceDay) error
	UpdateDayStatus(ctx context.Context, id uint, status models.AttendanceCode, at time.Time) error
	CountRollCall(ctx context.Context, roomID uint, date string) (int64, error)
	CountConflicting(ctx context.Context, roomID uint, date string, studentIDs []uint) (int64, error)
	CreateDays(ctx context.Context, days []models.AttendanceDay) error
	UpsertEvent(ctx context.Context, event *models.AttendanceEvent) error
	ListEvents(ctx context.Context, studentID uint, date string) ([]models.AttendanceEvent, error)
	ListDays(ctx context.Context, studentIDs []uint, from, to string) ([]models.AttendanceDay, error)
}

type attendanceRepository struct {
	db *gorm.DB
}

// NewAttendanceRepository instantiates the repository.
func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) GetDay(ctx context.Context, studentID uint, date string) (models.AttendanceDay, error) {
	var day models.AttendanceDay
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND date = ?", studentID, date).
		First(&day).Error; err != nil {
		return models.AttendanceDay{}, err
	}
	return day, nil
}

func (r *attendanceRepository) CreateDay(ctx context.Context, day *models.AttendanceDay) error {
	return r.db.WithContext(ctx).Create(day).Error
}

func (r *attendanceRepository) UpdateDayStatus(ctx context.Context, id uint, status models.AttendanceCode, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AttendanceDay{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"recorded_at": at,
		}).Error
}

func (r *attendanceRepository) CountRollCall(ctx context.Context, roomID uint, date string) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.AttendanceDay{}).
		Where("room_id = ? AND date = ?", roomID, date).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *attendanceRepository) CountConflicting(ctx context.Context, roomID uint, date string, studentIDs []uint) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.AttendanceDay{}).
		Where("date = ?", date)

	if len(studentIDs) > 0 {
		query = query.Where("(room_id = ? OR student_id IN ?)", roomID, studentIDs)
	} else {
		query = query.Where("room_id = ?", roomID)
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *attendanceRepository) CreateDays(ctx context.Context, days []models.AttendanceDay) error {
	if len(days) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&days).Error
	})
}

func (r *attendanceRepository) UpsertEvent(ctx context.Context, event *models.AttendanceEvent) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "date"}, {Name: "kind"}},
			DoUpdates: clause.AssignmentColumns([]string{"time", "reason", "guardian", "phone", "recorded_at"}),
		}).
		Create(event).Error
}

func (r *attendanceRepository) ListEvents(ctx context.Context, studentID uint, date string) ([]models.AttendanceEvent, error) {
	var events []models.AttendanceEvent
	if err := r.db.WithContext(ctx).
		Where("student_id = ? AND date = ?", studentID, date).
		Order("kind DESC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *attendanceRepository) ListDays(ctx context.Context, studentIDs []uint, from, to string) ([]models.AttendanceDay, error) {
	var days []models.AttendanceDay
	if len(studentIDs) == 0 {
		return days, nil
	}
	if err := r.db.WithContext(ctx).
		Where("student_id IN ?", studentIDs).
		Where("date >= ? AND date <= ?", from, to).
		Order("date ASC").
		Find(&days).Error; err != nil {
		return nil, err
	}
	return days, nil
}
