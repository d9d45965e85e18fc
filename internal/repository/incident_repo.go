package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

// IncidentFilter narrows incident listings. Status is deliberately absent:
// stored statuses are a cache and are filtered only after re-derivation.
type IncidentFilter struct {
	RoomID      *uint
	StudentID   *uint
	StudentName string
}

// IncidentRepository defines data operations for incidents.
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByNumber(ctx context.Context, number uint) (models.Incident, error)
	List(ctx context.Context, filter IncidentFilter) ([]models.Incident, error)
	ListByNumbers(ctx context.Context, numbers []uint) ([]models.Incident, error)
	MaxNumber(ctx context.Context) (uint, error)
	UpdateTier(ctx context.Context, number uint, tier models.Tier, state models.TierState) error
	UpdateDetails(ctx context.Context, incident models.Incident) error
	UpdateStatus(ctx context.Context, number uint, status models.IncidentStatus) error
	MarkPrinted(ctx context.Context, numbers []uint, at time.Time) error
}

type incidentRepository struct {
	db *gorm.DB
}

// NewIncidentRepository instantiates the repository.
func NewIncidentRepository(db *gorm.DB) IncidentRepository {
	return &incidentRepository{db: db}
}

func (r *incidentRepository) Create(ctx context.Context, incident *models.Incident) error {
	return r.db.WithContext(ctx).Create(incident).Error
}

func (r *incidentRepository) GetByNumber(ctx context.Context, number uint) (models.Incident, error) {
	var incident models.Incident
	if err := r.db.WithContext(ctx).Where("number = ?", number).First(&incident).Error; err != nil {
		return models.Incident{}, err
	}
	return incident, nil
}

func (r *incidentRepository) List(ctx context.Context, filter IncidentFilter) ([]models.Incident, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.Incident{})

	if filter.RoomID != nil {
		query = query.Where("room_id = ?", *filter.RoomID)
	}

	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}

	if name := strings.TrimSpace(filter.StudentName); name != "" {
		like := "%" + strings.ToLower(name) + "%"
		students := db.Model(&models.Student{}).Select("id").Where("LOWER(name) LIKE ?", like)
		query = query.Where("student_id IN (?)", students)
	}

	var incidents []models.Incident
	if err := query.Order("created_at DESC").Order("number DESC").Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *incidentRepository) ListByNumbers(ctx context.Context, numbers []uint) ([]models.Incident, error) {
	var incidents []models.Incident
	if len(numbers) == 0 {
		return incidents, nil
	}
	if err := r.db.WithContext(ctx).
		Where("number IN ?", numbers).
		Order("number ASC").
		Find(&incidents).Error; err != nil {
		return nil, err
	}
	return incidents, nil
}

func (r *incidentRepository) MaxNumber(ctx context.Context) (uint, error) {
	var highest int64
	if err := r.db.WithContext(ctx).
		Model(&models.Incident{}).
		Select("COALESCE(MAX(number), 0)").
		Row().
		Scan(&highest); err != nil {
		return 0, err
	}
	return uint(highest), nil
}

func (r *incidentRepository) UpdateTier(ctx context.Context, number uint, tier models.Tier, state models.TierState) error {
	prefix := string(tier) + "_"
	result := r.db.WithContext(ctx).
		Model(&models.Incident{}).
		Where("number = ?", number).
		Updates(map[string]interface{}{
			prefix + "requested":     state.Requested,
			prefix + "response_text": state.ResponseText,
			prefix + "responded_at":  state.RespondedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateDetails writes the editable narrative fields and all three tier
// states. Status is left to UpdateStatus.
func (r *incidentRepository) UpdateDetails(ctx context.Context, incident models.Incident) error {
	values := map[string]interface{}{
		"description":    incident.Description,
		"category":       incident.Category,
		"teacher_action": incident.TeacherAction,
	}
	for _, tier := range models.Tiers {
		state, _ := incident.TierState(tier)
		prefix := string(tier) + "_"
		values[prefix+"requested"] = state.Requested
		values[prefix+"response_text"] = state.ResponseText
		values[prefix+"responded_at"] = state.RespondedAt
	}

	result := r.db.WithContext(ctx).
		Model(&models.Incident{}).
		Where("number = ?", incident.Number).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *incidentRepository) UpdateStatus(ctx context.Context, number uint, status models.IncidentStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.Incident{}).
		Where("number = ?", number).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *incidentRepository) MarkPrinted(ctx context.Context, numbers []uint, at time.Time) error {
	if len(numbers) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Incident{}).
		Where("number IN ?", numbers).
		Updates(map[string]interface{}{
			"printed":    true,
			"printed_at": at,
		}).Error
}
