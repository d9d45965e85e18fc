package repository

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

// ReservationFilter narrows reservation listings.
type ReservationFilter struct {
	TeacherID *uint
	Statuses  []models.ReservationStatus
}

// EquipmentRepository defines data operations for the shared device pool.
type EquipmentRepository interface {
	CreateUnits(ctx context.Context, units []models.EquipmentUnit) error
	ExistingLabels(ctx context.Context, bay string, labels []string) ([]string, error)
	GetUnit(ctx context.Context, id uint) (models.EquipmentUnit, error)
	ListUnits(ctx context.Context) ([]models.EquipmentUnit, error)
	ListUnitsByIDs(ctx context.Context, ids []uint) ([]models.EquipmentUnit, error)
	ListUnitsByReservation(ctx context.Context, reservationID uint) ([]models.EquipmentUnit, error)
	CountByStatus(ctx context.Context) (map[models.UnitStatus]int64, error)
	UpdateUnitStatus(ctx context.Context, id uint, status models.UnitStatus) error

	CreateReservation(ctx context.Context, reservation *models.EquipmentReservation) error
	GetReservation(ctx context.Context, id uint) (models.EquipmentReservation, error)
	ListReservations(ctx context.Context, filter ReservationFilter) ([]models.EquipmentReservation, error)
	Bind(ctx context.Context, reservationID uint, bindings []models.EquipmentBinding, at time.Time) error
	Complete(ctx context.Context, reservationID uint, units map[uint]models.UnitStatus, at time.Time) error
	ListBindings(ctx context.Context, reservationID uint) ([]models.EquipmentBinding, error)

	CreateFault(ctx context.Context, fault *models.EquipmentFault) error
	ListFaults(ctx context.Context) ([]models.EquipmentFault, error)
}

type equipmentRepository struct {
	db *gorm.DB
}

// NewEquipmentRepository instantiates the repository.
func NewEquipmentRepository(db *gorm.DB) EquipmentRepository {
	return &equipmentRepository{db: db}
}

func (r *equipmentRepository) CreateUnits(ctx context.Context, units []models.EquipmentUnit) error {
	if len(units) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&units).Error
	})
}

func (r *equipmentRepository) ExistingLabels(ctx context.Context, bay string, labels []string) ([]string, error) {
	var existing []string
	if len(labels) == 0 {
		return existing, nil
	}
	if err := r.db.WithContext(ctx).
		Model(&models.EquipmentUnit{}).
		Where("bay = ? AND label IN ?", bay, labels).
		Order("label ASC").
		Pluck("label", &existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

func (r *equipmentRepository) GetUnit(ctx context.Context, id uint) (models.EquipmentUnit, error) {
	var unit models.EquipmentUnit
	if err := r.db.WithContext(ctx).First(&unit, id).Error; err != nil {
		return models.EquipmentUnit{}, err
	}
	return unit, nil
}

func (r *equipmentRepository) ListUnits(ctx context.Context) ([]models.EquipmentUnit, error) {
	var units []models.EquipmentUnit
	if err := r.db.WithContext(ctx).Order("bay ASC").Order("label ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *equipmentRepository) ListUnitsByIDs(ctx context.Context, ids []uint) ([]models.EquipmentUnit, error) {
	var units []models.EquipmentUnit
	if len(ids) == 0 {
		return units, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *equipmentRepository) ListUnitsByReservation(ctx context.Context, reservationID uint) ([]models.EquipmentUnit, error) {
	var units []models.EquipmentUnit
	if err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("bay ASC").
		Order("label ASC").
		Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (r *equipmentRepository) CountByStatus(ctx context.Context) (map[models.UnitStatus]int64, error) {
	var rows []struct {
		Status models.UnitStatus
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.EquipmentUnit{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := map[models.UnitStatus]int64{
		models.UnitAvailable:   0,
		models.UnitReserved:    0,
		models.UnitInUse:       0,
		models.UnitMaintenance: 0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

func (r *equipmentRepository) UpdateUnitStatus(ctx context.Context, id uint, status models.UnitStatus) error {
	result := r.db.WithContext(ctx).
		Model(&models.EquipmentUnit{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CreateReservation persists the reservation and flips any `Quantity`
// available units to reserved in one transaction.
func (r *equipmentRepository) CreateReservation(ctx context.Context, reservation *models.EquipmentReservation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&models.EquipmentUnit{}).
			Where("status = ?", models.UnitAvailable).
			Order("bay ASC").
			Order("label ASC").
			Limit(reservation.Quantity).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) < reservation.Quantity {
			return ErrInsufficientUnits
		}

		reservation.UnitIDs = datatypes.JSONSlice[uint](ids)
		if err := tx.Create(reservation).Error; err != nil {
			return err
		}

		result := tx.Model(&models.EquipmentUnit{}).
			Where("id IN ? AND status = ?", ids, models.UnitAvailable).
			Updates(map[string]interface{}{
				"status":         models.UnitReserved,
				"reservation_id": reservation.ID,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != int64(len(ids)) {
			return ErrInsufficientUnits
		}
		return nil
	})
}

func (r *equipmentRepository) GetReservation(ctx context.Context, id uint) (models.EquipmentReservation, error) {
	var reservation models.EquipmentReservation
	if err := r.db.WithContext(ctx).First(&reservation, id).Error; err != nil {
		return models.EquipmentReservation{}, err
	}
	return reservation, nil
}

func (r *equipmentRepository) ListReservations(ctx context.Context, filter ReservationFilter) ([]models.EquipmentReservation, error) {
	query := r.db.WithContext(ctx).Model(&models.EquipmentReservation{})

	if filter.TeacherID != nil {
		query = query.Where("teacher_id = ?", *filter.TeacherID)
	}

	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}

	var reservations []models.EquipmentReservation
	if err := query.Order("date ASC").Order("lesson_slot ASC").Order("id ASC").Find(&reservations).Error; err != nil {
		return nil, err
	}
	return reservations, nil
}

// Bind hands units to students, releases reserved units nobody picked up and
// moves the reservation to in-use.
func (r *equipmentRepository) Bind(ctx context.Context, reservationID uint, bindings []models.EquipmentBinding, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bound := make([]uint, 0, len(bindings))
		for i := range bindings {
			binding := &bindings[i]
			result := tx.Model(&models.EquipmentUnit{}).
				Where("id = ?", binding.UnitID).
				Where("(status = ? OR (status = ? AND reservation_id = ?))", models.UnitAvailable, models.UnitReserved, reservationID).
				Updates(map[string]interface{}{
					"status":         models.UnitInUse,
					"student_id":     binding.StudentID,
					"reservation_id": reservationID,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected != 1 {
				return ErrUnitUnavailable
			}

			binding.ReservationID = reservationID
			binding.Status = models.BindingInUse
			binding.BoundAt = at
			bound = append(bound, binding.UnitID)
		}

		if err := tx.Create(&bindings).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.EquipmentUnit{}).
			Where("reservation_id = ? AND status = ?", reservationID, models.UnitReserved).
			Where("id NOT IN ?", bound).
			Updates(map[string]interface{}{
				"status":         models.UnitAvailable,
				"reservation_id": nil,
			}).Error; err != nil {
			return err
		}

		result := tx.Model(&models.EquipmentReservation{}).
			Where("id = ? AND status = ?", reservationID, models.ReservationScheduled).
			Updates(map[string]interface{}{
				"status":       models.ReservationInUse,
				"picked_up_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrReservationState
		}
		return nil
	})
}

// Complete moves every unit of the reservation to its returned status, closes
// the bindings and marks the reservation completed.
func (r *equipmentRepository) Complete(ctx context.Context, reservationID uint, units map[uint]models.UnitStatus, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for unitID, status := range units {
			// A unit sent to maintenance after the caller read it keeps that status.
			if err := tx.Model(&models.EquipmentUnit{}).
				Where("id = ? AND reservation_id = ?", unitID, reservationID).
				Updates(map[string]interface{}{
					"status":         gorm.Expr("CASE WHEN status = ? THEN status ELSE ? END", models.UnitMaintenance, status),
					"student_id":     nil,
					"reservation_id": nil,
				}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&models.EquipmentBinding{}).
			Where("reservation_id = ? AND status = ?", reservationID, models.BindingInUse).
			Updates(map[string]interface{}{
				"status":      models.BindingReturned,
				"returned_at": at,
			}).Error; err != nil {
			return err
		}

		result := tx.Model(&models.EquipmentReservation{}).
			Where("id = ? AND status <> ?", reservationID, models.ReservationCompleted).
			Updates(map[string]interface{}{
				"status":      models.ReservationCompleted,
				"returned_at": at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected != 1 {
			return ErrReservationState
		}
		return nil
	})
}

func (r *equipmentRepository) ListBindings(ctx context.Context, reservationID uint) ([]models.EquipmentBinding, error) {
	var bindings []models.EquipmentBinding
	if err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id ASC").
		Find(&bindings).Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

func (r *equipmentRepository) CreateFault(ctx context.Context, fault *models.EquipmentFault) error {
	return r.db.WithContext(ctx).Create(fault).Error
}

func (r *equipmentRepository) ListFaults(ctx context.Context) ([]models.EquipmentFault, error) {
	var faults []models.EquipmentFault
	if err := r.db.WithContext(ctx).Order("created_at DESC").Order("id DESC").Find(&faults).Error; err != nil {
		return nil, err
	}
	return faults, nil
}
