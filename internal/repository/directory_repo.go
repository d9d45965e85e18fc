package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

// DirectoryRepository reads the student, room and staff directory. The core
// never writes to these tables.
type DirectoryRepository interface {
	GetStudent(ctx context.Context, id uint) (models.Student, error)
	StudentsByRoom(ctx context.Context, roomID uint) ([]models.Student, error)
	StudentNames(ctx context.Context, ids []uint) (map[uint]string, error)
	RoomNames(ctx context.Context, ids []uint) (map[uint]string, error)
	StaffNames(ctx context.Context, ids []uint) (map[uint]string, error)
}

type directoryRepository struct {
	db *gorm.DB
}

// NewDirectoryRepository instantiates the repository.
func NewDirectoryRepository(db *gorm.DB) DirectoryRepository {
	return &directoryRepository{db: db}
}

func (r *directoryRepository) GetStudent(ctx context.Context, id uint) (models.Student, error) {
	var student models.Student
	if err := r.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return models.Student{}, err
	}
	return student, nil
}

func (r *directoryRepository) StudentsByRoom(ctx context.Context, roomID uint) ([]models.Student, error) {
	var students []models.Student
	if err := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("name ASC").
		Find(&students).Error; err != nil {
		return nil, err
	}
	return students, nil
}

type namedRow struct {
	ID   uint
	Name string
}

func (r *directoryRepository) names(ctx context.Context, model interface{}, ids []uint) (map[uint]string, error) {
	result := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var rows []namedRow
	if err := r.db.WithContext(ctx).
		Model(model).
		Select("id", "name").
		Where("id IN ?", ids).
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	for _, row := range rows {
		result[row.ID] = row.Name
	}
	return result, nil
}

func (r *directoryRepository) StudentNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	return r.names(ctx, &models.Student{}, ids)
}

func (r *directoryRepository) RoomNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	return r.names(ctx, &models.Room{}, ids)
}

func (r *directoryRepository) StaffNames(ctx context.Context, ids []uint) (map[uint]string, error) {
	return r.names(ctx, &models.Staff{}, ids)
}
