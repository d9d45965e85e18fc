package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/school-records-api/internal/models"
)

// SequenceAllocator hands out strictly increasing numbers per sequence name.
// floor is the highest value already in use; the returned value is always
// greater than floor and greater than every value handed out before, so
// numbers are never reused even if the highest record is deleted later.
type SequenceAllocator interface {
	Next(ctx context.Context, name string, floor uint64) (uint64, error)
}

type sequenceRepository struct {
	db *gorm.DB
}

// NewSequenceRepository builds a counter-row allocator on the relational store.
func NewSequenceRepository(db *gorm.DB) SequenceAllocator {
	return &sequenceRepository{db: db}
}

func (r *sequenceRepository) Next(ctx context.Context, name string, floor uint64) (uint64, error) {
	var next uint64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.Sequence{Name: name, Value: floor}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return err
		}

		// The UPDATE takes the row lock, so concurrent callers queue here.
		if err := tx.Model(&models.Sequence{}).
			Where("name = ?", name).
			Update("value", gorm.Expr("CASE WHEN value < ? THEN ? ELSE value END + 1", floor, floor)).Error; err != nil {
			return err
		}

		var current models.Sequence
		if err := tx.Where("name = ?", name).First(&current).Error; err != nil {
			return err
		}
		next = current.Value
		return nil
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

var nextSequenceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
  redis.call('SET', KEYS[1], floor)
end
return redis.call('INCR', KEYS[1])
`)

type redisSequence struct {
	client *redis.Client
	prefix string
}

// NewRedisSequence builds an allocator backed by Redis INCR.
func NewRedisSequence(client *redis.Client, prefix string) SequenceAllocator {
	if prefix == "" {
		prefix = "sequence"
	}
	return &redisSequence{client: client, prefix: prefix}
}

func (r *redisSequence) Next(ctx context.Context, name string, floor uint64) (uint64, error) {
	if r.client == nil {
		return 0, errors.New("redis client not configured")
	}
	value, err := nextSequenceScript.Run(ctx, r.client, []string{r.prefix + ":" + name}, floor).Int64()
	if err != nil {
		return 0, err
	}
	return uint64(value), nil
}
