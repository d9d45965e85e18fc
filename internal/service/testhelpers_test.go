package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/pkg/render"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func fixedNow() time.Time {
	return time.Date(2024, time.March, 1, 10, 30, 0, 0, time.UTC)
}

// countUpdates counts UPDATE statements issued through db.
func countUpdates(t *testing.T, db *gorm.DB) func() int {
	t.Helper()

	var (
		mu    sync.Mutex
		count int
	)
	err := db.Callback().Update().After("gorm:update").Register("test:count_updates", func(tx *gorm.DB) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	require.NoError(t, err)

	return func() int {
		mu.Lock()
		defer mu.Unlock()
		return count
	}
}

type renderStub struct {
	docs []render.Document
	err  error
}

func (r *renderStub) Render(ctx context.Context, doc render.Document) error {
	if r.err != nil {
		return r.err
	}
	r.docs = append(r.docs, doc)
	return nil
}
