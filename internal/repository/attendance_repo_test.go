package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-records-api/internal/models"
)

func TestAttendanceRepositoryUpsertEventReplacesDetail(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	first := models.AttendanceEvent{StudentID: 42, Date: "2024-03-01", Kind: models.AttendanceEventLate, Time: "07:40", Reason: "Bus", RecordedAt: time.Now()}
	require.NoError(t, repo.UpsertEvent(ctx, &first))

	again := models.AttendanceEvent{StudentID: 42, Date: "2024-03-01", Kind: models.AttendanceEventLate, Time: "08:05", Reason: "Doctor", Guardian: "Maria", RecordedAt: time.Now()}
	require.NoError(t, repo.UpsertEvent(ctx, &again))

	early := models.AttendanceEvent{StudentID: 42, Date: "2024-03-01", Kind: models.AttendanceEventEarly, Time: "11:30", RecordedAt: time.Now()}
	require.NoError(t, repo.UpsertEvent(ctx, &early))

	events, err := repo.ListEvents(ctx, 42, "2024-03-01")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, models.AttendanceEventLate, events[0].Kind)
	require.Equal(t, "08:05", events[0].Time)
	require.Equal(t, "Doctor", events[0].Reason)
	require.Equal(t, "Maria", events[0].Guardian)
	require.Equal(t, models.AttendanceEventEarly, events[1].Kind)
}

func TestAttendanceRepositoryCountConflicting(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateDays(ctx, []models.AttendanceDay{
		{StudentID: 1, RoomID: 10, Date: "2024-03-01", Status: models.AttendancePresent, RecordedAt: time.Now()},
		{StudentID: 2, RoomID: 20, Date: "2024-03-01", Status: models.AttendanceLate, RecordedAt: time.Now()},
	}))

	count, err := repo.CountConflicting(ctx, 10, "2024-03-01", []uint{5})
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	count, err = repo.CountConflicting(ctx, 30, "2024-03-01", []uint{2, 3})
	require.NoError(t, err)
	require.Equal(t, int64(1), count, "student 2 already has a record in another room")

	count, err = repo.CountConflicting(ctx, 30, "2024-03-01", []uint{3})
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = repo.CountRollCall(ctx, 10, "2024-03-02")
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestAttendanceRepositoryListDaysWithinMonth(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAttendanceRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreateDays(ctx, []models.AttendanceDay{
		{StudentID: 1, RoomID: 10, Date: "2024-02-29", Status: models.AttendancePresent},
		{StudentID: 1, RoomID: 10, Date: "2024-03-01", Status: models.AttendanceAbsent},
		{StudentID: 1, RoomID: 10, Date: "2024-03-31", Status: models.AttendanceLateEarly},
		{StudentID: 2, RoomID: 10, Date: "2024-03-15", Status: models.AttendancePresent},
	}))

	days, err := repo.ListDays(ctx, []uint{1}, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, days, 2)
	require.Equal(t, "2024-03-01", days[0].Date)
	require.Equal(t, models.AttendanceLateEarly, days[1].Status)

	day, err := repo.GetDay(ctx, 1, "2024-03-01")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateDayStatus(ctx, day.ID, models.AttendanceLate, time.Now()))

	day, err = repo.GetDay(ctx, 1, "2024-03-01")
	require.NoError(t, err)
	require.Equal(t, models.AttendanceLate, day.Status)
}
