package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/models"
)

func seedUnits(t *testing.T, repo EquipmentRepository, labels ...string) []models.EquipmentUnit {
	t.Helper()
	units := make([]models.EquipmentUnit, 0, len(labels))
	for _, label := range labels {
		units = append(units, models.EquipmentUnit{Bay: "A", Label: label, Status: models.UnitAvailable})
	}
	require.NoError(t, repo.CreateUnits(context.Background(), units))

	stored, err := repo.ListUnits(context.Background())
	require.NoError(t, err)
	return stored
}

func TestEquipmentRepositoryCreateReservationFlagsUnits(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEquipmentRepository(db)
	ctx := context.Background()
	seedUnits(t, repo, "01", "02", "03")

	tooMany := models.EquipmentReservation{TeacherID: 1, RoomID: 2, Date: "2024-03-01", LessonSlot: "1", Quantity: 4, Status: models.ReservationScheduled}
	err := repo.CreateReservation(ctx, &tooMany)
	require.ErrorIs(t, err, ErrInsufficientUnits)

	var reservations int64
	require.NoError(t, db.Model(&models.EquipmentReservation{}).Count(&reservations).Error)
	require.Zero(t, reservations, "rejected reservation must not be persisted")

	reservation := models.EquipmentReservation{TeacherID: 1, RoomID: 2, Date: "2024-03-01", LessonSlot: "1", Quantity: 2, Status: models.ReservationScheduled}
	require.NoError(t, repo.CreateReservation(ctx, &reservation))
	require.Len(t, reservation.UnitIDs, 2)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), counts[models.UnitAvailable])
	require.Equal(t, int64(2), counts[models.UnitReserved])

	reserved, err := repo.ListUnitsByReservation(ctx, reservation.ID)
	require.NoError(t, err)
	require.Len(t, reserved, 2)

	stored, err := repo.GetReservation(ctx, reservation.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []uint(reservation.UnitIDs), []uint(stored.UnitIDs))
}

func TestEquipmentRepositoryBindAndComplete(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEquipmentRepository(db)
	ctx := context.Background()
	seedUnits(t, repo, "01", "02", "03")

	reservation := models.EquipmentReservation{TeacherID: 1, RoomID: 2, Date: "2024-03-01", LessonSlot: "2", Quantity: 2, Status: models.ReservationScheduled}
	require.NoError(t, repo.CreateReservation(ctx, &reservation))

	firstUnit := reservation.UnitIDs[0]
	now := time.Now()
	require.NoError(t, repo.Bind(ctx, reservation.ID, []models.EquipmentBinding{{StudentID: 42, UnitID: firstUnit}}, now))

	unit, err := repo.GetUnit(ctx, firstUnit)
	require.NoError(t, err)
	require.Equal(t, models.UnitInUse, unit.Status)
	require.NotNil(t, unit.StudentID)
	require.Equal(t, uint(42), *unit.StudentID)

	released, err := repo.GetUnit(ctx, reservation.UnitIDs[1])
	require.NoError(t, err)
	require.Equal(t, models.UnitAvailable, released.Status, "reserved units nobody picked up go back to the pool")
	require.Nil(t, released.ReservationID)

	stored, err := repo.GetReservation(ctx, reservation.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReservationInUse, stored.Status)
	require.NotNil(t, stored.PickedUpAt)

	err = repo.Bind(ctx, reservation.ID, []models.EquipmentBinding{{StudentID: 43, UnitID: released.ID}}, now)
	require.ErrorIs(t, err, ErrReservationState)

	require.NoError(t, repo.Complete(ctx, reservation.ID, map[uint]models.UnitStatus{firstUnit: models.UnitAvailable}, now))

	unit, err = repo.GetUnit(ctx, firstUnit)
	require.NoError(t, err)
	require.Equal(t, models.UnitAvailable, unit.Status)
	require.Nil(t, unit.StudentID)
	require.Nil(t, unit.ReservationID)

	bindings, err := repo.ListBindings(ctx, reservation.ID)
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	require.Equal(t, models.BindingReturned, bindings[0].Status)

	err = repo.Complete(ctx, reservation.ID, nil, now)
	require.ErrorIs(t, err, ErrReservationState)
}

func TestEquipmentRepositoryCompleteKeepsMaintenance(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEquipmentRepository(db)
	ctx := context.Background()
	seedUnits(t, repo, "01", "02")

	reservation := models.EquipmentReservation{TeacherID: 1, RoomID: 2, Date: "2024-03-01", LessonSlot: "3", Quantity: 1, Status: models.ReservationScheduled}
	require.NoError(t, repo.CreateReservation(ctx, &reservation))
	unitID := reservation.UnitIDs[0]

	now := time.Now()
	require.NoError(t, repo.Bind(ctx, reservation.ID, []models.EquipmentBinding{{StudentID: 42, UnitID: unitID}}, now))

	// A fault report lands between the caller reading the unit and completing the reservation.
	require.NoError(t, repo.UpdateUnitStatus(ctx, unitID, models.UnitMaintenance))
	require.NoError(t, repo.Complete(ctx, reservation.ID, map[uint]models.UnitStatus{unitID: models.UnitAvailable}, now))

	unit, err := repo.GetUnit(ctx, unitID)
	require.NoError(t, err)
	require.Equal(t, models.UnitMaintenance, unit.Status)
	require.Nil(t, unit.StudentID)
	require.Nil(t, unit.ReservationID)
}

func TestEquipmentRepositoryUnitLookups(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEquipmentRepository(db)
	ctx := context.Background()
	units := seedUnits(t, repo, "01", "02")

	existing, err := repo.ExistingLabels(ctx, "A", []string{"02", "09"})
	require.NoError(t, err)
	require.Equal(t, []string{"02"}, existing)

	require.NoError(t, repo.UpdateUnitStatus(ctx, units[0].ID, models.UnitMaintenance))
	unit, err := repo.GetUnit(ctx, units[0].ID)
	require.NoError(t, err)
	require.Equal(t, models.UnitMaintenance, unit.Status)

	_, err = repo.GetUnit(ctx, 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	fault := models.EquipmentFault{UnitID: units[0].ID, TeacherID: 3, Description: "broken hinge", Damaging: true}
	require.NoError(t, repo.CreateFault(ctx, &fault))
	faults, err := repo.ListFaults(ctx)
	require.NoError(t, err)
	require.Len(t, faults, 1)
	require.True(t, faults[0].Damaging)
}
