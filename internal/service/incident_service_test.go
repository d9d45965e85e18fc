package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/models"
	"github.com/noah-isme/school-records-api/internal/repository"
)

func seedDirectory(t *testing.T, db *gorm.DB) {
	t.Helper()

	tutorID := uint(11)
	require.NoError(t, db.Create(&models.Room{ID: 3, Name: "7A"}).Error)
	require.NoError(t, db.Create(&[]models.Staff{{ID: 9, Name: "Prof. Lima"}, {ID: 11, Name: "Carla Tutor"}, {ID: 12, Name: "Bruno Tutor"}}).Error)
	require.NoError(t, db.Create(&[]models.Student{
		{ID: 42, Name: "Ana Souza", RoomID: 3, TutorID: &tutorID},
		{ID: 43, Name: "Pedro Alves", RoomID: 3},
	}).Error)
}

func setupIncidentService(t *testing.T, renderer *renderStub) (*gorm.DB, IncidentService) {
	t.Helper()

	db := setupServiceDB(t)
	seedDirectory(t, db)

	svc := NewIncidentService(
		repository.NewIncidentRepository(db),
		repository.NewDirectoryRepository(db),
		repository.NewSequenceRepository(db),
		renderer,
		testValidator(),
		zerolog.Nop(),
	)
	if concrete, ok := svc.(*incidentService); ok {
		concrete.now = fixedNow
	}
	return db, svc
}

func newIncident(studentID uint, tutor, coordination, management bool) dto.IncidentCreateRequest {
	return dto.IncidentCreateRequest{
		Description: "Disrupted the lesson",
		Category:    "behavior",
		StudentID:   studentID,
		TeacherID:   9,
		Escalation: dto.IncidentEscalation{
			Tutor:        tutor,
			Coordination: coordination,
			Management:   management,
		},
	}
}

func TestIncidentServiceTutorOnlyEscalation(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Incident{Number: 6, Description: "older", Category: models.IncidentCategoryOther, StudentID: 43, Status: models.IncidentStatusClosed}).Error)

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	require.Equal(t, uint(7), created.Number)
	require.Equal(t, "", created.Tutor.ResponseText)
	require.Equal(t, models.SentinelNotRequested, created.Coordination.ResponseText)
	require.Equal(t, models.SentinelNotRequested, created.Management.ResponseText)
	require.Equal(t, string(models.IncidentStatusOpen), created.Status)
	require.Equal(t, []string{"tutor"}, created.PendingTiers)
	require.Equal(t, uint(3), created.RoomID)

	answered, err := svc.RecordResponse(ctx, 7, dto.IncidentResponseRequest{Tier: "tutor", Text: "Spoke with student"})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusClosed), answered.Status)
	require.Equal(t, "Spoke with student", answered.Tutor.ResponseText)
	require.NotNil(t, answered.Tutor.RespondedAt)

	var stored models.Incident
	require.NoError(t, db.First(&stored, "number = ?", 7).Error)
	require.Equal(t, models.IncidentStatusClosed, stored.Status)
}

func TestIncidentServiceNoTiersRequestedClosesImmediately(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})

	created, err := svc.Create(context.Background(), newIncident(43, false, false, false))
	require.NoError(t, err)
	require.Equal(t, uint(1), created.Number)
	require.Equal(t, string(models.IncidentStatusClosed), created.Status)
	require.Empty(t, created.PendingTiers)
	require.Nil(t, created.TutorID)
}

func TestIncidentServiceClosesOnlyWhenEveryRequestedTierAnswers(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, true))
	require.NoError(t, err)

	resp, err := svc.RecordResponse(ctx, created.Number, dto.IncidentResponseRequest{Tier: "management", Text: "Parents called"})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusOpen), resp.Status)
	require.Equal(t, []string{"tutor"}, resp.PendingTiers)

	resp, err = svc.RecordResponse(ctx, created.Number, dto.IncidentResponseRequest{Tier: "TUTOR", Text: "  Follow-up meeting  "})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusClosed), resp.Status)
	require.Equal(t, "Follow-up meeting", resp.Tutor.ResponseText)

	resp, err = svc.RecordResponse(ctx, created.Number, dto.IncidentResponseRequest{Tier: "coordination", Text: "Noted"})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusClosed), resp.Status)
}

func TestIncidentServiceCreateValidation(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	_, err := svc.Create(ctx, dto.IncidentCreateRequest{Description: "<p></p>"})
	require.ErrorIs(t, err, ErrValidation)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	require.ElementsMatch(t, []string{"description", "category", "student_id"}, svcErr.Fields)

	req := newIncident(42, true, false, false)
	req.Category = "gossip"
	_, err = svc.Create(ctx, req)
	require.ErrorIs(t, err, ErrValidation)
	require.True(t, errors.As(err, &svcErr))
	require.Equal(t, []string{"category"}, svcErr.Fields)

	_, err = svc.Create(ctx, newIncident(999, true, false, false))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIncidentServiceSanitizesDescription(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})

	req := newIncident(42, false, true, false)
	req.Description = `<script>alert(1)</script><b>Pushed</b> a classmate`
	created, err := svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "Pushed a classmate", created.Description)
}

func TestIncidentServiceKeepsPunctuationUnescaped(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	req := newIncident(42, true, false, false)
	req.Description = "Tom & Jerry's fight, score 5 > 3"
	req.TeacherAction = `<i>Talked to "Ana" & mum</i>`
	created, err := svc.Create(ctx, req)
	require.NoError(t, err)
	require.Equal(t, "Tom & Jerry's fight, score 5 > 3", created.Description)
	require.Equal(t, `Talked to "Ana" & mum`, created.TeacherAction)

	answered, err := svc.RecordResponse(ctx, created.Number, dto.IncidentResponseRequest{Tier: "tutor", Text: `Talked to "Ana" & mum`})
	require.NoError(t, err)
	require.Equal(t, `Talked to "Ana" & mum`, answered.Tutor.ResponseText)

	var stored models.Incident
	require.NoError(t, db.First(&stored, "number = ?", created.Number).Error)
	require.Equal(t, "Tom & Jerry's fight, score 5 > 3", stored.Description)
	require.Equal(t, `Talked to "Ana" & mum`, stored.Tutor.ResponseText)
}

func TestIncidentServiceUpdateEscalatesClosedIncident(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	closed, err := svc.RecordResponse(ctx, created.Number, dto.IncidentResponseRequest{Tier: "tutor", Text: "Spoke with student"})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusClosed), closed.Status)

	escalate := true
	updated, err := svc.Update(ctx, created.Number, dto.IncidentUpdateRequest{
		Escalation: &dto.IncidentEscalationUpdate{Management: &escalate},
	})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusOpen), updated.Status)
	require.Equal(t, []string{"management"}, updated.PendingTiers)
	require.True(t, updated.Management.Requested)
	require.Empty(t, updated.Management.ResponseText)
	require.Equal(t, "Spoke with student", updated.Tutor.ResponseText)

	var stored models.Incident
	require.NoError(t, db.First(&stored, "number = ?", created.Number).Error)
	require.Equal(t, models.IncidentStatusOpen, stored.Status)
	require.True(t, stored.Management.Requested)

	withdraw := false
	updated, err = svc.Update(ctx, created.Number, dto.IncidentUpdateRequest{
		Escalation: &dto.IncidentEscalationUpdate{Management: &withdraw},
	})
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusClosed), updated.Status)
	require.Equal(t, models.SentinelNotRequested, updated.Management.ResponseText)
}

func TestIncidentServiceUpdateDetails(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)

	description := "  <b>Left</b> the room & did not return  "
	category := "attendance"
	updated, err := svc.Update(ctx, created.Number, dto.IncidentUpdateRequest{Description: &description, Category: &category})
	require.NoError(t, err)
	require.Equal(t, "Left the room & did not return", updated.Description)
	require.Equal(t, string(models.IncidentCategoryAttendance), updated.Category)
	require.Equal(t, string(models.IncidentStatusOpen), updated.Status)

	updates := countUpdates(t, db)
	same, err := svc.Update(ctx, created.Number, dto.IncidentUpdateRequest{Category: &category})
	require.NoError(t, err)
	require.Equal(t, updated.Description, same.Description)
	require.Zero(t, updates(), "an edit that changes nothing must not write")
}

func TestIncidentServiceUpdateValidation(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)

	blank := "<p> </p>"
	unknown := "gossip"
	_, err = svc.Update(ctx, created.Number, dto.IncidentUpdateRequest{Description: &blank, Category: &unknown})
	require.ErrorIs(t, err, ErrValidation)

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	require.ElementsMatch(t, []string{"description", "category"}, svcErr.Fields)

	_, err = svc.Update(ctx, 999, dto.IncidentUpdateRequest{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestIncidentServiceFreezesTutorAtCreation(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	require.NotNil(t, created.TutorID)
	require.Equal(t, uint(11), *created.TutorID)

	require.NoError(t, db.Model(&models.Student{}).Where("id = ?", 42).Update("tutor_id", 12).Error)

	fetched, err := svc.Get(ctx, created.Number)
	require.NoError(t, err)
	require.Equal(t, uint(11), *fetched.TutorID)
}

func TestIncidentServiceRecordResponseValidation(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)

	cases := []struct {
		name string
		req  dto.IncidentResponseRequest
		kind error
	}{
		{name: "unknown tier", req: dto.IncidentResponseRequest{Tier: "principal", Text: "ok"}, kind: ErrValidation},
		{name: "empty text", req: dto.IncidentResponseRequest{Tier: "tutor", Text: "   "}, kind: ErrValidation},
		{name: "markup only", req: dto.IncidentResponseRequest{Tier: "tutor", Text: "<br>"}, kind: ErrValidation},
		{name: "sentinel text", req: dto.IncidentResponseRequest{Tier: "tutor", Text: "NOT REQUESTED"}, kind: ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RecordResponse(ctx, created.Number, tc.req)
			require.ErrorIs(t, err, tc.kind)
		})
	}

	_, err = svc.RecordResponse(ctx, 404, dto.IncidentResponseRequest{Tier: "tutor", Text: "ok"})
	require.ErrorIs(t, err, ErrNotFound)

	fetched, err := svc.Get(ctx, created.Number)
	require.NoError(t, err)
	require.Equal(t, string(models.IncidentStatusOpen), fetched.Status)
}

func TestIncidentServiceListCorrectsDriftOnce(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	first, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	second, err := svc.Create(ctx, newIncident(43, false, true, false))
	require.NoError(t, err)
	_, err = svc.RecordResponse(ctx, first.Number, dto.IncidentResponseRequest{Tier: "tutor", Text: "Handled"})
	require.NoError(t, err)

	// Simulate lost status writes in both directions.
	require.NoError(t, db.Model(&models.Incident{}).Where("number = ?", first.Number).Update("status", models.IncidentStatusOpen).Error)
	require.NoError(t, db.Model(&models.Incident{}).Where("number = ?", second.Number).
		Updates(map[string]interface{}{"status": models.IncidentStatusClosed, "coordination_response_text": models.SentinelNotRequested}).Error)

	updates := countUpdates(t, db)

	closed, err := svc.List(ctx, dto.IncidentListQuery{Status: "closed"})
	require.NoError(t, err)
	require.Len(t, closed, 1)
	require.Equal(t, first.Number, closed[0].Number)
	require.Equal(t, 2, updates())

	var stored models.Incident
	require.NoError(t, db.First(&stored, "number = ?", second.Number).Error)
	require.Equal(t, models.IncidentStatusOpen, stored.Status)

	all, err := svc.List(ctx, dto.IncidentListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, 2, updates(), "a second listing must not write")

	byName, err := svc.List(ctx, dto.IncidentListQuery{StudentName: "pedro", Status: "OPEN"})
	require.NoError(t, err)
	require.Len(t, byName, 1)
	require.Equal(t, second.Number, byName[0].Number)

	_, err = svc.List(ctx, dto.IncidentListQuery{Status: "pending"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestIncidentServicePrint(t *testing.T) {
	renderer := &renderStub{}
	db, svc := setupIncidentService(t, renderer)
	ctx := context.Background()

	first, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	second, err := svc.Create(ctx, newIncident(43, false, false, false))
	require.NoError(t, err)

	_, err = svc.Print(ctx, dto.IncidentPrintRequest{})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Print(ctx, dto.IncidentPrintRequest{Numbers: []uint{500, 501}})
	require.ErrorIs(t, err, ErrNotFound)
	require.Empty(t, renderer.docs)

	printed, err := svc.Print(ctx, dto.IncidentPrintRequest{Numbers: []uint{second.Number, first.Number, 999}})
	require.NoError(t, err)
	require.Len(t, printed.Documents, 2)
	require.Equal(t, first.Number, printed.Documents[0].Number)
	require.Equal(t, "Ana Souza", printed.Documents[0].StudentName)
	require.Equal(t, "7A", printed.Documents[0].RoomName)
	require.Equal(t, "Carla Tutor", printed.Documents[0].TutorName)
	require.Equal(t, "Prof. Lima", printed.Documents[0].TeacherName)
	require.Len(t, printed.Documents[0].Tiers, 3)
	require.Len(t, renderer.docs, 1)

	var stored []models.Incident
	require.NoError(t, db.Order("number ASC").Find(&stored).Error)
	for _, incident := range stored {
		require.True(t, incident.Printed)
		require.NotNil(t, incident.PrintedAt)
	}
}

func TestIncidentServicePrintRenderFailureLeavesUnprinted(t *testing.T) {
	renderer := &renderStub{err: errors.New("no responders")}
	_, svc := setupIncidentService(t, renderer)
	ctx := context.Background()

	created, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)

	_, err = svc.Print(ctx, dto.IncidentPrintRequest{Numbers: []uint{created.Number}})
	require.ErrorIs(t, err, ErrRenderer)

	fetched, err := svc.Get(ctx, created.Number)
	require.NoError(t, err)
	require.False(t, fetched.Printed)
}

func TestIncidentServiceConcurrentCreateUsesDistinctNumbers(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer client.Close()

	db := setupServiceDB(t)
	seedDirectory(t, db)
	svc := NewIncidentService(
		repository.NewIncidentRepository(db),
		repository.NewDirectoryRepository(db),
		repository.NewRedisSequence(client, "test"),
		&renderStub{},
		testValidator(),
		zerolog.Nop(),
	)

	const callers = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers = make(map[uint]struct{}, callers)
		errs    []error
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := svc.Create(context.Background(), newIncident(42, true, false, false))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			numbers[created.Number] = struct{}{}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	require.Len(t, numbers, callers)
}

func TestIncidentServiceCategories(t *testing.T) {
	_, svc := setupIncidentService(t, &renderStub{})

	categories := svc.Categories()
	require.Len(t, categories, 5)
	require.Equal(t, "BEHAVIOR", categories[0].Code)

	categories[0].Label = "changed"
	require.Equal(t, "Behavior", svc.Categories()[0].Label)
}

func TestIncidentServiceNeverReusesDeletedNumber(t *testing.T) {
	db, svc := setupIncidentService(t, &renderStub{})
	ctx := context.Background()

	first, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	second, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Incident{}, "number = ?", second.Number).Error)

	third, err := svc.Create(ctx, newIncident(42, true, false, false))
	require.NoError(t, err)
	require.Greater(t, third.Number, second.Number)
	require.Greater(t, second.Number, first.Number)
}
