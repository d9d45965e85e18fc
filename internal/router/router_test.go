package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-records-api/internal/config"
	"github.com/noah-isme/school-records-api/internal/dto"
	"github.com/noah-isme/school-records-api/internal/handler"
	"github.com/noah-isme/school-records-api/internal/router"
)

type countingAttendance struct {
	calls int
}

func (s *countingAttendance) MarkBulk(context.Context, dto.AttendanceRollCallRequest) (dto.AttendanceRollCallResponse, error) {
	s.calls++
	return dto.AttendanceRollCallResponse{}, nil
}

func (s *countingAttendance) RecordLateArrival(context.Context, dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error) {
	return dto.AttendanceDayResponse{}, nil
}

func (s *countingAttendance) RecordEarlyDeparture(context.Context, dto.AttendanceEventRequest) (dto.AttendanceDayResponse, error) {
	return dto.AttendanceDayResponse{}, nil
}

func (s *countingAttendance) GetDay(context.Context, uint, string) (dto.AttendanceDayResponse, error) {
	return dto.AttendanceDayResponse{}, nil
}

func (s *countingAttendance) RollCallStatus(context.Context, dto.AttendanceRollCallQuery) (dto.AttendanceRollCallStatusResponse, error) {
	return dto.AttendanceRollCallStatusResponse{}, nil
}

func (s *countingAttendance) MonthlyReport(context.Context, dto.AttendanceReportQuery) (dto.AttendanceReportResponse, error) {
	return dto.AttendanceReportResponse{}, nil
}

func TestRegisterExposesHealthAndMetrics(t *testing.T) {
	app := fiber.New()
	router.Register(app, config.Config{AppName: "School Records API"}, router.Dependencies{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "School Records API", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterLimitsRollCall(t *testing.T) {
	svc := &countingAttendance{}
	app := fiber.New()
	router.Register(app, config.Config{RollCallRateLimit: 1}, router.Dependencies{
		AttendanceHandler: handler.NewAttendanceHandler(svc, zerolog.Nop()),
	})

	post := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/roll-call", strings.NewReader(`{"room_id":3,"date":"2024-03-01"}`))
		req.Header.Set("Content-Type", "application/json")
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	require.Equal(t, fiber.StatusCreated, post())
	require.Equal(t, fiber.StatusTooManyRequests, post())
	require.Equal(t, 1, svc.calls)
}
