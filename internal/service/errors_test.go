package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"StudentID":  "student_id",
		"LessonSlot": "lesson_slot",
		"Entries[3]": "entries[3]",
		"Date":       "date",
		"HTTPStatus": "http_status",
	}
	for in, want := range cases {
		require.Equal(t, want, snakeCase(in), in)
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("wrapped: %w", storageFailed("incident.create", cause))

	require.ErrorIs(t, err, ErrStorage)
	require.ErrorIs(t, err, cause)
	require.NotErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "incident.create")

	var svcErr *Error
	require.True(t, errors.As(err, &svcErr))
	require.Equal(t, "storage failure", svcErr.Describe())

	invalid := validationFailed("attendance.mark_bulk", "date", "entries[0].mark")
	require.Equal(t, "validation failed: date, entries[0].mark", invalid.Describe())
}
