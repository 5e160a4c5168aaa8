package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/caredesk/clinic-booking/internal/appointment"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

func TestConflictReason(t *testing.T) {
	cases := []struct {
		err    error
		reason string
		ok     bool
	}{
		{appointment.ErrSlotBeingBooked, "slot_being_booked", true},
		{redisclient.ErrLockNotAcquired, "slot_being_booked", true},
		{fmt.Errorf("booking: %w", redisclient.ErrLockNotAcquired), "slot_being_booked", true},
		{appointment.ErrSlotConflict, "slot_conflict", true},
		{schedule.ErrSlotFull, "slot_conflict", true},
		{appointment.ErrAppointmentNotFound, "", false},
		{errors.New("boom"), "", false},
	}

	for _, tc := range cases {
		reason, ok := conflictReason(tc.err)
		assert.Equal(t, tc.ok, ok, "for %v", tc.err)
		assert.Equal(t, tc.reason, reason, "for %v", tc.err)
	}
}

func TestRespondError_ConflictEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	respondError(rec, appointment.ErrSlotConflict)

	require.Equal(t, http.StatusConflict, rec.Code)

	var env Envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	assert.False(t, env.Success)
	assert.Equal(t, "slot_conflict", env.ErrorType)
	assert.NotEmpty(t, env.Message)
}
