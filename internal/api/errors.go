package api

import (
	"errors"
	"net/http"

	"github.com/caredesk/clinic-booking/internal/appointment"
	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/catalog"
	"github.com/caredesk/clinic-booking/internal/news"
	redisclient "github.com/caredesk/clinic-booking/internal/redis"
	"github.com/caredesk/clinic-booking/internal/review"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

// conflictReason classifies the booking-contention errors the client retries
// or re-picks on; the label doubles as the envelope's error_type flag and the
// conflict counter's reason.
func conflictReason(err error) (string, bool) {
	switch {
	case errors.Is(err, appointment.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		return "slot_being_booked", true
	case errors.Is(err, appointment.ErrSlotConflict),
		errors.Is(err, schedule.ErrSlotFull):
		return "slot_conflict", true
	}
	return "", false
}

// respondError maps domain sentinel errors onto HTTP statuses and the
// envelope's error_type flag. Anything unmapped is a 500 with a generic
// message so internals never leak to clients.
func respondError(w http.ResponseWriter, err error) {
	if reason, ok := conflictReason(err); ok {
		msg := "slot is currently being booked, please retry shortly"
		if reason == "slot_conflict" {
			msg = "slot has no remaining capacity, please pick another"
		}
		writeError(w, http.StatusConflict, reason, msg)
		return
	}

	switch {
	// not found
	case errors.Is(err, appointment.ErrAppointmentNotFound),
		errors.Is(err, schedule.ErrScheduleNotFound),
		errors.Is(err, schedule.ErrSlotNotFound),
		errors.Is(err, catalog.ErrHospitalNotFound),
		errors.Is(err, catalog.ErrBranchNotFound),
		errors.Is(err, catalog.ErrSpecialtyNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, catalog.ErrDoctorNotFound),
		errors.Is(err, review.ErrReviewNotFound),
		errors.Is(err, news.ErrArticleNotFound),
		errors.Is(err, auth.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "", err.Error())

	// validation
	case errors.Is(err, schedule.ErrInvalidDate),
		errors.Is(err, schedule.ErrInvalidSlot),
		errors.Is(err, schedule.ErrOverlappingSlot),
		errors.Is(err, catalog.ErrMissingRequiredField),
		errors.Is(err, review.ErrInvalidRating),
		errors.Is(err, review.ErrInvalidTarget),
		errors.Is(err, review.ErrEmptyBody),
		errors.Is(err, news.ErrMissingTitle),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "", err.Error())

	// auth
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrOTPMismatch),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "", err.Error())

	// ownership / role
	case errors.Is(err, appointment.ErrNotAppointmentOwner),
		errors.Is(err, appointment.ErrNotAppointmentDoctor),
		errors.Is(err, schedule.ErrNotScheduleOwner),
		errors.Is(err, review.ErrNotEligible),
		errors.Is(err, review.ErrNotReplyAllowed):
		writeError(w, http.StatusForbidden, "", err.Error())

	// remaining business-state conflicts
	case errors.Is(err, appointment.ErrSlotInPast),
		errors.Is(err, appointment.ErrRescheduleLimit),
		errors.Is(err, appointment.ErrRescheduleLeadTime),
		errors.Is(err, appointment.ErrAppointmentExpiredState),
		errors.Is(err, appointment.ErrInvalidStatusTransition),
		errors.Is(err, schedule.ErrScheduleExists),
		errors.Is(err, schedule.ErrSlotHasBookings),
		errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "", err.Error())

	default:
		writeError(w, http.StatusInternalServerError, "", "something went wrong")
	}
}
