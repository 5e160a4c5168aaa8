package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-booking/internal/appointment"
	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/catalog"
	"github.com/caredesk/clinic-booking/internal/metrics"
)

type appointmentHandlers struct {
	svc     *appointment.Service
	catalog *catalog.Service
	metrics *metrics.Metrics
}

// recordConflict feeds the booking conflict counter; non-conflict errors are
// left to the HTTP metrics middleware.
func (h *appointmentHandlers) recordConflict(err error) {
	if reason, ok := conflictReason(err); ok {
		h.metrics.BookingConflict(reason)
	}
}

func (h *appointmentHandlers) book(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	var req struct {
		SlotID    string `json:"slotId"`
		ServiceID string `json:"serviceId"`
		Symptoms  string `json:"symptoms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		writeBadRequest(w, "slotId must be a valid UUID")
		return
	}
	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		writeBadRequest(w, "serviceId must be a valid UUID")
		return
	}

	appt, err := h.svc.Book(r.Context(), appointment.BookRequest{
		PatientID: sess.UserID,
		ServiceID: serviceID,
		SlotID:    slotID,
		Symptoms:  req.Symptoms,
	})
	if err != nil {
		h.recordConflict(err)
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, appt)
}

// list scopes results by role: patients see their own appointments, doctors
// the ones on their calendar, admins whatever the query asks for.
func (h *appointmentHandlers) list(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	f := appointment.Filter{
		Status: appointment.Status(q.Get("status")),
		Limit:  limit,
		Offset: offset,
	}

	switch sess.Role {
	case auth.RolePatient:
		f.PatientID = sess.UserID
	case auth.RoleDoctor:
		doctor, err := h.catalog.GetDoctorProfile(r.Context(), sess.UserID)
		if err != nil {
			respondError(w, err)
			return
		}
		f.DoctorID = doctor.ID
	case auth.RoleAdmin:
		if v := q.Get("patientId"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeBadRequest(w, "patientId must be a valid UUID")
				return
			}
			f.PatientID = id
		}
		if v := q.Get("doctorId"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeBadRequest(w, "doctorId must be a valid UUID")
				return
			}
			f.DoctorID = id
		}
		if v := q.Get("slotId"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeBadRequest(w, "slotId must be a valid UUID")
				return
			}
			f.SlotID = id
		}
	}

	appts, err := h.svc.List(r.Context(), f)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appts)
}

func (h *appointmentHandlers) get(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	if !h.canSee(r, sess, &detail.Appointment) {
		respondError(w, appointment.ErrNotAppointmentOwner)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *appointmentHandlers) canSee(r *http.Request, sess auth.Session, appt *appointment.Appointment) bool {
	switch sess.Role {
	case auth.RoleAdmin:
		return true
	case auth.RolePatient:
		return appt.PatientID == sess.UserID
	case auth.RoleDoctor:
		doctor, err := h.catalog.GetDoctorProfile(r.Context(), sess.UserID)
		return err == nil && doctor.ID == appt.DoctorID
	}
	return false
}

func (h *appointmentHandlers) confirm(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	if sess.Role == auth.RolePatient {
		existing, err := h.svc.Get(r.Context(), id)
		if err != nil {
			respondError(w, err)
			return
		}
		if existing.PatientID != sess.UserID {
			respondError(w, appointment.ErrNotAppointmentOwner)
			return
		}
	}

	appt, err := h.svc.Confirm(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *appointmentHandlers) complete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	sess, _ := SessionFrom(r.Context())
	doctor, err := h.catalog.GetDoctorProfile(r.Context(), sess.UserID)
	if err != nil {
		respondError(w, err)
		return
	}

	appt, err := h.svc.Complete(r.Context(), id, doctor.ID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *appointmentHandlers) cancel(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}

	appt, err := h.svc.Cancel(r.Context(), id, sess.UserID, req.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (h *appointmentHandlers) reschedule(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	var req struct {
		NewSlotID string `json:"newSlotId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	newSlotID, err := uuid.Parse(req.NewSlotID)
	if err != nil {
		writeBadRequest(w, "newSlotId must be a valid UUID")
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), id, sess.UserID, newSlotID)
	if err != nil {
		h.recordConflict(err)
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}
