package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-booking/internal/catalog"
	"github.com/caredesk/clinic-booking/internal/schedule"
)

type scheduleHandlers struct {
	svc     *schedule.Service
	catalog *catalog.Service
}

// ownDoctorID resolves the logged-in doctor's catalog record.
func (h *scheduleHandlers) ownDoctorID(r *http.Request) (uuid.UUID, error) {
	sess, _ := SessionFrom(r.Context())
	doctor, err := h.catalog.GetDoctorProfile(r.Context(), sess.UserID)
	if err != nil {
		return uuid.Nil, err
	}
	return doctor.ID, nil
}

// getDoctorSchedule serves the booking UI: one day when ?date= is given,
// otherwise the ?from=&to= range.
func (h *scheduleHandlers) getDoctorSchedule(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	doctorID, err := uuid.Parse(q.Get("doctorId"))
	if err != nil {
		writeBadRequest(w, "doctorId must be a valid UUID")
		return
	}

	if date := q.Get("date"); date != "" {
		sched, err := h.svc.GetDoctorDay(r.Context(), doctorID, date)
		if err != nil {
			respondError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sched)
		return
	}

	scheds, err := h.svc.ListDoctorRange(r.Context(), doctorID, q.Get("from"), q.Get("to"))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scheds)
}

func (h *scheduleHandlers) createSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, err := h.ownDoctorID(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req struct {
		HospitalID string              `json:"hospitalId"`
		Date       string              `json:"date"`
		Slots      []schedule.TimeSlot `json:"slots"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	hospitalID, err := uuid.Parse(req.HospitalID)
	if err != nil {
		writeBadRequest(w, "hospitalId must be a valid UUID")
		return
	}

	sched, err := h.svc.CreateSchedule(r.Context(), doctorID, hospitalID, req.Date, req.Slots)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sched)
}

func (h *scheduleHandlers) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	doctorID, err := h.ownDoctorID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	if err := h.svc.DeleteSchedule(r.Context(), doctorID, id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *scheduleHandlers) addSlot(w http.ResponseWriter, r *http.Request) {
	doctorID, err := h.ownDoctorID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	scheduleID, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	var slot schedule.TimeSlot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}

	created, err := h.svc.AddSlot(r.Context(), doctorID, scheduleID, slot)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *scheduleHandlers) updateSlot(w http.ResponseWriter, r *http.Request) {
	doctorID, err := h.ownDoctorID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	slotID, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	var slot schedule.TimeSlot
	if err := json.NewDecoder(r.Body).Decode(&slot); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	slot.ID = slotID

	updated, err := h.svc.UpdateSlot(r.Context(), doctorID, slot)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *scheduleHandlers) deleteSlot(w http.ResponseWriter, r *http.Request) {
	doctorID, err := h.ownDoctorID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	slotID, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	if err := h.svc.DeleteSlot(r.Context(), doctorID, slotID); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
