package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/caredesk/clinic-booking/internal/auth"
	"github.com/caredesk/clinic-booking/internal/review"
)

type reviewHandlers struct {
	svc *review.Service
}

func (h *reviewHandlers) create(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())

	var req struct {
		Target   string `json:"target"`
		TargetID string `json:"targetId"`
		Rating   int    `json:"rating"`
		Comment  string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	targetID, err := uuid.Parse(req.TargetID)
	if err != nil {
		writeBadRequest(w, "targetId must be a valid UUID")
		return
	}

	rv, err := h.svc.Create(r.Context(), review.CreateInput{
		Target:    review.TargetKind(req.Target),
		TargetID:  targetID,
		PatientID: sess.UserID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *reviewHandlers) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	targetID, err := uuid.Parse(q.Get("targetId"))
	if err != nil {
		writeBadRequest(w, "targetId must be a valid UUID")
		return
	}

	page, err := h.svc.ListByTarget(r.Context(), review.TargetKind(q.Get("target")), targetID, listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *reviewHandlers) reply(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}

	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}

	rp, err := h.svc.Reply(r.Context(), id, sess.UserID, sess.Role == auth.RoleAdmin, req.Body)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rp)
}

func (h *reviewHandlers) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
