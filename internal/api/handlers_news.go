package api

import (
	"encoding/json"
	"net/http"

	"github.com/caredesk/clinic-booking/internal/news"
)

type newsHandlers struct {
	svc *news.Service
}

func (h *newsHandlers) listPublic(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), false, listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *newsHandlers) getPublic(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	article, err := h.svc.Get(r.Context(), id, false)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (h *newsHandlers) listAdmin(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), true, listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *newsHandlers) create(w http.ResponseWriter, r *http.Request) {
	var in news.Article
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	article, err := h.svc.Create(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, article)
}

func (h *newsHandlers) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	var in news.Article
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	in.ID = id
	article, err := h.svc.Update(r.Context(), &in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (h *newsHandlers) delete(w http.ResponseWriter, r *http.Request) {
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
