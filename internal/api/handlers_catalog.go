package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/caredesk/clinic-booking/internal/catalog"
)

type catalogHandlers struct {
	svc *catalog.Service
}

// listParamsFrom reads ?page=&limit=&search=&active= into catalog paging.
func listParamsFrom(r *http.Request) catalog.ListParams {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return catalog.ListParams{
		Page:       page,
		Limit:      limit,
		Search:     q.Get("search"),
		ActiveOnly: q.Get("active") == "true",
	}
}

func pathID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

func (h *catalogHandlers) listHospitals(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListHospitals(r.Context(), listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *catalogHandlers) getHospital(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	hospital, err := h.svc.GetHospital(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hospital)
}

func (h *catalogHandlers) createHospital(w http.ResponseWriter, r *http.Request) {
	var in catalog.Hospital
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	hospital, err := h.svc.CreateHospital(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, hospital)
}

func (h *catalogHandlers) updateHospital(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	var in catalog.Hospital
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	in.ID = id
	hospital, err := h.svc.UpdateHospital(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hospital)
}

func (h *catalogHandlers) deleteHospital(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	if err := h.svc.DeleteHospital(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *catalogHandlers) listBranches(w http.ResponseWriter, r *http.Request) {
	hospitalID, err := uuid.Parse(r.URL.Query().Get("hospitalId"))
	if err != nil {
		writeBadRequest(w, "hospitalId must be a valid UUID")
		return
	}
	page, err := h.svc.ListBranches(r.Context(), hospitalID, listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *catalogHandlers) createBranch(w http.ResponseWriter, r *http.Request) {
	var in catalog.Branch
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	branch, err := h.svc.CreateBranch(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, branch)
}

func (h *catalogHandlers) updateBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	var in catalog.Branch
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	in.ID = id
	branch, err := h.svc.UpdateBranch(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, branch)
}

func (h *catalogHandlers) deleteBranch(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	if err := h.svc.DeleteBranch(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *catalogHandlers) listSpecialties(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListSpecialties(r.Context(), listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *catalogHandlers) createSpecialty(w http.ResponseWriter, r *http.Request) {
	var in catalog.Specialty
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	specialty, err := h.svc.CreateSpecialty(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, specialty)
}

func (h *catalogHandlers) updateSpecialty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	var in catalog.Specialty
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	in.ID = id
	specialty, err := h.svc.UpdateSpecialty(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, specialty)
}

func (h *catalogHandlers) deleteSpecialty(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	if err := h.svc.DeleteSpecialty(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *catalogHandlers) listServices(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListServices(r.Context(), listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *catalogHandlers) getService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	service, err := h.svc.GetService(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service)
}

func (h *catalogHandlers) createService(w http.ResponseWriter, r *http.Request) {
	var in catalog.CareService
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	service, err := h.svc.CreateService(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, service)
}

func (h *catalogHandlers) updateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	var in catalog.CareService
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	in.ID = id
	service, err := h.svc.UpdateService(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, service)
}

func (h *catalogHandlers) deleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	if err := h.svc.DeleteService(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *catalogHandlers) listDoctors(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.ListDoctors(r.Context(), listParamsFrom(r))
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *catalogHandlers) getDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	doctor, err := h.svc.GetDoctor(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

// getDoctorProfile serves /doctors/profile for a logged-in doctor.
func (h *catalogHandlers) getDoctorProfile(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFrom(r.Context())
	doctor, err := h.svc.GetDoctorProfile(r.Context(), sess.UserID)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

func (h *catalogHandlers) createDoctor(w http.ResponseWriter, r *http.Request) {
	var in catalog.Doctor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	doctor, err := h.svc.CreateDoctor(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doctor)
}

func (h *catalogHandlers) updateDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	var in catalog.Doctor
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeBadRequest(w, "could not parse JSON")
		return
	}
	in.ID = id
	doctor, err := h.svc.UpdateDoctor(r.Context(), in)
	if err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doctor)
}

func (h *catalogHandlers) deleteDoctor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeBadRequest(w, "id must be a valid UUID")
		return
	}
	if err := h.svc.DeleteDoctor(r.Context(), id); err != nil {
		respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
