package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/services"
)

type PersonHandler struct {
	People *services.PeopleService
}

// ListPeople supports ?search=, ?sort_by=name|photo_count|created_at and
// ?sort_order=asc|desc.
func (ph *PersonHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := services.ListOptions{
		Search:     strings.TrimSpace(q.Get("search")),
		SortBy:     q.Get("sort_by"),
		Descending: strings.EqualFold(q.Get("sort_order"), "desc"),
	}
	switch opts.SortBy {
	case "", services.SortByName, services.SortByPhotoCount, services.SortByCreated:
	default:
		WriteAPIError(w, http.StatusBadRequest, "invalid_sort", "sort_by must be one of name, photo_count, created_at")
		return
	}

	people, err := ph.People.ListPeople(r.Context(), opts)
	if err != nil {
		writeServiceError(w, "listing people", err)
		return
	}
	if people == nil {
		people = []models.Person{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"people": people, "total": len(people)})
}

type createPersonRequest struct {
	Name       string    `json:"name" validate:"required"`
	Notes      *string   `json:"notes"`
	Descriptor []float64 `json:"descriptor" validate:"omitempty,len=128"`
}

func (ph *PersonHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	var req createPersonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	person, err := ph.People.CreatePerson(r.Context(), req.Name, req.Notes, req.Descriptor)
	if err != nil {
		writeServiceError(w, "creating person", err)
		return
	}
	writeJSON(w, http.StatusCreated, person)
}

func (ph *PersonHandler) GetPerson(w http.ResponseWriter, r *http.Request) {
	person, err := ph.People.GetPerson(r.Context(), chi.URLParam(r, "person_id"))
	if err != nil {
		writeServiceError(w, "retrieving person", err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

type updatePersonRequest struct {
	Name  *string `json:"name"`
	Notes *string `json:"notes"`
}

// UpdatePerson changes only the fields present in the body.
func (ph *PersonHandler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	var req updatePersonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Name == nil && req.Notes == nil {
		WriteAPIError(w, http.StatusBadRequest, "empty_update", "Nothing to update")
		return
	}
	person, err := ph.People.UpdatePerson(r.Context(), chi.URLParam(r, "person_id"), req.Name, req.Notes)
	if err != nil {
		writeServiceError(w, "updating person", err)
		return
	}
	writeJSON(w, http.StatusOK, person)
}

func (ph *PersonHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	if err := ph.People.DeletePerson(r.Context(), chi.URLParam(r, "person_id")); err != nil {
		writeServiceError(w, "deleting person", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PersonPhotos pages through the photos a person appears in, newest
// capture first.
func (ph *PersonHandler) PersonPhotos(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	person, photos, total, err := ph.People.PersonPhotos(r.Context(), chi.URLParam(r, "person_id"), offset, limit)
	if err != nil {
		writeServiceError(w, "listing person photos", err)
		return
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"person":     person,
		"photos":     photos,
		"pagination": newPagination(page, limit, total),
	})
}
