package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/camden-git/mediaidentity/media"
	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/services"
)

// APIErrorDetail represents a single error in the standardized error response.
type APIErrorDetail struct {
	Code   string `json:"code"`
	Status string `json:"status"`
	Detail string `json:"detail"`
}

// APIErrorResponse represents the standardized error response body.
type APIErrorResponse struct {
	Errors []APIErrorDetail `json:"errors"`
}

// WriteAPIError writes a standardized error response with the given HTTP status, code, and detail.
func WriteAPIError(w http.ResponseWriter, httpStatus int, code string, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	resp := APIErrorResponse{
		Errors: []APIErrorDetail{
			{
				Code:   code,
				Status: strconv.Itoa(httpStatus),
				Detail: detail,
			},
		},
	}

	_ = json.NewEncoder(w).Encode(resp)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Printf("Error encoding JSON response: %v", err)
		}
	}
}

// serviceErrors maps caller-addressable errors to responses.
var serviceErrors = []struct {
	err    error
	status int
	code   string
}{
	{services.ErrPhotoNotFound, http.StatusNotFound, "photo_not_found"},
	{services.ErrPersonNotFound, http.StatusNotFound, "person_not_found"},
	{services.ErrInvalidFaceIndex, http.StatusBadRequest, "invalid_face_index"},
	{services.ErrDuplicatePersonName, http.StatusConflict, "duplicate_person_name"},
	{services.ErrInvalidPersonName, http.StatusBadRequest, "invalid_person_name"},
	{services.ErrInvalidConfidence, http.StatusBadRequest, "invalid_confidence"},
	{models.ErrInvalidDescriptor, http.StatusBadRequest, "invalid_descriptor"},
	{media.ErrUnsupportedUpload, http.StatusUnsupportedMediaType, "unsupported_file_type"},
}

// writeServiceError translates a service error, logging anything that is
// not the caller's fault.
func writeServiceError(w http.ResponseWriter, action string, err error) {
	for _, se := range serviceErrors {
		if errors.Is(err, se.err) {
			WriteAPIError(w, se.status, se.code, err.Error())
			return
		}
	}
	log.Printf("Error %s: %v", action, err)
	WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Failed "+action)
}
