package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/services"
)

type FaceHandler struct {
	Assignments      *services.AssignmentService
	Recognition      *services.RecognitionService
	DefaultMin       services.Confidence
	MaxBatchSize     int
	AutoProcessLimit int
}

type assignFaceRequest struct {
	PhotoID   string `json:"photo_id" validate:"required"`
	FaceIndex *int   `json:"face_index" validate:"required,gte=0"`
	PersonID  string `json:"person_id" validate:"required"`
}

// AssignFace links a face to a person.
func (fh *FaceHandler) AssignFace(w http.ResponseWriter, r *http.Request) {
	var req assignFaceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	photo, person, err := fh.Assignments.ApplyAssignment(r.Context(), req.PhotoID, *req.FaceIndex, req.PersonID)
	if err != nil {
		writeServiceError(w, "assigning face", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Face assigned successfully",
		"photo":   map[string]interface{}{"id": photo.ID, "faces": photo.Faces},
		"person":  person,
	})
}

type unassignFaceRequest struct {
	PhotoID   string `json:"photo_id" validate:"required"`
	FaceIndex *int   `json:"face_index" validate:"required,gte=0"`
}

// UnassignFace clears the person of a face.
func (fh *FaceHandler) UnassignFace(w http.ResponseWriter, r *http.Request) {
	var req unassignFaceRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	photo, err := fh.Assignments.Unassign(r.Context(), req.PhotoID, *req.FaceIndex)
	if err != nil {
		writeServiceError(w, "unassigning face", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Face unassigned successfully",
		"photo":   map[string]interface{}{"id": photo.ID, "faces": photo.Faces},
	})
}

type recognizeRequest struct {
	MinConfidence string `json:"min_confidence" validate:"omitempty,oneof=low medium high"`
}

// RecognizePhoto runs recognition and auto-assignment on one photo.
func (fh *FaceHandler) RecognizePhoto(w http.ResponseWriter, r *http.Request) {
	var req recognizeRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}
	min, err := minConfidence(req.MinConfidence, fh.DefaultMin)
	if err != nil {
		writeServiceError(w, "recognizing photo", err)
		return
	}

	photoID := chi.URLParam(r, "photo_id")
	results, err := fh.Recognition.ProcessPhoto(r.Context(), photoID, min)
	if err != nil {
		writeServiceError(w, "recognizing photo", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"photo_id":            photoID,
		"recognition_results": results,
		"matches":             len(results),
	})
}

type batchRecognizeRequest struct {
	PhotoIDs      []string `json:"photo_ids" validate:"required,min=1,dive,required"`
	MinConfidence string   `json:"min_confidence" validate:"omitempty,oneof=low medium high"`
}

// BatchRecognize processes a list of photos. A photo that fails yields an
// empty result without failing the request.
func (fh *FaceHandler) BatchRecognize(w http.ResponseWriter, r *http.Request) {
	var req batchRecognizeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if fh.MaxBatchSize > 0 && len(req.PhotoIDs) > fh.MaxBatchSize {
		WriteAPIError(w, http.StatusBadRequest, "batch_too_large", "Maximum "+strconv.Itoa(fh.MaxBatchSize)+" photos per batch")
		return
	}
	min, err := minConfidence(req.MinConfidence, fh.DefaultMin)
	if err != nil {
		writeServiceError(w, "batch recognizing", err)
		return
	}

	results := fh.Recognition.BatchProcess(r.Context(), req.PhotoIDs, min)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"processed_photos":  len(results),
		"total_assignments": services.CountMatches(results),
		"results":           results,
	})
}

type autoProcessRequest struct {
	Limit         int    `json:"limit" validate:"omitempty,gte=1"`
	MinConfidence string `json:"min_confidence" validate:"omitempty,oneof=low medium high"`
}

// AutoProcess recognizes photos that still have unassigned faces.
func (fh *FaceHandler) AutoProcess(w http.ResponseWriter, r *http.Request) {
	var req autoProcessRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}
	limit := req.Limit
	if limit == 0 {
		limit = fh.AutoProcessLimit
	}
	if fh.MaxBatchSize > 0 && limit > fh.MaxBatchSize {
		limit = fh.MaxBatchSize
	}
	min, err := minConfidence(req.MinConfidence, fh.DefaultMin)
	if err != nil {
		writeServiceError(w, "auto-processing", err)
		return
	}

	results, err := fh.Recognition.AutoProcess(r.Context(), limit, min)
	if err != nil {
		writeServiceError(w, "auto-processing", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"processed_photos":  len(results),
		"total_assignments": services.CountMatches(results),
		"results":           results,
	})
}

// RecognitionStats reports recognition coverage.
func (fh *FaceHandler) RecognitionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := fh.Recognition.Stats(r.Context())
	if err != nil {
		writeServiceError(w, "computing recognition stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type unprocessedPhoto struct {
	ID                   string  `json:"id"`
	Filename             string  `json:"filename"`
	OriginalName         string  `json:"original_name"`
	EventName            *string `json:"event_name,omitempty"`
	TakenAt              *int64  `json:"taken_at,omitempty"`
	TotalFaces           int     `json:"total_faces"`
	UnassignedFaces      int     `json:"unassigned_faces"`
	FacesWithDescriptors int     `json:"faces_with_descriptors"`
}

// UnprocessedPhotos lists recognition candidates, newest capture first.
func (fh *FaceHandler) UnprocessedPhotos(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = fh.AutoProcessLimit
	}
	photos, err := fh.Recognition.FindUnprocessedPhotos(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "finding unprocessed photos", err)
		return
	}

	out := make([]unprocessedPhoto, 0, len(photos))
	for i := range photos {
		out = append(out, summarizeUnprocessed(&photos[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"photos": out, "total": len(out)})
}

func summarizeUnprocessed(p *models.Photo) unprocessedPhoto {
	s := unprocessedPhoto{
		ID:           p.ID,
		Filename:     p.Filename,
		OriginalName: p.OriginalName,
		EventName:    p.EventName,
		TakenAt:      p.TakenAt,
		TotalFaces:   len(p.Faces),
	}
	for i := range p.Faces {
		if p.Faces[i].IsAssigned() {
			continue
		}
		s.UnassignedFaces++
		if _, ok := p.Faces[i].Descriptor(); ok {
			s.FacesWithDescriptors++
		}
	}
	return s
}

// UnassignedFaces pages through faces without a person.
func (fh *FaceHandler) UnassignedFaces(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	faces, err := fh.Recognition.UnassignedFaces(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, "listing unassigned faces", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"faces": faces, "page": page, "limit": limit})
}

type suggestRequest struct {
	Descriptor []float64 `json:"descriptor" validate:"required,len=128"`
	Threshold  float64   `json:"threshold" validate:"gte=0,lte=1"`
}

// SuggestPeople ranks known people for a face descriptor.
func (fh *FaceHandler) SuggestPeople(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	d, err := models.NewDescriptor(req.Descriptor)
	if err != nil {
		writeServiceError(w, "suggesting people", err)
		return
	}
	suggestions, err := fh.Recognition.SuggestPeople(r.Context(), d, req.Threshold)
	if err != nil {
		writeServiceError(w, "suggesting people", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions, "threshold": req.Threshold})
}
