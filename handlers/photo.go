package handlers

import (
	"errors"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/services"
)

const uploadField = "photos"

type PhotoHandler struct {
	Photos         *services.PhotoService
	MaxUploadBytes int64
}

type uploadFailure struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// UploadPhotos accepts one or more files in the "photos" multipart field
// and an optional "event" name.
func (ph *PhotoHandler) UploadPhotos(w http.ResponseWriter, r *http.Request) {
	if ph.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, ph.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteAPIError(w, http.StatusRequestEntityTooLarge, "upload_too_large", "Upload exceeds the size limit")
			return
		}
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File[uploadField]
	if len(files) == 0 {
		WriteAPIError(w, http.StatusBadRequest, "missing_files", "No files in field '"+uploadField+"'")
		return
	}
	eventName := r.FormValue("event")

	uploaded := make([]*models.Photo, 0, len(files))
	failed := make([]uploadFailure, 0)
	for _, fh := range files {
		photo, err := ph.storeUpload(r, fh, eventName)
		if err != nil {
			log.Printf("upload: rejected %s: %v", fh.Filename, err)
			failed = append(failed, uploadFailure{Filename: fh.Filename, Error: err.Error()})
			continue
		}
		uploaded = append(uploaded, photo)
	}

	status := http.StatusCreated
	if len(uploaded) == 0 {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]interface{}{
		"photos": uploaded,
		"failed": failed,
	})
}

func (ph *PhotoHandler) storeUpload(r *http.Request, fh *multipart.FileHeader, eventName string) (*models.Photo, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ph.Photos.Upload(r.Context(), fh.Filename, fh.Header.Get("Content-Type"), fh.Size, f, eventName)
}

func (ph *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	page, limit, offset := pagination(r)
	photos, total, err := ph.Photos.ListPhotos(r.Context(), offset, limit)
	if err != nil {
		writeServiceError(w, "listing photos", err)
		return
	}
	if photos == nil {
		photos = []models.Photo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"photos":     photos,
		"pagination": newPagination(page, limit, total),
	})
}

func (ph *PhotoHandler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	photo, err := ph.Photos.GetPhoto(r.Context(), chi.URLParam(r, "photo_id"))
	if err != nil {
		writeServiceError(w, "retrieving photo", err)
		return
	}
	writeJSON(w, http.StatusOK, photo)
}

func (ph *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := ph.Photos.DeletePhoto(r.Context(), chi.URLParam(r, "photo_id")); err != nil {
		writeServiceError(w, "deleting photo", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type storeFacesRequest struct {
	Faces []services.FaceInput `json:"faces" validate:"omitempty,dive"`
}

// StoreFaces replaces a photo's faces with detector output and runs
// automatic recognition.
func (ph *PhotoHandler) StoreFaces(w http.ResponseWriter, r *http.Request) {
	var req storeFacesRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if req.Faces == nil {
		WriteAPIError(w, http.StatusBadRequest, "validation_failed", "faces must be an array")
		return
	}

	photoID := chi.URLParam(r, "photo_id")
	result, err := ph.Photos.StoreDetections(r.Context(), photoID, req.Faces)
	if err != nil {
		writeServiceError(w, "storing faces", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"photo_id":    photoID,
		"face_count":  result.FaceCount,
		"recognition": result,
	})
}

func (ph *PhotoHandler) ResetFaces(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photo_id")
	if err := ph.Photos.ResetFaces(r.Context(), photoID); err != nil {
		writeServiceError(w, "resetting faces", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Face data reset", "photo_id": photoID})
}
