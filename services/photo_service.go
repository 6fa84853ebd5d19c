package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/media"
	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/realtime"
	"github.com/camden-git/mediaidentity/repository"
)

// TaskQueue schedules background processing of a freshly stored photo.
type TaskQueue interface {
	QueuePhoto(photoID string) bool
}

// FaceInput is one face reported by the external detector.
type FaceInput struct {
	Box        models.BoundingBox `json:"bounding_box"`
	Landmarks  []models.Landmark  `json:"landmarks,omitempty"`
	Descriptor []float64          `json:"descriptor,omitempty"`
	Confidence float64            `json:"confidence" validate:"gte=0,lte=1"`
}

// DetectionResult describes what happened after new faces were stored.
type DetectionResult struct {
	FaceCount int     `json:"face_count"`
	Attempted bool    `json:"attempted"`
	Matches   []Match `json:"matches"`
}

// PhotoService handles the photo lifecycle around the recognition core:
// ingestion, detector output and deletion.
type PhotoService struct {
	photos      *repository.PhotoRepository
	assignments *AssignmentService
	recognition *RecognitionService
	store       media.Store
	tasks       TaskQueue
	events      EventPublisher
	detectMin   Confidence
}

// NewPhotoService creates a PhotoService. detectMin is the auto-assignment
// floor used right after detector output arrives.
func NewPhotoService(
	photos *repository.PhotoRepository,
	assignments *AssignmentService,
	recognition *RecognitionService,
	store media.Store,
	tasks TaskQueue,
	events EventPublisher,
	detectMin Confidence,
) *PhotoService {
	return &PhotoService{
		photos:      photos,
		assignments: assignments,
		recognition: recognition,
		store:       store,
		tasks:       tasks,
		events:      events,
		detectMin:   detectMin,
	}
}

// Upload stores an original under a generated name, records it and queues
// its metadata and thumbnail tasks.
func (s *PhotoService) Upload(ctx context.Context, originalName, mimeType string, size int64, data io.Reader, eventName string) (*models.Photo, error) {
	if err := media.AcceptUpload(originalName, mimeType); err != nil {
		return nil, err
	}

	filename := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	relPath, err := s.store.Save(media.AssetTypeOriginal, "", filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", originalName, err)
	}

	photo := &models.Photo{
		Filename:     filename,
		OriginalName: filepath.Base(originalName),
		MimeType:     mimeType,
		Size:         size,
		OriginalPath: relPath,
	}
	if eventName = strings.TrimSpace(eventName); eventName != "" {
		photo.EventName = &eventName
	}
	if err := s.photos.WithTx(s.photos.DB.WithContext(ctx)).Create(photo); err != nil {
		if delErr := s.store.Delete(relPath); delErr != nil {
			log.Printf("upload: failed to remove orphaned original %s: %v", relPath, delErr)
		}
		return nil, err
	}

	if s.tasks != nil && !s.tasks.QueuePhoto(photo.ID) {
		log.Printf("upload: processing for photo %s not queued", photo.ID)
	}
	return photo, nil
}

// GetPhoto returns a photo with its faces.
func (s *PhotoService) GetPhoto(ctx context.Context, id string) (*models.Photo, error) {
	photo, err := s.photos.WithTx(s.photos.DB.WithContext(ctx)).GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
	}
	return photo, err
}

// ListPhotos pages through photos, newest upload first.
func (s *PhotoService) ListPhotos(ctx context.Context, offset, limit int) ([]models.Photo, int64, error) {
	return s.photos.WithTx(s.photos.DB.WithContext(ctx)).List(offset, limit)
}

// StoreDetections replaces a photo's faces with detector output and, when
// any face carries a descriptor, runs recognition on it. Recognition
// failures are logged and never fail the call.
func (s *PhotoService) StoreDetections(ctx context.Context, photoID string, inputs []FaceInput) (*DetectionResult, error) {
	faces := make([]models.Face, len(inputs))
	withDescriptor := 0
	for i, in := range inputs {
		faces[i] = models.Face{
			Box:        in.Box,
			Landmarks:  in.Landmarks,
			Confidence: in.Confidence,
		}
		if in.Descriptor == nil {
			continue
		}
		d, err := models.NewDescriptor(in.Descriptor)
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		faces[i].SetDescriptor(d)
		withDescriptor++
	}

	if err := s.assignments.ReplaceFaces(ctx, photoID, faces, true); err != nil {
		return nil, err
	}
	s.publish(realtime.Event{Type: realtime.EventFacesUpdated, PhotoID: photoID, Status: "detected"})

	result := &DetectionResult{FaceCount: len(faces), Attempted: withDescriptor > 0, Matches: []Match{}}
	if !result.Attempted {
		return result, nil
	}
	matches, err := s.recognition.ProcessPhoto(ctx, photoID, s.detectMin)
	if err != nil {
		log.Printf("recognition: automatic pass on photo %s failed: %v", photoID, err)
		return result, nil
	}
	log.Printf("recognition: automatic pass found %d match(es) for photo %s", len(matches), photoID)
	result.Matches = matches
	return result, nil
}

// ResetFaces drops every face of a photo so it can be detected again.
func (s *PhotoService) ResetFaces(ctx context.Context, photoID string) error {
	if err := s.assignments.ReplaceFaces(ctx, photoID, nil, false); err != nil {
		return err
	}
	s.publish(realtime.Event{Type: realtime.EventFacesUpdated, PhotoID: photoID, Status: "reset"})
	return nil
}

// DeletePhoto removes a photo, its files, and refreshes the counts of the
// people who appeared in it. File removal failures are logged only.
func (s *PhotoService) DeletePhoto(ctx context.Context, photoID string) error {
	photo, err := s.assignments.DeletePhoto(ctx, photoID)
	if err != nil {
		return err
	}

	paths := []string{photo.OriginalPath}
	if photo.ThumbnailPath != nil {
		paths = append(paths, *photo.ThumbnailPath)
	}
	for _, p := range paths {
		if err := s.store.Delete(p); err != nil {
			log.Printf("photo: failed to remove %s of deleted photo %s: %v", p, photoID, err)
		}
	}
	s.publish(realtime.Event{Type: realtime.EventPhotoDeleted, PhotoID: photoID})
	return nil
}

func (s *PhotoService) publish(event realtime.Event) {
	if s.events != nil {
		s.events.Broadcast(event)
	}
}
