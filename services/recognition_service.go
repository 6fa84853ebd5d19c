package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/realtime"
	"github.com/camden-git/mediaidentity/repository"
	"github.com/camden-git/mediaidentity/workers"
)

const (
	// DefaultSuggestionThreshold is the similarity floor for person suggestions.
	DefaultSuggestionThreshold = 0.6
	maxSuggestions             = 5
)

// EventPublisher receives realtime notifications.
type EventPublisher interface {
	Broadcast(event realtime.Event)
}

// RecognitionService matches detected faces against known people and
// auto-assigns confident matches.
type RecognitionService struct {
	photos      repository.PhotoRepositoryInterface
	people      repository.PersonRepositoryInterface
	assignments *AssignmentService
	batch       *workers.BatchRecognizer[Match]
	events      EventPublisher

	suggestionThreshold float64
}

// NewRecognitionService creates a RecognitionService. events may be nil.
func NewRecognitionService(
	photos repository.PhotoRepositoryInterface,
	people repository.PersonRepositoryInterface,
	assignments *AssignmentService,
	batch *workers.BatchRecognizer[Match],
	events EventPublisher,
	suggestionThreshold float64,
) *RecognitionService {
	if suggestionThreshold <= 0 {
		suggestionThreshold = DefaultSuggestionThreshold
	}
	return &RecognitionService{
		photos:              photos,
		people:              people,
		assignments:         assignments,
		batch:               batch,
		events:              events,
		suggestionThreshold: suggestionThreshold,
	}
}

// ProcessPhoto recognizes the faces of one photo and auto-assigns the
// matches min accepts onto faces without a person. Every match found is
// returned, assigned or not.
func (s *RecognitionService) ProcessPhoto(ctx context.Context, photoID string, min Confidence) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	photo, err := s.photos.GetByID(photoID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, photoID)
	}
	if err != nil {
		return nil, err
	}
	if !photo.FacesDetected || len(photo.Faces) == 0 {
		return []Match{}, nil
	}

	people, err := s.people.ListWithDescriptors()
	if err != nil {
		return nil, err
	}
	if len(people) == 0 {
		log.Printf("recognition: no people with descriptors, skipping photo %s", photoID)
		return []Match{}, nil
	}

	matches := RecognizeFaces(photo.Faces, people)
	for _, m := range matches {
		log.Printf("recognition: photo %s face %d matched %s at %.0f%% (%s)", photoID, m.FaceIndex, m.PersonName, m.Similarity*100, m.Confidence)
	}

	if _, err := s.AutoAssign(ctx, photoID, matches, min); err != nil {
		return nil, err
	}
	return matches, nil
}

// AutoAssign applies the matches min accepts. Faces that already carry a
// person are never overwritten.
func (s *RecognitionService) AutoAssign(ctx context.Context, photoID string, matches []Match, min Confidence) ([]Match, error) {
	accepted := FilterByConfidence(matches, min)
	if len(accepted) == 0 {
		return nil, nil
	}
	applied, err := s.assignments.ApplyMatches(ctx, photoID, accepted)
	if err != nil {
		return nil, fmt.Errorf("auto-assignment on photo %s: %w", photoID, err)
	}
	if len(applied) > 0 {
		log.Printf("recognition: auto-assigned %d face(s) in photo %s", len(applied), photoID)
		s.publish(realtime.Event{Type: realtime.EventFacesUpdated, PhotoID: photoID, Status: "auto_assigned"})
	}
	return applied, nil
}

// BatchProcess runs ProcessPhoto over photoIDs on the bounded recognition
// pool. A photo that fails maps to an empty result.
func (s *RecognitionService) BatchProcess(ctx context.Context, photoIDs []string, min Confidence) map[string][]Match {
	results := s.batch.Run(ctx, photoIDs, func(ctx context.Context, photoID string) ([]Match, error) {
		return s.ProcessPhoto(ctx, photoID, min)
	})

	s.publish(realtime.Event{
		Type:   realtime.EventBatchProgress,
		Status: "completed",
		Extra: map[string]interface{}{
			"processed_photos":  len(results),
			"total_assignments": CountMatches(results),
		},
	})
	return results
}

// FindUnprocessedPhotos lists photos with at least one face that has a
// descriptor and no person, newest capture first and undated last.
func (s *RecognitionService) FindUnprocessedPhotos(ctx context.Context, limit int) ([]models.Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.photos.FindUnprocessed(limit)
}

// AutoProcess finds up to limit unprocessed photos and batch-processes them.
func (s *RecognitionService) AutoProcess(ctx context.Context, limit int, min Confidence) (map[string][]Match, error) {
	photos, err := s.FindUnprocessedPhotos(ctx, limit)
	if err != nil {
		return nil, err
	}
	if len(photos) == 0 {
		return map[string][]Match{}, nil
	}
	ids := make([]string, len(photos))
	for i := range photos {
		ids[i] = photos[i].ID
	}
	return s.BatchProcess(ctx, ids, min), nil
}

// Stats reports recognition coverage.
func (s *RecognitionService) Stats(ctx context.Context) (repository.FaceStats, error) {
	if err := ctx.Err(); err != nil {
		return repository.FaceStats{}, err
	}
	return s.photos.Stats()
}

// UnassignedFaces pages through faces that have no person yet.
func (s *RecognitionService) UnassignedFaces(ctx context.Context, offset, limit int) ([]repository.UnassignedFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	faces, err := s.photos.ListUnassignedFaces(offset, limit)
	if err != nil {
		return nil, err
	}
	if faces == nil {
		faces = []repository.UnassignedFace{}
	}
	return faces, nil
}

// SuggestPeople ranks known people against a descriptor. A threshold of
// zero or less selects the configured default.
func (s *RecognitionService) SuggestPeople(ctx context.Context, d models.Descriptor, threshold float64) ([]Suggestion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if threshold <= 0 {
		threshold = s.suggestionThreshold
	}
	people, err := s.people.ListWithDescriptors()
	if err != nil {
		return nil, err
	}
	return RankPeople(d, people, threshold, maxSuggestions), nil
}

// CountMatches totals the matches of a batch result.
func CountMatches(results map[string][]Match) int {
	n := 0
	for _, m := range results {
		n += len(m)
	}
	return n
}

func (s *RecognitionService) publish(event realtime.Event) {
	if s.events != nil {
		s.events.Broadcast(event)
	}
}
