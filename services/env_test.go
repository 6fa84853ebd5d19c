package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/camden-git/mediaidentity/database"
	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/realtime"
	"github.com/camden-git/mediaidentity/repository"
	"github.com/camden-git/mediaidentity/workers"
)

type fakeAvatars struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAvatars) SelectAvatar(photoPath string, box models.BoundingBox, personID string, existing *string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, personID)
	if f.err != nil {
		return "", f.err
	}
	return "avatars/avatar_" + personID + ".jpg", nil
}

func (f *fakeAvatars) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakePaths struct{}

func (fakePaths) GetFullPath(relativePath string) (string, error) {
	if relativePath == "" {
		return "", errors.New("empty asset path")
	}
	return "/storage/" + relativePath, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (p *recordingPublisher) Broadcast(event realtime.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	ctx         context.Context
	photos      *repository.PhotoRepository
	people      *repository.PersonRepository
	avatars     *fakeAvatars
	events      *recordingPublisher
	assignments *AssignmentService
	recognition *RecognitionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory() error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	env := &testEnv{
		ctx:     context.Background(),
		photos:  repository.NewPhotoRepository(db),
		people:  repository.NewPersonRepository(db),
		avatars: &fakeAvatars{},
		events:  &recordingPublisher{},
	}
	env.assignments = NewAssignmentService(db, env.photos, env.people, env.avatars, fakePaths{})
	batch := workers.NewBatchRecognizer[Match](2, 0)
	env.recognition = NewRecognitionService(env.photos, env.people, env.assignments, batch, env.events, 0)
	return env
}

// seedPhoto stores a photo whose faces carry the given descriptors, in
// order; a nil entry is a face without descriptor.
func (e *testEnv) seedPhoto(t *testing.T, takenAt *int64, descriptors ...*models.Descriptor) *models.Photo {
	t.Helper()
	name := uuid.NewString() + ".jpg"
	photo := &models.Photo{
		Filename:     name,
		OriginalName: name,
		MimeType:     "image/jpeg",
		Size:         1024,
		OriginalPath: "originals/" + name,
		TakenAt:      takenAt,
	}
	if err := e.photos.Create(photo); err != nil {
		t.Fatalf("Create(photo) error: %v", err)
	}

	faces := make([]models.Face, len(descriptors))
	for i, d := range descriptors {
		faces[i] = models.Face{Box: models.BoundingBox{X: 10, Y: 10, Width: 40, Height: 40}, Confidence: 0.9}
		if d != nil {
			faces[i].SetDescriptor(*d)
		}
	}
	if err := e.assignments.ReplaceFaces(e.ctx, photo.ID, faces, true); err != nil {
		t.Fatalf("ReplaceFaces() error: %v", err)
	}
	return e.reloadPhoto(t, photo.ID)
}

func (e *testEnv) seedPerson(t *testing.T, name string, corpus ...models.Descriptor) *models.Person {
	t.Helper()
	p := &models.Person{Name: name}
	for _, d := range corpus {
		p.Descriptors = append(p.Descriptors, models.PersonDescriptor{Data: models.EncodeDescriptor(d)})
	}
	if err := e.people.Create(p); err != nil {
		t.Fatalf("Create(person) error: %v", err)
	}
	return p
}

func (e *testEnv) reloadPhoto(t *testing.T, id string) *models.Photo {
	t.Helper()
	photo, err := e.photos.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID(photo %s) error: %v", id, err)
	}
	return photo
}

func (e *testEnv) reloadPerson(t *testing.T, id string) *models.Person {
	t.Helper()
	p, err := e.people.GetByID(id)
	if err != nil {
		t.Fatalf("GetByID(person %s) error: %v", id, err)
	}
	return p
}

func int64p(v int64) *int64 { return &v }
