package repository

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/database"
	"github.com/camden-git/mediaidentity/models"
)

func openRepos(t *testing.T) (*PhotoRepository, *PersonRepository) {
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
	return NewPhotoRepository(db), NewPersonRepository(db)
}

func newPhoto(t *testing.T, photos *PhotoRepository) *models.Photo {
	t.Helper()
	name := uuid.NewString() + ".jpg"
	p := &models.Photo{Filename: name, OriginalName: name, MimeType: "image/jpeg", OriginalPath: "originals/" + name}
	if err := photos.Create(p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return p
}

func faceWith(d *models.Descriptor) models.Face {
	f := models.Face{Box: models.BoundingBox{Width: 10, Height: 10}, Confidence: 0.8}
	if d != nil {
		f.SetDescriptor(*d)
	}
	return f
}

func TestReplaceFacesReindexes(t *testing.T) {
	photos, _ := openRepos(t)
	photo := newPhoto(t, photos)
	if photo.ThumbnailStatus != models.StatusPending || photo.MetadataStatus != models.StatusPending {
		t.Errorf("new photo statuses = %s/%s, want pending", photo.ThumbnailStatus, photo.MetadataStatus)
	}

	var d models.Descriptor
	faces := []models.Face{faceWith(&d), faceWith(nil), faceWith(&d)}
	faces[1].FaceIndex = 7
	if _, err := photos.ReplaceFaces(photo.ID, faces, true); err != nil {
		t.Fatalf("ReplaceFaces() error: %v", err)
	}

	stored, err := photos.GetByID(photo.ID)
	if err != nil {
		t.Fatalf("GetByID() error: %v", err)
	}
	if !stored.FacesDetected || stored.FacesProcessedAt == nil {
		t.Errorf("faces_detected = %v, processed_at = %v", stored.FacesDetected, stored.FacesProcessedAt)
	}
	for i, f := range stored.Faces {
		if f.FaceIndex != i {
			t.Errorf("face %d stored with index %d", i, f.FaceIndex)
		}
	}
	if _, ok := stored.Faces[1].Descriptor(); ok {
		t.Error("face 1 gained a descriptor")
	}

	if _, err := photos.ReplaceFaces("missing", nil, true); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("ReplaceFaces(missing) error = %v, want ErrRecordNotFound", err)
	}
}

func TestRecountPhotosAndDelete(t *testing.T) {
	photos, people := openRepos(t)
	alice := &models.Person{Name: "Alice"}
	if err := people.Create(alice); err != nil {
		t.Fatalf("Create(person) error: %v", err)
	}

	photo := newPhoto(t, photos)
	if _, err := photos.ReplaceFaces(photo.ID, []models.Face{faceWith(nil), faceWith(nil)}, true); err != nil {
		t.Fatalf("ReplaceFaces() error: %v", err)
	}
	stored, _ := photos.GetByID(photo.ID)
	for i := range stored.Faces {
		id, name := alice.ID, alice.Name
		stored.Faces[i].PersonID, stored.Faces[i].PersonName = &id, &name
		if err := photos.SaveFaceAssignment(&stored.Faces[i]); err != nil {
			t.Fatalf("SaveFaceAssignment() error: %v", err)
		}
	}

	count, err := people.RecountPhotos(alice.ID)
	if err != nil || count != 1 {
		t.Fatalf("RecountPhotos() = %d, %v, want 1", count, err)
	}
	if _, err := people.RecountPhotos("missing"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("RecountPhotos(missing) error = %v, want ErrRecordNotFound", err)
	}

	former, err := photos.Delete(photo.ID)
	if err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if len(former) != 1 || former[0] != alice.ID {
		t.Errorf("Delete() returned people %v, want [%s]", former, alice.ID)
	}
	if count, _ := people.RecountPhotos(alice.ID); count != 0 {
		t.Errorf("RecountPhotos() after delete = %d, want 0", count)
	}
}

func TestStatsAndUnassignedFaces(t *testing.T) {
	photos, _ := openRepos(t)
	var d models.Descriptor

	first := newPhoto(t, photos)
	if _, err := photos.ReplaceFaces(first.ID, []models.Face{faceWith(&d), faceWith(nil)}, true); err != nil {
		t.Fatalf("ReplaceFaces() error: %v", err)
	}
	second := newPhoto(t, photos)
	broken := faceWith(nil)
	broken.DescriptorData = []byte{1, 2, 3}
	if _, err := photos.ReplaceFaces(second.ID, []models.Face{broken}, true); err != nil {
		t.Fatalf("ReplaceFaces() error: %v", err)
	}
	newPhoto(t, photos) // no faces at all

	stats, err := photos.Stats()
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	want := FaceStats{TotalPhotosWithFaces: 2, PhotosWithUnassignedFaces: 2, TotalUnassignedFaces: 3, RecognitionCandidates: 1}
	if stats != want {
		t.Errorf("Stats() = %+v, want %+v", stats, want)
	}

	faces, err := photos.ListUnassignedFaces(0, 10)
	if err != nil {
		t.Fatalf("ListUnassignedFaces() error: %v", err)
	}
	if len(faces) != 3 {
		t.Fatalf("ListUnassignedFaces() returned %d faces, want 3", len(faces))
	}
	withDescriptor := 0
	for _, f := range faces {
		if f.HasDescriptor {
			withDescriptor++
		}
	}
	if withDescriptor != 1 {
		t.Errorf("%d faces report a descriptor, want 1", withDescriptor)
	}

	page, err := photos.ListUnassignedFaces(2, 10)
	if err != nil || len(page) != 1 {
		t.Errorf("ListUnassignedFaces(offset 2) = %d faces, %v, want 1", len(page), err)
	}
}

func TestPersonDescriptorsAccumulate(t *testing.T) {
	_, people := openRepos(t)
	var seed models.Descriptor
	seed[0] = 1
	p := &models.Person{Name: "Alice", Descriptors: []models.PersonDescriptor{{Data: models.EncodeDescriptor(seed)}}}
	if err := people.Create(p); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	empty := &models.Person{Name: "Nobody"}
	if err := people.Create(empty); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	var next models.Descriptor
	next[1] = 1
	if err := people.AppendDescriptor(p.ID, next, "photo-1", 0); err != nil {
		t.Fatalf("AppendDescriptor() error: %v", err)
	}

	corpus, err := people.ListWithDescriptors()
	if err != nil {
		t.Fatalf("ListWithDescriptors() error: %v", err)
	}
	if len(corpus) != 1 || corpus[0].ID != p.ID {
		t.Fatalf("ListWithDescriptors() = %d people, want only Alice", len(corpus))
	}
	vectors := corpus[0].DescriptorVectors()
	if len(vectors) != 2 || vectors[0] != seed || vectors[1] != next {
		t.Errorf("descriptors not kept in insertion order: %d vectors", len(vectors))
	}

	if err := people.Create(&models.Person{Name: "Alice"}); !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Errorf("Create(duplicate) error = %v, want ErrDuplicatedKey", err)
	}
}
