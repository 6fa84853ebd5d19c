package services

import (
	"errors"
	"testing"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/realtime"
)

func TestProcessPhotoAutoAssignsAcceptedMatches(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedPerson(t, "Alice", vec(0))
	photo := env.seedPhoto(t, nil,
		ptr(vec(0.25)), // high
		ptr(vec(0.6)),  // low
		ptr(vec(1)),    // below the floor
		nil,
	)

	matches, err := env.recognition.ProcessPhoto(env.ctx, photo.ID, ConfidenceMedium)
	if err != nil {
		t.Fatalf("ProcessPhoto() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("ProcessPhoto() returned %d matches, want 2: %+v", len(matches), matches)
	}
	if matches[0].FaceIndex != 0 || matches[0].Confidence != ConfidenceHigh {
		t.Errorf("first match = %+v, want face 0 high", matches[0])
	}
	if matches[1].FaceIndex != 1 || matches[1].Confidence != ConfidenceLow {
		t.Errorf("second match = %+v, want face 1 low", matches[1])
	}

	stored := env.reloadPhoto(t, photo.ID)
	if f := stored.FaceAt(0); f.PersonID == nil || *f.PersonID != alice.ID {
		t.Errorf("face 0 not auto-assigned to alice")
	}
	for _, i := range []int{1, 2, 3} {
		if stored.FaceAt(i).IsAssigned() {
			t.Errorf("face %d assigned, want untouched", i)
		}
	}
	if got := env.reloadPerson(t, alice.ID); got.PhotoCount != 1 || len(got.Descriptors) != 2 {
		t.Errorf("alice = count %d, descriptors %d, want 1 and 2", got.PhotoCount, len(got.Descriptors))
	}

	found := false
	for _, typ := range env.events.types() {
		if typ == realtime.EventFacesUpdated {
			found = true
		}
	}
	if !found {
		t.Error("no faces_updated event published")
	}
}

func TestProcessPhotoNeverOverwrites(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedPerson(t, "Alice", vec(0))
	bob := env.seedPerson(t, "Bob")
	photo := env.seedPhoto(t, nil, ptr(vec(0.25)))

	// link to bob without teaching him the descriptor
	f := photo.FaceAt(0)
	id, name := bob.ID, bob.Name
	f.PersonID, f.PersonName = &id, &name
	if err := env.photos.SaveFaceAssignment(f); err != nil {
		t.Fatalf("SaveFaceAssignment() error: %v", err)
	}

	matches, err := env.recognition.ProcessPhoto(env.ctx, photo.ID, ConfidenceLow)
	if err != nil {
		t.Fatalf("ProcessPhoto() error: %v", err)
	}
	if len(matches) != 1 || matches[0].PersonID != alice.ID {
		t.Fatalf("ProcessPhoto() = %+v, want a single match for alice", matches)
	}
	if got := env.reloadPhoto(t, photo.ID).FaceAt(0).PersonID; got == nil || *got != bob.ID {
		t.Errorf("face 0 person = %v, want bob kept", got)
	}
	if got := env.reloadPerson(t, alice.ID).PhotoCount; got != 0 {
		t.Errorf("alice photo_count = %d, want 0", got)
	}
}

func TestProcessPhotoEmptyCases(t *testing.T) {
	env := newTestEnv(t)

	// no people yet
	photo := env.seedPhoto(t, nil, ptr(vec(0)))
	matches, err := env.recognition.ProcessPhoto(env.ctx, photo.ID, ConfidenceLow)
	if err != nil || len(matches) != 0 {
		t.Errorf("ProcessPhoto(no people) = %v, %v, want empty", matches, err)
	}

	env.seedPerson(t, "Alice", vec(0))

	// faces never detected
	undetected := &models.Photo{Filename: "u.jpg", OriginalName: "u.jpg", MimeType: "image/jpeg", OriginalPath: "originals/u.jpg"}
	if err := env.photos.Create(undetected); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	matches, err = env.recognition.ProcessPhoto(env.ctx, undetected.ID, ConfidenceLow)
	if err != nil || len(matches) != 0 {
		t.Errorf("ProcessPhoto(undetected) = %v, %v, want empty", matches, err)
	}

	if _, err := env.recognition.ProcessPhoto(env.ctx, "missing", ConfidenceLow); !errors.Is(err, ErrPhotoNotFound) {
		t.Errorf("ProcessPhoto(missing) error = %v, want ErrPhotoNotFound", err)
	}
}

func TestBatchProcessIsolatesFailures(t *testing.T) {
	env := newTestEnv(t)
	env.seedPerson(t, "Alice", vec(0))
	first := env.seedPhoto(t, nil, ptr(vec(0.25)))
	third := env.seedPhoto(t, nil, ptr(vec(0.25)))

	ids := []string{first.ID, "missing", third.ID, first.ID}
	results := env.recognition.BatchProcess(env.ctx, ids, ConfidenceHigh)

	if len(results) != 3 {
		t.Fatalf("BatchProcess() returned %d entries, want 3", len(results))
	}
	if got, ok := results["missing"]; !ok || len(got) != 0 {
		t.Errorf("results[missing] = %v (present %v), want empty entry", got, ok)
	}
	for _, id := range []string{first.ID, third.ID} {
		if len(results[id]) != 1 {
			t.Errorf("results[%s] has %d matches, want 1", id, len(results[id]))
		}
		if !env.reloadPhoto(t, id).FaceAt(0).IsAssigned() {
			t.Errorf("photo %s face 0 not assigned", id)
		}
	}
	if got := CountMatches(results); got != 2 {
		t.Errorf("CountMatches() = %d, want 2", got)
	}
}

func TestBatchProcessMalformedDescriptors(t *testing.T) {
	env := newTestEnv(t)
	env.seedPerson(t, "Alice", vec(0))
	first := env.seedPhoto(t, nil, ptr(vec(0.25)))
	broken := env.seedPhoto(t, nil)
	face := models.Face{Box: models.BoundingBox{Width: 20, Height: 20}, DescriptorData: []byte{1, 2, 3}}
	if err := env.assignments.ReplaceFaces(env.ctx, broken.ID, []models.Face{face}, true); err != nil {
		t.Fatalf("ReplaceFaces() error: %v", err)
	}
	third := env.seedPhoto(t, nil, ptr(vec(0.25)))

	results := env.recognition.BatchProcess(env.ctx, []string{first.ID, broken.ID, third.ID}, ConfidenceLow)
	if len(results[first.ID]) != 1 || len(results[third.ID]) != 1 {
		t.Errorf("healthy photos got %d and %d matches, want 1 each", len(results[first.ID]), len(results[third.ID]))
	}
	if got, ok := results[broken.ID]; !ok || len(got) != 0 {
		t.Errorf("results[broken] = %v (present %v), want empty entry", got, ok)
	}
}

func TestFindUnprocessedPhotosOrdering(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedPerson(t, "Alice")

	older := env.seedPhoto(t, int64p(100), ptr(vec(0)))
	undated := env.seedPhoto(t, nil, ptr(vec(0)))
	newest := env.seedPhoto(t, int64p(300), ptr(vec(0)), ptr(vec(1)))
	env.seedPhoto(t, int64p(500), nil) // no descriptor
	done := env.seedPhoto(t, int64p(400), ptr(vec(0)))
	if _, _, err := env.assignments.ApplyAssignment(env.ctx, done.ID, 0, alice.ID); err != nil {
		t.Fatalf("ApplyAssignment() error: %v", err)
	}

	photos, err := env.recognition.FindUnprocessedPhotos(env.ctx, 0)
	if err != nil {
		t.Fatalf("FindUnprocessedPhotos() error: %v", err)
	}
	want := []string{newest.ID, older.ID, undated.ID}
	if len(photos) != len(want) {
		t.Fatalf("FindUnprocessedPhotos() returned %d photos, want %d", len(photos), len(want))
	}
	for i, id := range want {
		if photos[i].ID != id {
			t.Errorf("photo %d = %s, want %s", i, photos[i].ID, id)
		}
	}

	limited, err := env.recognition.FindUnprocessedPhotos(env.ctx, 1)
	if err != nil || len(limited) != 1 || limited[0].ID != newest.ID {
		t.Errorf("FindUnprocessedPhotos(1) = %d photos, %v, want newest only", len(limited), err)
	}
}

func TestAutoProcess(t *testing.T) {
	env := newTestEnv(t)
	alice := env.seedPerson(t, "Alice", vec(0))
	env.seedPhoto(t, int64p(1), ptr(vec(0.25)))
	// low against the seed and below the floor against the descriptor the
	// first photo teaches, whichever order the workers take
	env.seedPhoto(t, int64p(2), ptr(vec(-0.6)))

	results, err := env.recognition.AutoProcess(env.ctx, 10, ConfidenceMedium)
	if err != nil {
		t.Fatalf("AutoProcess() error: %v", err)
	}
	if len(results) != 2 || CountMatches(results) != 2 {
		t.Errorf("AutoProcess() = %d photos, %d matches, want 2 and 2", len(results), CountMatches(results))
	}
	if got := env.reloadPerson(t, alice.ID).PhotoCount; got != 1 {
		t.Errorf("photo_count = %d, want 1 (only the high match is assigned)", got)
	}

	stats, err := env.recognition.Stats(env.ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.TotalPhotosWithFaces != 2 || stats.TotalUnassignedFaces != 1 || stats.RecognitionCandidates != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestSuggestPeople(t *testing.T) {
	env := newTestEnv(t)
	near := env.seedPerson(t, "Near", vec(0.25))
	env.seedPerson(t, "Far", vec(1.5))

	got, err := env.recognition.SuggestPeople(env.ctx, vec(0), 0)
	if err != nil {
		t.Fatalf("SuggestPeople() error: %v", err)
	}
	if len(got) != 1 || got[0].PersonID != near.ID {
		t.Errorf("SuggestPeople() = %+v, want only Near", got)
	}

	got, err = env.recognition.SuggestPeople(env.ctx, vec(0), 0.1)
	if err != nil || len(got) != 2 {
		t.Errorf("SuggestPeople(0.1) = %d suggestions, %v, want 2", len(got), err)
	}
}
