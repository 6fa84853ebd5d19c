package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/repository"
)

// AvatarSelector derives a person's avatar from one of their faces.
type AvatarSelector interface {
	SelectAvatar(photoPath string, box models.BoundingBox, personID string, existing *string) (string, error)
}

// PathResolver turns a stored relative path into a readable file path.
type PathResolver interface {
	GetFullPath(relativePath string) (string, error)
}

// AssignmentService applies face to person assignments while keeping
// people.photo_count equal to the number of distinct photos they appear in.
type AssignmentService struct {
	db      *gorm.DB
	photos  *repository.PhotoRepository
	people  *repository.PersonRepository
	avatars AvatarSelector
	paths   PathResolver
	locks   *photoLocks
}

// NewAssignmentService creates an AssignmentService. avatars may be nil,
// in which case no avatars are generated.
func NewAssignmentService(db *gorm.DB, photos *repository.PhotoRepository, people *repository.PersonRepository, avatars AvatarSelector, paths PathResolver) *AssignmentService {
	return &AssignmentService{
		db:      db,
		photos:  photos,
		people:  people,
		avatars: avatars,
		paths:   paths,
		locks:   newPhotoLocks(),
	}
}

// avatarJob is an avatar refresh deferred until after commit.
type avatarJob struct {
	photo  *models.Photo
	face   *models.Face
	person *models.Person
}

// ApplyAssignment links face faceIndex of a photo to a person. The face's
// descriptor, when valid, joins the person's corpus unless the face
// already belonged to them. Counts of the person and of any person the
// face previously belonged to are recomputed in the same transaction.
func (s *AssignmentService) ApplyAssignment(ctx context.Context, photoID string, faceIndex int, personID string) (*models.Photo, *models.Person, error) {
	unlock := s.locks.lock(photoID)
	defer unlock()

	var (
		photo  *models.Photo
		person *models.Person
		face   *models.Face
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)
		people := s.people.WithTx(tx)

		var err error
		if photo, err = loadPhoto(photos, photoID); err != nil {
			return err
		}
		if person, err = loadPerson(people, personID); err != nil {
			return err
		}
		if face = photo.FaceAt(faceIndex); face == nil {
			return fmt.Errorf("%w: photo %s has no face %d", ErrInvalidFaceIndex, photoID, faceIndex)
		}

		former, learn := "", true
		if face.IsAssigned() {
			if *face.PersonID == person.ID {
				learn = false
			} else {
				former = *face.PersonID
			}
		}
		if err := assignFace(photos, people, photo, face, person, learn); err != nil {
			return err
		}

		if person.PhotoCount, err = people.RecountPhotos(person.ID); err != nil {
			return err
		}
		if former != "" {
			return recountTolerant(people, former)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.refreshAvatar(avatarJob{photo: photo, face: face, person: person})
	return photo, person, nil
}

// Unassign clears the person of a face and recomputes that person's count.
// Descriptors the person learned from the face are kept.
func (s *AssignmentService) Unassign(ctx context.Context, photoID string, faceIndex int) (*models.Photo, error) {
	unlock := s.locks.lock(photoID)
	defer unlock()

	var photo *models.Photo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)
		people := s.people.WithTx(tx)

		var err error
		if photo, err = loadPhoto(photos, photoID); err != nil {
			return err
		}
		face := photo.FaceAt(faceIndex)
		if face == nil {
			return fmt.Errorf("%w: photo %s has no face %d", ErrInvalidFaceIndex, photoID, faceIndex)
		}
		if !face.IsAssigned() {
			return nil
		}

		former := *face.PersonID
		face.PersonID = nil
		face.PersonName = nil
		if err := photos.SaveFaceAssignment(face); err != nil {
			return err
		}
		return recountTolerant(people, former)
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// ApplyMatches auto-assigns recognition matches onto a photo. Faces that
// already have a person are left alone, as are matches naming a person
// that no longer exists. It returns the matches actually applied.
func (s *AssignmentService) ApplyMatches(ctx context.Context, photoID string, matches []Match) ([]Match, error) {
	if len(matches) == 0 {
		return nil, nil
	}
	unlock := s.locks.lock(photoID)
	defer unlock()

	var (
		applied []Match
		jobs    []avatarJob
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)
		people := s.people.WithTx(tx)

		photo, err := loadPhoto(photos, photoID)
		if err != nil {
			return err
		}

		applied = applied[:0]
		jobs = jobs[:0]
		touched := make(map[string]*models.Person)
		var order []string
		for _, m := range matches {
			face := photo.FaceAt(m.FaceIndex)
			if face == nil || face.IsAssigned() {
				continue
			}
			person, ok := touched[m.PersonID]
			if !ok {
				person, err = loadPerson(people, m.PersonID)
				if errors.Is(err, ErrPersonNotFound) {
					log.Printf("recognition: person %s vanished before auto-assignment on photo %s", m.PersonID, photoID)
					continue
				}
				if err != nil {
					return err
				}
				touched[m.PersonID] = person
				order = append(order, m.PersonID)
				jobs = append(jobs, avatarJob{photo: photo, face: face, person: person})
			}
			if err := assignFace(photos, people, photo, face, person, true); err != nil {
				return err
			}
			applied = append(applied, m)
		}

		for _, id := range order {
			if touched[id].PhotoCount, err = people.RecountPhotos(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		s.refreshAvatar(job)
	}
	return applied, nil
}

// RefreshCounts recomputes photo_count for each person, skipping people
// that no longer exist.
func (s *AssignmentService) RefreshCounts(ctx context.Context, personIDs []string) error {
	if len(personIDs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		people := s.people.WithTx(tx)
		for _, id := range personIDs {
			if err := recountTolerant(people, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// ReplaceFaces stores new detector output for a photo, dropping every
// previous face together with its assignment, and recounts the people who
// lost faces. detected false resets the photo to undetected.
func (s *AssignmentService) ReplaceFaces(ctx context.Context, photoID string, faces []models.Face, detected bool) error {
	unlock := s.locks.lock(photoID)
	defer unlock()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		former, err := s.photos.WithTx(tx).ReplaceFaces(photoID, faces, detected)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrPhotoNotFound, photoID)
		}
		if err != nil {
			return err
		}
		people := s.people.WithTx(tx)
		for _, id := range former {
			if err := recountTolerant(people, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeletePhoto removes a photo record with its faces and recounts everyone
// who appeared in it. The deleted record is returned so callers can clean
// up its files.
func (s *AssignmentService) DeletePhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	unlock := s.locks.lock(photoID)
	defer unlock()

	var photo *models.Photo
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		photos := s.photos.WithTx(tx)
		var err error
		if photo, err = loadPhoto(photos, photoID); err != nil {
			return err
		}
		former, err := photos.Delete(photoID)
		if err != nil {
			return err
		}
		people := s.people.WithTx(tx)
		for _, id := range former {
			if err := recountTolerant(people, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return photo, nil
}

// assignFace links face to person, writes it and, when the face has a
// valid descriptor, appends it to the person's corpus.
// assignFace stores the assignment. With learn set, the face's descriptor
// joins the person's corpus.
func assignFace(photos *repository.PhotoRepository, people *repository.PersonRepository, photo *models.Photo, face *models.Face, person *models.Person, learn bool) error {
	id, name := person.ID, person.Name
	face.PersonID = &id
	face.PersonName = &name
	if err := photos.SaveFaceAssignment(face); err != nil {
		return err
	}
	if !learn {
		return nil
	}
	if d, ok := face.Descriptor(); ok {
		if err := people.AppendDescriptor(person.ID, d, photo.ID, face.FaceIndex); err != nil {
			return err
		}
	}
	return nil
}

func recountTolerant(people *repository.PersonRepository, personID string) error {
	if _, err := people.RecountPhotos(personID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("assignment: skipping recount for missing person %s", personID)
			return nil
		}
		return err
	}
	return nil
}

func loadPhoto(photos *repository.PhotoRepository, id string) (*models.Photo, error) {
	photo, err := photos.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPhotoNotFound, id)
	}
	return photo, err
}

func loadPerson(people *repository.PersonRepository, id string) (*models.Person, error) {
	person, err := people.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	return person, err
}

// refreshAvatar gives the person an avatar cropped from face if they have
// none yet. Failures are logged only.
func (s *AssignmentService) refreshAvatar(job avatarJob) {
	if s.avatars == nil || s.paths == nil {
		return
	}
	if job.person.Avatar != nil && *job.person.Avatar != "" {
		return
	}
	fullPath, err := s.paths.GetFullPath(job.photo.OriginalPath)
	if err != nil {
		log.Printf("avatar: cannot resolve photo %s: %v", job.photo.ID, err)
		return
	}
	avatar, err := s.avatars.SelectAvatar(fullPath, job.face.Box, job.person.ID, job.person.Avatar)
	if err != nil {
		log.Printf("avatar: failed to generate avatar for person %s from photo %s: %v", job.person.ID, job.photo.ID, err)
		return
	}
	if err := s.people.UpdateAvatar(job.person.ID, avatar); err != nil {
		log.Printf("avatar: failed to store avatar path for person %s: %v", job.person.ID, err)
		return
	}
	job.person.Avatar = &avatar
}

// photoLocks hands out one mutex per photo ID, dropping it once unused.
type photoLocks struct {
	mu    sync.Mutex
	locks map[string]*photoLock
}

type photoLock struct {
	sync.Mutex
	refs int
}

func newPhotoLocks() *photoLocks {
	return &photoLocks{locks: make(map[string]*photoLock)}
}

func (l *photoLocks) lock(id string) func() {
	l.mu.Lock()
	pl, ok := l.locks[id]
	if !ok {
		pl = &photoLock{}
		l.locks[id] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.Lock()
	return func() {
		pl.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}
