package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/facette/natsort"
	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/models"
	"github.com/camden-git/mediaidentity/repository"
)

const maxPersonNameLength = 100

// Sort orders accepted by ListPeople
const (
	SortByName       = "name"
	SortByPhotoCount = "photo_count"
	SortByCreated    = "created_at"
)

// PeopleService manages person records.
type PeopleService struct {
	people *repository.PersonRepository
	photos repository.PhotoRepositoryInterface
}

// NewPeopleService creates a PeopleService.
func NewPeopleService(people *repository.PersonRepository, photos repository.PhotoRepositoryInterface) *PeopleService {
	return &PeopleService{people: people, photos: photos}
}

// ListOptions filters and orders ListPeople.
type ListOptions struct {
	Search     string
	SortBy     string
	Descending bool
}

func (s *PeopleService) repo(ctx context.Context) *repository.PersonRepository {
	return s.people.WithTx(s.people.DB.WithContext(ctx))
}

func cleanPersonName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxPersonNameLength {
		return "", ErrInvalidPersonName
	}
	return name, nil
}

// CreatePerson adds a person with a unique, trimmed name. An initial
// descriptor, when given, seeds the recognition corpus.
func (s *PeopleService) CreatePerson(ctx context.Context, name string, notes *string, descriptor []float64) (*models.Person, error) {
	name, err := cleanPersonName(name)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, name, ""); err != nil {
		return nil, err
	}

	person := &models.Person{Name: name, Notes: notes}
	if descriptor != nil {
		d, err := models.NewDescriptor(descriptor)
		if err != nil {
			return nil, err
		}
		person.Descriptors = []models.PersonDescriptor{{Data: models.EncodeDescriptor(d)}}
	}
	if err := s.repo(ctx).Create(person); err != nil {
		return nil, duplicateName(err, name)
	}
	return person, nil
}

// GetPerson returns a person by ID.
func (s *PeopleService) GetPerson(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.repo(ctx).GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	return person, err
}

// UpdatePerson changes the name and/or notes of a person. nil leaves a
// field untouched.
func (s *PeopleService) UpdatePerson(ctx context.Context, id string, name, notes *string) (*models.Person, error) {
	person, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, err
	}
	if name != nil {
		cleaned, err := cleanPersonName(*name)
		if err != nil {
			return nil, err
		}
		if err := s.ensureNameFree(ctx, cleaned, id); err != nil {
			return nil, err
		}
		person.Name = cleaned
	}
	if notes != nil {
		person.Notes = notes
	}
	if err := s.repo(ctx).Update(person); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrPersonNotFound, id)
		}
		return nil, duplicateName(err, person.Name)
	}
	return person, nil
}

// DeletePerson removes a person and detaches all of their faces.
func (s *PeopleService) DeletePerson(ctx context.Context, id string) error {
	err := s.repo(ctx).Delete(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s", ErrPersonNotFound, id)
	}
	return err
}

// ListPeople returns people matching opts.Search, which ignores case and
// diacritics. Names sort naturally so "Guest 2" precedes "Guest 10".
func (s *PeopleService) ListPeople(ctx context.Context, opts ListOptions) ([]models.Person, error) {
	all, err := s.repo(ctx).ListAll()
	if err != nil {
		return nil, err
	}

	people := all[:0]
	for _, p := range all {
		if opts.Search == "" || nameMatches(p.Name, opts.Search) {
			people = append(people, p)
		}
	}

	less := func(a, b *models.Person) bool { return natsort.Compare(a.Name, b.Name) }
	switch opts.SortBy {
	case SortByPhotoCount:
		less = func(a, b *models.Person) bool { return a.PhotoCount < b.PhotoCount }
	case SortByCreated:
		less = func(a, b *models.Person) bool { return a.CreatedAt < b.CreatedAt }
	}
	sort.SliceStable(people, func(i, j int) bool {
		if opts.Descending {
			return less(&people[j], &people[i])
		}
		return less(&people[i], &people[j])
	})
	return people, nil
}

// PersonPhotos pages through the photos a person appears in.
func (s *PeopleService) PersonPhotos(ctx context.Context, id string, offset, limit int) (*models.Person, []models.Photo, int64, error) {
	person, err := s.GetPerson(ctx, id)
	if err != nil {
		return nil, nil, 0, err
	}
	photos, total, err := s.photos.ListByPerson(id, offset, limit)
	if err != nil {
		return nil, nil, 0, err
	}
	return person, photos, total, nil
}

// ensureNameFree gives the common case a clear error before the insert.
// Concurrent writers still race to the unique index, see duplicateName.
func (s *PeopleService) ensureNameFree(ctx context.Context, name, selfID string) error {
	existing, err := s.repo(ctx).GetByName(name)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: %q", ErrDuplicatePersonName, name)
	}
	return nil
}

func duplicateName(err error, name string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %q", ErrDuplicatePersonName, name)
	}
	return err
}
