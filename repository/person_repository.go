package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/models"
)

// PersonRepository handles database operations for Person and related
// PersonDescriptor entities
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *PersonRepository) WithTx(tx *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: tx}
}

func orderedDescriptors(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// Create creates a new person record in the database
func (r *PersonRepository) Create(person *models.Person) error {
	now := time.Now().Unix()
	if person.CreatedAt == 0 {
		person.CreatedAt = now
	}
	if person.UpdatedAt == 0 {
		person.UpdatedAt = now
	}
	for i := range person.Descriptors {
		if person.Descriptors[i].CreatedAt == 0 {
			person.Descriptors[i].CreatedAt = now
		}
	}

	if err := r.DB.Create(person).Error; err != nil {
		return fmt.Errorf("failed to create person %s: %w", person.Name, err)
	}
	return nil
}

// GetByID retrieves a person by their ID, preloading descriptors in
// insertion order
func (r *PersonRepository) GetByID(id string) (*models.Person, error) {
	var person models.Person
	err := r.DB.Preload("Descriptors", orderedDescriptors).Where("id = ?", id).First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get person by ID %s: %w", id, err)
	}
	return &person, nil
}

// GetByName retrieves a person by exact name
func (r *PersonRepository) GetByName(name string) (*models.Person, error) {
	var person models.Person
	err := r.DB.Where("name = ?", name).First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get person by name %q: %w", name, err)
	}
	return &person, nil
}

// ListAll retrieves all people ordered by name, without descriptors
func (r *PersonRepository) ListAll() ([]models.Person, error) {
	var people []models.Person
	if err := r.DB.Order("name ASC").Find(&people).Error; err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	return people, nil
}

// ListWithDescriptors retrieves every person that has at least one
// descriptor, in creation order. This is the recognition corpus.
func (r *PersonRepository) ListWithDescriptors() ([]models.Person, error) {
	var people []models.Person
	err := r.DB.Preload("Descriptors", orderedDescriptors).
		Where("EXISTS (SELECT 1 FROM person_descriptors d WHERE d.person_id = people.id)").
		Order("created_at ASC, id ASC").
		Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list people with descriptors: %w", err)
	}
	return people, nil
}

// Update updates an existing person's name and notes
func (r *PersonRepository) Update(person *models.Person) error {
	person.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.Person{}).Where("id = ?", person.ID).Updates(map[string]interface{}{
		"name":       person.Name,
		"notes":      person.Notes,
		"updated_at": person.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update person ID %s: %w", person.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	// keep the denormalized name on assigned faces in step
	if err := r.DB.Model(&models.Face{}).Where("person_id = ?", person.ID).
		Update("person_name", person.Name).Error; err != nil {
		return fmt.Errorf("failed to refresh face names for person ID %s: %w", person.ID, err)
	}
	return nil
}

// UpdateAvatar sets the avatar path of a person
func (r *PersonRepository) UpdateAvatar(id string, avatarPath string) error {
	result := r.DB.Model(&models.Person{}).Where("id = ?", id).Updates(map[string]interface{}{
		"avatar":     avatarPath,
		"updated_at": time.Now().Unix(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to update avatar for person ID %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete removes a person with their descriptors and detaches every face
// that pointed at them.
func (r *PersonRepository) Delete(id string) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Face{}).Where("person_id = ?", id).Updates(map[string]interface{}{
			"person_id":   gorm.Expr("NULL"),
			"person_name": gorm.Expr("NULL"),
			"updated_at":  time.Now().Unix(),
		}).Error; err != nil {
			return fmt.Errorf("failed to detach faces from person ID %s: %w", id, err)
		}
		if err := tx.Where("person_id = ?", id).Delete(&models.PersonDescriptor{}).Error; err != nil {
			return fmt.Errorf("failed to delete descriptors of person ID %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Person{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete person ID %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// AppendDescriptor adds a reference descriptor for a person, remembering
// which face it came from.
func (r *PersonRepository) AppendDescriptor(personID string, d models.Descriptor, photoID string, faceIndex int) error {
	row := models.PersonDescriptor{
		PersonID:        personID,
		Data:            models.EncodeDescriptor(d),
		SourcePhotoID:   &photoID,
		SourceFaceIndex: &faceIndex,
		CreatedAt:       time.Now().Unix(),
	}
	if err := r.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to append descriptor for person ID %s: %w", personID, err)
	}
	return nil
}

// RecountPhotos recomputes photo_count as the number of distinct photos
// holding a face assigned to the person, stores it and returns it.
func (r *PersonRepository) RecountPhotos(personID string) (int, error) {
	count, err := scalar(r.DB, countDistinctPhotosForPerson(personID))
	if err != nil {
		return 0, fmt.Errorf("failed to count photos for person ID %s: %w", personID, err)
	}
	result := r.DB.Model(&models.Person{}).Where("id = ?", personID).Updates(map[string]interface{}{
		"photo_count": count,
		"updated_at":  time.Now().Unix(),
	})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to store photo count for person ID %s: %w", personID, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, gorm.ErrRecordNotFound
	}
	return int(count), nil
}
