package repository

import (
	"github.com/camden-git/mediaidentity/media"
	"github.com/camden-git/mediaidentity/models"
)

// PhotoRepositoryInterface defines the methods for photo and face data operations
type PhotoRepositoryInterface interface {
	Create(photo *models.Photo) error
	GetByID(id string) (*models.Photo, error)
	List(offset, limit int) ([]models.Photo, int64, error)
	ListByPerson(personID string, offset, limit int) ([]models.Photo, int64, error)
	Delete(id string) ([]string, error)
	MarkTaskProcessing(id, taskStatusColumn string) error
	UpdateThumbnailResult(id string, thumbPath *string, taskErr error) error
	UpdateMetadataResult(id string, meta *media.Metadata, taskErr error) error
	ReplaceFaces(photoID string, faces []models.Face, detected bool) ([]string, error)
	SaveFaceAssignment(face *models.Face) error
	FindUnprocessed(limit int) ([]models.Photo, error)
	ListUnassignedFaces(offset, limit int) ([]UnassignedFace, error)
	Stats() (FaceStats, error)
}

// PersonRepositoryInterface defines the methods for person data operations
type PersonRepositoryInterface interface {
	Create(person *models.Person) error
	GetByID(id string) (*models.Person, error)
	GetByName(name string) (*models.Person, error)
	ListAll() ([]models.Person, error)
	ListWithDescriptors() ([]models.Person, error)
	Update(person *models.Person) error
	UpdateAvatar(id string, avatarPath string) error
	Delete(id string) error
	AppendDescriptor(personID string, d models.Descriptor, photoID string, faceIndex int) error
	RecountPhotos(personID string) (int, error)
}

var (
	_ PhotoRepositoryInterface  = (*PhotoRepository)(nil)
	_ PersonRepositoryInterface = (*PersonRepository)(nil)
)
