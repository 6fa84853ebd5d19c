package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task status values shared by the per-photo processing columns.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

// Photo represents an uploaded photo using GORM.
// It corresponds to the 'photos' table.
type Photo struct {
	ID           string  `gorm:"primaryKey;type:text" json:"id"`
	Filename     string  `gorm:"not null;uniqueIndex" json:"filename"` // stored name, uuid + original extension
	OriginalName string  `gorm:"not null" json:"original_name"`
	MimeType     string  `gorm:"not null" json:"mime_type"`
	Size         int64   `gorm:"not null" json:"size"`
	OriginalPath string  `gorm:"not null" json:"original_path"` // relative to the storage root
	EventName    *string `gorm:"index" json:"event_name,omitempty"`

	Width        *int     `gorm:"" json:"width,omitempty"`
	Height       *int     `gorm:"" json:"height,omitempty"`
	TakenAt      *int64   `gorm:"index" json:"taken_at,omitempty"` // Unix timestamp from EXIF
	CameraMake   *string  `gorm:"" json:"camera_make,omitempty"`
	CameraModel  *string  `gorm:"" json:"camera_model,omitempty"`
	LensMake     *string  `gorm:"" json:"lens_make,omitempty"`
	LensModel    *string  `gorm:"" json:"lens_model,omitempty"`
	FocalLength  *float64 `gorm:"" json:"focal_length,omitempty"`
	Aperture     *float64 `gorm:"" json:"aperture,omitempty"`
	ShutterSpeed *string  `gorm:"" json:"shutter_speed,omitempty"`
	ISO          *int     `gorm:"" json:"iso,omitempty"`

	ThumbnailPath *string `gorm:"" json:"thumbnail_path,omitempty"` // relative to the storage root

	MetadataStatus  string `gorm:"not null;default:pending" json:"metadata_status"`
	ThumbnailStatus string `gorm:"not null;default:pending" json:"thumbnail_status"`

	MetadataProcessedAt  *int64 `gorm:"" json:"metadata_processed_at,omitempty"`
	ThumbnailProcessedAt *int64 `gorm:"" json:"thumbnail_processed_at,omitempty"`

	MetadataError  *string `gorm:"" json:"metadata_error,omitempty"`
	ThumbnailError *string `gorm:"" json:"thumbnail_error,omitempty"`

	FacesDetected    bool   `gorm:"not null;default:false" json:"faces_detected"`
	FacesProcessedAt *int64 `gorm:"" json:"faces_processed_at,omitempty"`

	CreatedAt int64 `gorm:"not null" json:"created_at"`
	UpdatedAt int64 `gorm:"not null" json:"updated_at"`

	// Relationships
	Faces []Face `gorm:"foreignKey:PhotoID;constraint:OnDelete:CASCADE" json:"faces"`
}

// TableName explicitly sets the table name for GORM.
func (Photo) TableName() string {
	return "photos"
}

func (p *Photo) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// FaceAt returns the face at index i, or nil when out of range.
func (p *Photo) FaceAt(i int) *Face {
	for j := range p.Faces {
		if p.Faces[j].FaceIndex == i {
			return &p.Faces[j]
		}
	}
	return nil
}
