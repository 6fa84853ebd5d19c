package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Person represents a known identity using GORM.
// It corresponds to the 'people' table.
type Person struct {
	ID         string  `gorm:"primaryKey;type:text" json:"id"`
	Name       string  `gorm:"not null;uniqueIndex" json:"name"`
	Notes      *string `gorm:"" json:"notes,omitempty"`
	Avatar     *string `gorm:"" json:"avatar,omitempty"` // relative to the storage root
	PhotoCount int     `gorm:"not null;default:0" json:"photo_count"`
	CreatedAt  int64   `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt  int64   `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	// Relationships
	Descriptors []PersonDescriptor `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "people"
}

func (p *Person) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// DescriptorVectors decodes the person's accumulated descriptors in
// insertion order, skipping any malformed rows.
func (p *Person) DescriptorVectors() []Descriptor {
	out := make([]Descriptor, 0, len(p.Descriptors))
	for i := range p.Descriptors {
		if d, err := DecodeDescriptor(p.Descriptors[i].Data); err == nil {
			out = append(out, d)
		}
	}
	return out
}
