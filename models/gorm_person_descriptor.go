package models

// PersonDescriptor is one reference descriptor accumulated for a person.
// Rows are only ever appended; unassigning a face does not remove them.
// It corresponds to the 'person_descriptors' table.
type PersonDescriptor struct {
	ID              uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID        string  `gorm:"not null;index" json:"person_id"`
	Data            []byte  `gorm:"not null;column:descriptor" json:"-"` // 128 float32 values as BLOB
	SourcePhotoID   *string `gorm:"" json:"source_photo_id,omitempty"`
	SourceFaceIndex *int    `gorm:"" json:"source_face_index,omitempty"`
	CreatedAt       int64   `gorm:"not null" json:"created_at"`
}

// TableName explicitly sets the table name for GORM.
func (PersonDescriptor) TableName() string {
	return "person_descriptors"
}
