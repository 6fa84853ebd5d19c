package models

// BoundingBox is a face rectangle in pixel coordinates of the oriented photo.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Landmark is a single facial keypoint reported by the detector.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Face is one detected face of a photo. Faces are addressed by their
// position (FaceIndex) within the photo, which stays stable once written.
// It corresponds to the 'faces' table.
type Face struct {
	ID         uint        `gorm:"primaryKey;autoIncrement" json:"-"`
	PhotoID    string      `gorm:"not null;uniqueIndex:idx_photo_face_index" json:"photo_id"`
	FaceIndex  int         `gorm:"not null;uniqueIndex:idx_photo_face_index" json:"index"`
	Box        BoundingBox `gorm:"embedded;embeddedPrefix:box_" json:"bounding_box"`
	Landmarks  []Landmark  `gorm:"serializer:json" json:"landmarks,omitempty"`
	Confidence float64     `gorm:"not null;default:0" json:"confidence"`

	DescriptorData []byte `gorm:"column:descriptor" json:"-"` // BLOB, see EncodeDescriptor

	PersonID   *string `gorm:"index" json:"person_id,omitempty"`
	PersonName *string `gorm:"" json:"person_name,omitempty"` // snapshot taken at assignment time

	CreatedAt int64 `gorm:"not null" json:"created_at"`
	UpdatedAt int64 `gorm:"not null" json:"updated_at"`
}

// TableName explicitly sets the table name for GORM.
func (Face) TableName() string {
	return "faces"
}

// Descriptor decodes the stored descriptor. ok is false when the face has
// no descriptor or the stored blob is malformed.
func (f *Face) Descriptor() (Descriptor, bool) {
	if len(f.DescriptorData) == 0 {
		return Descriptor{}, false
	}
	d, err := DecodeDescriptor(f.DescriptorData)
	if err != nil {
		return Descriptor{}, false
	}
	return d, true
}

// SetDescriptor stores d on the face.
func (f *Face) SetDescriptor(d Descriptor) {
	f.DescriptorData = EncodeDescriptor(d)
}

// IsAssigned reports whether the face is linked to a person.
func (f *Face) IsAssigned() bool {
	return f.PersonID != nil && *f.PersonID != ""
}
