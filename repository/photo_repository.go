package repository

import (
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/media"
	"github.com/camden-git/mediaidentity/models"
)

// PhotoRepository handles database operations for Photo and Face entities
type PhotoRepository struct {
	DB *gorm.DB
}

// NewPhotoRepository creates a new instance of PhotoRepository
func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{DB: db}
}

// WithTx returns a repository bound to an open transaction.
func (r *PhotoRepository) WithTx(tx *gorm.DB) *PhotoRepository {
	return &PhotoRepository{DB: tx}
}

func orderedFaces(db *gorm.DB) *gorm.DB {
	return db.Order("face_index ASC")
}

// Create creates a new photo record in the database
func (r *PhotoRepository) Create(photo *models.Photo) error {
	now := time.Now().Unix()
	if photo.CreatedAt == 0 {
		photo.CreatedAt = now
	}
	photo.UpdatedAt = now
	if photo.MetadataStatus == "" {
		photo.MetadataStatus = models.StatusPending
	}
	if photo.ThumbnailStatus == "" {
		photo.ThumbnailStatus = models.StatusPending
	}

	if err := r.DB.Create(photo).Error; err != nil {
		return fmt.Errorf("failed to create photo %s: %w", photo.Filename, err)
	}
	return nil
}

// GetByID retrieves a photo by its ID with faces in index order
func (r *PhotoRepository) GetByID(id string) (*models.Photo, error) {
	var photo models.Photo
	err := r.DB.Preload("Faces", orderedFaces).Where("id = ?", id).First(&photo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get photo by ID %s: %w", id, err)
	}
	return &photo, nil
}

// List returns a page of photos, newest upload first, and the total count.
func (r *PhotoRepository) List(offset, limit int) ([]models.Photo, int64, error) {
	var total int64
	if err := r.DB.Model(&models.Photo{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count photos: %w", err)
	}

	var photos []models.Photo
	err := r.DB.Preload("Faces", orderedFaces).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&photos).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list photos: %w", err)
	}
	return photos, total, nil
}

// ListByPerson pages through the photos holding at least one face of the
// given person, newest capture date first.
func (r *PhotoRepository) ListByPerson(personID string, offset, limit int) ([]models.Photo, int64, error) {
	subquery := psql.Select("1").
		From("faces f").
		Where("f.photo_id = photos.id").
		Where(sq.Eq{"f.person_id": personID})
	exists, args, err := sq.Expr("EXISTS (?)", subquery).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build person photo filter: %w", err)
	}

	var total int64
	if err := r.DB.Model(&models.Photo{}).Where(exists, args...).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count photos of person %s: %w", personID, err)
	}

	var photos []models.Photo
	err = r.DB.Preload("Faces", orderedFaces).
		Where(exists, args...).
		Order("taken_at IS NULL, taken_at DESC, created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&photos).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list photos of person %s: %w", personID, err)
	}
	return photos, total, nil
}

// Delete removes a photo and its faces, returning the distinct person IDs
// that were referenced by those faces.
func (r *PhotoRepository) Delete(id string) ([]string, error) {
	var personIDs []string
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Face{}).
			Where("photo_id = ? AND person_id IS NOT NULL", id).
			Distinct().
			Pluck("person_id", &personIDs).Error; err != nil {
			return fmt.Errorf("failed to collect people for photo %s: %w", id, err)
		}
		if err := tx.Where("photo_id = ?", id).Delete(&models.Face{}).Error; err != nil {
			return fmt.Errorf("failed to delete faces of photo %s: %w", id, err)
		}
		result := tx.Where("id = ?", id).Delete(&models.Photo{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete photo %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return personIDs, nil
}

// MarkTaskProcessing flips a task status column to processing.
func (r *PhotoRepository) MarkTaskProcessing(id, taskStatusColumn string) error {
	switch taskStatusColumn {
	case "thumbnail_status", "metadata_status":
	default:
		return fmt.Errorf("unknown task status column '%s'", taskStatusColumn)
	}
	result := r.DB.Model(&models.Photo{}).Where("id = ?", id).Updates(map[string]interface{}{
		taskStatusColumn: models.StatusProcessing,
		"updated_at":     time.Now().Unix(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to mark %s processing for photo %s: %w", taskStatusColumn, id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateThumbnailResult records the outcome of the thumbnail task.
func (r *PhotoRepository) UpdateThumbnailResult(id string, thumbPath *string, taskErr error) error {
	now := time.Now().Unix()
	updates := map[string]interface{}{
		"thumbnail_processed_at": now,
		"updated_at":             now,
	}
	if taskErr != nil {
		msg := taskErr.Error()
		updates["thumbnail_status"] = models.StatusFailed
		updates["thumbnail_error"] = msg
	} else {
		updates["thumbnail_status"] = models.StatusDone
		updates["thumbnail_path"] = thumbPath
		updates["thumbnail_error"] = gorm.Expr("NULL")
	}
	if err := r.DB.Model(&models.Photo{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update thumbnail result for photo %s: %w", id, err)
	}
	return nil
}

// UpdateMetadataResult records extracted metadata or the extraction error.
func (r *PhotoRepository) UpdateMetadataResult(id string, meta *media.Metadata, taskErr error) error {
	now := time.Now().Unix()
	updates := map[string]interface{}{
		"metadata_processed_at": now,
		"updated_at":            now,
	}
	if taskErr != nil {
		updates["metadata_status"] = models.StatusFailed
		updates["metadata_error"] = taskErr.Error()
	} else {
		updates["metadata_status"] = models.StatusDone
		updates["metadata_error"] = gorm.Expr("NULL")
		if meta != nil {
			updates["width"] = meta.Width
			updates["height"] = meta.Height
			updates["taken_at"] = meta.TakenAt
			updates["camera_make"] = meta.CameraMake
			updates["camera_model"] = meta.CameraModel
			updates["lens_make"] = meta.LensMake
			updates["lens_model"] = meta.LensModel
			updates["focal_length"] = meta.FocalLength
			updates["aperture"] = meta.Aperture
			updates["shutter_speed"] = meta.ShutterSpeed
			updates["iso"] = meta.ISO
		}
	}
	if err := r.DB.Model(&models.Photo{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update metadata result for photo %s: %w", id, err)
	}
	return nil
}

// ReplaceFaces swaps the detector output for a photo. Face indexes are
// reassigned from 0 in the given order. With detected false the photo is
// reset to "not yet detected". The people linked to the discarded faces are
// returned so their counts can be refreshed.
func (r *PhotoRepository) ReplaceFaces(photoID string, faces []models.Face, detected bool) ([]string, error) {
	var formerPeople []string
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		now := time.Now().Unix()
		updates := map[string]interface{}{
			"faces_detected":     detected,
			"faces_processed_at": gorm.Expr("NULL"),
			"updated_at":         now,
		}
		if detected {
			updates["faces_processed_at"] = now
		}
		result := tx.Model(&models.Photo{}).Where("id = ?", photoID).Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("failed to mark faces detected for photo %s: %w", photoID, result.Error)
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		if err := tx.Model(&models.Face{}).
			Where("photo_id = ? AND person_id IS NOT NULL", photoID).
			Distinct().
			Pluck("person_id", &formerPeople).Error; err != nil {
			return fmt.Errorf("failed to collect people for photo %s: %w", photoID, err)
		}
		if err := tx.Where("photo_id = ?", photoID).Delete(&models.Face{}).Error; err != nil {
			return fmt.Errorf("failed to clear faces of photo %s: %w", photoID, err)
		}
		if len(faces) == 0 {
			return nil
		}
		for i := range faces {
			faces[i].ID = 0
			faces[i].PhotoID = photoID
			faces[i].FaceIndex = i
			faces[i].CreatedAt = now
			faces[i].UpdatedAt = now
		}
		if err := tx.Create(&faces).Error; err != nil {
			return fmt.Errorf("failed to store %d faces for photo %s: %w", len(faces), photoID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return formerPeople, nil
}

// SaveFaceAssignment writes the person link of a single face.
func (r *PhotoRepository) SaveFaceAssignment(face *models.Face) error {
	face.UpdatedAt = time.Now().Unix()
	result := r.DB.Model(&models.Face{}).Where("id = ?", face.ID).Updates(map[string]interface{}{
		"person_id":   face.PersonID,
		"person_name": face.PersonName,
		"updated_at":  face.UpdatedAt,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to save assignment of face %d on photo %s: %w", face.FaceIndex, face.PhotoID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindUnprocessed lists photos that still hold at least one face with a
// descriptor and no person. Newest capture date first, undated photos last.
func (r *PhotoRepository) FindUnprocessed(limit int) ([]models.Photo, error) {
	exists, args, err := sq.Expr("EXISTS (?)", unassignedCandidateFaces()).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unprocessed photo filter: %w", err)
	}

	var photos []models.Photo
	query := r.DB.Preload("Faces", orderedFaces).
		Where(exists, args...).
		Order("taken_at IS NULL, taken_at DESC, created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&photos).Error; err != nil {
		return nil, fmt.Errorf("failed to find unprocessed photos: %w", err)
	}
	return photos, nil
}

// UnassignedFace is a face without a person together with its photo.
type UnassignedFace struct {
	PhotoID       string             `json:"photo_id"`
	FaceIndex     int                `json:"face_index"`
	Filename      string             `json:"filename"`
	ThumbnailPath *string            `json:"thumbnail_path,omitempty"`
	Box           models.BoundingBox `json:"bounding_box" gorm:"embedded;embeddedPrefix:box_"`
	Confidence    float64            `json:"confidence"`
	HasDescriptor bool               `json:"has_descriptor"`
}

// ListUnassignedFaces pages through faces that have no person yet.
func (r *PhotoRepository) ListUnassignedFaces(offset, limit int) ([]UnassignedFace, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	builder := psql.Select(
		"f.photo_id", "f.face_index", "p.filename", "p.thumbnail_path",
		"f.box_x", "f.box_y", "f.box_width", "f.box_height", "f.confidence",
		fmt.Sprintf("(COALESCE(length(f.descriptor), 0) = %d) AS has_descriptor", descriptorBlobLength),
	).
		From("faces f").
		Join("photos p ON p.id = f.photo_id").
		Where(sq.Eq{"f.person_id": nil}).
		OrderBy("p.created_at DESC", "f.face_index ASC").
		Limit(uint64(limit)).
		Offset(uint64(offset))

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unassigned faces query: %w", err)
	}
	var faces []UnassignedFace
	if err := r.DB.Raw(query, args...).Scan(&faces).Error; err != nil {
		return nil, fmt.Errorf("failed to list unassigned faces: %w", err)
	}
	return faces, nil
}

// FaceStats summarizes recognition coverage across all photos.
type FaceStats struct {
	TotalPhotosWithFaces      int64 `json:"total_photos_with_faces"`
	PhotosWithUnassignedFaces int64 `json:"photos_with_unassigned_faces"`
	TotalUnassignedFaces      int64 `json:"total_unassigned_faces"`
	RecognitionCandidates     int64 `json:"recognition_candidates"`
}

// Stats computes FaceStats with one aggregate per figure.
func (r *PhotoRepository) Stats() (FaceStats, error) {
	var stats FaceStats
	var err error

	unassigned := psql.Select().From("faces").Where(sq.Eq{"person_id": nil})

	if stats.TotalPhotosWithFaces, err = scalar(r.DB, psql.Select("COUNT(DISTINCT photo_id)").From("faces")); err != nil {
		return stats, err
	}
	if stats.PhotosWithUnassignedFaces, err = scalar(r.DB, unassigned.Columns("COUNT(DISTINCT photo_id)")); err != nil {
		return stats, err
	}
	if stats.TotalUnassignedFaces, err = scalar(r.DB, unassigned.Columns("COUNT(*)")); err != nil {
		return stats, err
	}
	if stats.RecognitionCandidates, err = scalar(r.DB, unassigned.Columns("COUNT(*)").Where(hasDescriptor("descriptor"))); err != nil {
		return stats, err
	}
	return stats, nil
}
