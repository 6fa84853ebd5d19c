package repository

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/mediaidentity/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// descriptorBlobLength is the byte length of a well formed descriptor blob.
var descriptorBlobLength = models.DescriptorLength * 4

// hasDescriptor matches face rows carrying a decodable descriptor.
func hasDescriptor(column string) sq.Sqlizer {
	return sq.Expr(fmt.Sprintf("length(%s) = ?", column), descriptorBlobLength)
}

// unassignedCandidateFaces selects faces that recognition could still act on.
func unassignedCandidateFaces() sq.SelectBuilder {
	return psql.Select("1").
		From("faces f").
		Where("f.photo_id = photos.id").
		Where(sq.Eq{"f.person_id": nil}).
		Where(hasDescriptor("f.descriptor"))
}

// countDistinctPhotosForPerson builds the aggregate behind people.photo_count.
func countDistinctPhotosForPerson(personID string) sq.SelectBuilder {
	return psql.Select("COUNT(DISTINCT photo_id)").
		From("faces").
		Where(sq.Eq{"person_id": personID})
}

// scalar runs a single-value aggregate built with squirrel on db.
func scalar(db *gorm.DB, builder sq.SelectBuilder) (int64, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var value int64
	if err := db.Raw(query, args...).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to run aggregate: %w", err)
	}
	return value, nil
}
