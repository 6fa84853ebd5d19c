package media

import (
	"bytes"
	"fmt"
	"image"
	"log"
	"math"

	"github.com/disintegration/imaging"

	"github.com/camden-git/mediaidentity/models"
)

// avatarPadding is the margin added around a face, relative to its larger side.
const avatarPadding = 0.3

// AvatarSelector produces a person's avatar from the first face assigned
// to them. An existing avatar is never replaced.
type AvatarSelector struct {
	store Store
}

func NewAvatarSelector(store Store) *AvatarSelector {
	return &AvatarSelector{store: store}
}

// avatarCrop pads the face box on every side and clamps it to bounds.
// ok is false when nothing of the box lies inside the image.
func avatarCrop(bounds image.Rectangle, box models.BoundingBox) (image.Rectangle, bool) {
	if box.Width <= 0 || box.Height <= 0 {
		return image.Rectangle{}, false
	}
	padding := math.Max(box.Width, box.Height) * avatarPadding

	x0 := math.Max(0, box.X-padding)
	y0 := math.Max(0, box.Y-padding)
	x1 := math.Min(float64(bounds.Dx()), box.X+box.Width+padding)
	y1 := math.Min(float64(bounds.Dy()), box.Y+box.Height+padding)

	rect := image.Rect(
		bounds.Min.X+int(math.Floor(x0)),
		bounds.Min.Y+int(math.Floor(y0)),
		bounds.Min.X+int(math.Round(x1)),
		bounds.Min.Y+int(math.Round(y1)),
	).Intersect(bounds)
	if rect.Empty() {
		return image.Rectangle{}, false
	}
	return rect, true
}

// SelectAvatar returns the avatar path to keep for a person. When existing
// is set it is returned untouched; otherwise the face region of photoPath is
// cut out, squared to 200x200 and stored as avatars/avatar_<personID>.jpg.
func (a *AvatarSelector) SelectAvatar(photoPath string, box models.BoundingBox, personID string, existing *string) (string, error) {
	if existing != nil && *existing != "" {
		return *existing, nil
	}

	img, err := imaging.Open(photoPath, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open photo for avatar: %w", err)
	}
	rect, ok := avatarCrop(img.Bounds(), box)
	if !ok {
		return "", fmt.Errorf("face box %+v lies outside the %dx%d photo", box, img.Bounds().Dx(), img.Bounds().Dy())
	}

	data, err := coverJPEG(imaging.Crop(img, rect), AvatarSize, AvatarJpegQuality)
	if err != nil {
		return "", err
	}
	rel, err := a.store.Save(AssetTypeAvatar, "", AvatarFilename(personID), bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to save avatar: %w", err)
	}
	log.Printf("avatar: created %s for person %s", rel, personID)
	return rel, nil
}
