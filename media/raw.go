package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedUpload is returned by AcceptUpload for files the library
// does not take in.
var ErrUnsupportedUpload = errors.New("unsupported file type")

var rawExtensions = map[string]bool{
	".cr2": true, ".cr3": true, ".crw": true,
	".nef": true, ".nrw": true,
	".arw": true, ".srf": true, ".sr2": true,
	".dng": true,
	".raw": true, ".rwl": true, ".rw2": true,
	".orf": true,
	".raf": true,
	".pef": true, ".ptx": true,
	".srw": true,
	".dcr": true, ".k25": true, ".kdc": true,
	".mrw": true,
	".x3f": true,
	".3fr": true, ".fff": true,
	".ari": true, ".bay": true, ".cap": true, ".iiq": true, ".eip": true,
	".dcs": true, ".drf": true, ".erf": true, ".mef": true, ".mos": true,
	".pxn": true, ".r3d": true, ".rwz": true,
}

// IsRawFile reports whether the filename carries a camera raw extension.
// The check is case-insensitive and never touches the file.
func IsRawFile(filename string) bool {
	return rawExtensions[strings.ToLower(filepath.Ext(filename))]
}

var allowedUploadMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/tiff": true,
	"image/bmp":  true,

	"application/octet-stream": true, // browsers send this for most raw files

	"image/x-canon-cr2":      true,
	"image/x-canon-cr3":      true,
	"image/x-canon-crw":      true,
	"image/x-nikon-nef":      true,
	"image/x-nikon-nrw":      true,
	"image/x-sony-arw":       true,
	"image/x-sony-srf":       true,
	"image/x-sony-sr2":       true,
	"image/x-adobe-dng":      true,
	"image/x-panasonic-raw":  true,
	"image/x-panasonic-rw2":  true,
	"image/x-olympus-orf":    true,
	"image/x-fuji-raf":       true,
	"image/x-pentax-pef":     true,
	"image/x-samsung-srw":    true,
	"image/x-kodak-dcr":      true,
	"image/x-kodak-k25":      true,
	"image/x-kodak-kdc":      true,
	"image/x-minolta-mrw":    true,
	"image/x-sigma-x3f":      true,
	"image/x-hasselblad-3fr": true,
	"image/x-hasselblad-fff": true,
}

// AcceptUpload validates an incoming file by declared MIME type and name.
// A generic binary MIME type is only accepted for raw extensions.
func AcceptUpload(filename, mimeType string) error {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !allowedUploadMimeTypes[mimeType] {
		return fmt.Errorf("%w: %s (%s)", ErrUnsupportedUpload, filename, mimeType)
	}
	if mimeType == "application/octet-stream" && !IsRawFile(filename) {
		return fmt.Errorf("%w: %s is not a recognized raw format", ErrUnsupportedUpload, filename)
	}
	return nil
}
