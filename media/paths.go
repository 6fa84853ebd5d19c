package media

import (
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

const maxFolderNameLength = 100

var (
	illegalFolderChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedSpace      = regexp.MustCompile(`\s+`)
)

// SanitizeFolderName turns a free-form event name into a safe directory
// name: reserved characters removed, whitespace collapsed, at most 100
// characters.
func SanitizeFolderName(name string) string {
	name = illegalFolderChars.ReplaceAllString(name, "")
	name = repeatedSpace.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if r := []rune(name); len(r) > maxFolderNameLength {
		name = strings.TrimSpace(string(r[:maxFolderNameLength]))
	}
	if name == "" || name == "." || name == ".." {
		return "untitled"
	}
	return name
}

// ThumbnailFilename is the stored name of a thumbnail for displayName.
func ThumbnailFilename(displayName string) string {
	return "thumb_" + filepath.Base(displayName)
}

// ThumbnailPath returns the deterministic relative thumbnail location.
// An empty event name selects the flat layout.
func ThumbnailPath(displayName, eventName string) string {
	if eventName == "" {
		return path.Join(StandardLayout[AssetTypeThumbnail], ThumbnailFilename(displayName))
	}
	return path.Join(StandardLayout[AssetTypeEvent], SanitizeFolderName(eventName), "thumbnails", ThumbnailFilename(displayName))
}

// AvatarFilename is the stored name of a person's avatar.
func AvatarFilename(personID string) string {
	return "avatar_" + filepath.Base(personID) + ".jpg"
}
