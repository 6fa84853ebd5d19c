package media

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Store saves and removes generated assets below a single storage root.
// Paths handed out and accepted are relative to that root, slash separated.
type Store interface {
	// Save writes data to <assetType dir>/<relativeDirHint>/<filename>,
	// replacing any previous file atomically, and returns the relative path.
	Save(assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error)
	// Delete removes an asset; a missing file is not an error.
	Delete(relativePath string) error
	// GetFullPath returns the absolute path for a relative asset path.
	GetFullPath(relativePath string) (string, error)
	// Exists reports whether a relative asset path points at a file.
	Exists(relativePath string) bool
	// EnsureDir makes sure an asset type directory exists.
	EnsureDir(assetType AssetType) (string, error)
}

// LocalStorage implements Store on the local filesystem.
type LocalStorage struct {
	basePath string

	mu       sync.Mutex
	typeDirs map[AssetType]string // absolute directory per asset type
}

// NewLocalStorage creates the storage root and resolves one subdirectory
// per asset type, refusing any that would escape the root.
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}
	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	dirs := make(map[AssetType]string, len(subDirs))
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !within(absBasePath, fullPath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		dirs[assetType] = fullPath
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{basePath: absBasePath, typeDirs: dirs}, nil
}

// StandardLayout is the directory name used for each asset type.
var StandardLayout = map[AssetType]string{
	AssetTypeOriginal:  "originals",
	AssetTypeThumbnail: "thumbnails",
	AssetTypeAvatar:    "avatars",
	AssetTypeEvent:     "events",
}

// within reports whether target is root itself or below it.
func within(root, target string) bool {
	target = filepath.Clean(target)
	return target == root || strings.HasPrefix(target, root+string(os.PathSeparator))
}

func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

func (ls *LocalStorage) typeDir(assetType AssetType) (string, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	dirPath, ok := ls.typeDirs[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return dirPath, nil
}

func (ls *LocalStorage) EnsureDir(assetType AssetType) (string, error) {
	dirPath, err := ls.typeDir(assetType)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return "", fmt.Errorf("failed to ensure directory '%s': %w", dirPath, err)
	}
	return dirPath, nil
}

func (ls *LocalStorage) Save(assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error) {
	if filename == "" || filename != filepath.Base(filename) {
		return "", fmt.Errorf("invalid asset filename '%s'", filename)
	}
	baseAssetDir, err := ls.EnsureDir(assetType)
	if err != nil {
		return "", err
	}

	targetDir := baseAssetDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseAssetDir, relativeDirHint)
		if !within(baseAssetDir, targetDir) {
			return "", fmt.Errorf("invalid relative directory hint '%s'", relativeDirHint)
		}
		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return "", fmt.Errorf("failed to create sub-directory '%s': %w", targetDir, err)
		}
	}
	fullSavePath := filepath.Join(targetDir, filename)

	// write next to the target and rename so readers never see a partial file
	tmp, err := os.CreateTemp(targetDir, "."+filename+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file in '%s': %w", targetDir, err)
	}
	tmpPath := tmp.Name()
	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to flush '%s': %w", fullSavePath, err)
	}
	if err := os.Rename(tmpPath, fullSavePath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to move asset into '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}
	log.Printf("media.store: Saved asset to %s", fullSavePath)
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Delete(relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	log.Printf("media.store: Deleted asset %s", fullPath)
	return nil
}

func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	if relativePath == "" {
		return "", fmt.Errorf("empty asset path")
	}
	fullPath := filepath.Join(ls.basePath, filepath.FromSlash(relativePath))
	if !within(ls.basePath, fullPath) || fullPath == ls.basePath {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}
	return fullPath, nil
}

func (ls *LocalStorage) Exists(relativePath string) bool {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && info.Mode().IsRegular()
}
