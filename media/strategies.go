package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
)

// ErrNoPreview is returned by a strategy that found nothing to extract.
var ErrNoPreview = errors.New("no preview available")

// Source describes the file a thumbnail is generated from.
type Source struct {
	Path        string
	Name        string // display name, used for the placeholder caption
	Orientation int    // EXIF orientation of the container, 0 when unknown
}

// Strategy is one way of turning a source into an encoded image that the
// normalize step can decode. Strategies are tried in order until one
// produces a usable image.
type Strategy interface {
	Name() string
	Applicable(ctx context.Context, src Source) bool
	Extract(ctx context.Context, src Source) ([]byte, error)
}

func trimExt(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// readAndCheck reads an intermediate file produced by an external tool.
func readAndCheck(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s was not produced", ErrNoPreview, filepath.Base(path))
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrNoPreview, filepath.Base(path))
	}
	return data, nil
}

// directStrategy hands the original bytes straight to the normalizer.
type directStrategy struct{}

func (directStrategy) Name() string                            { return "direct" }
func (directStrategy) Applicable(context.Context, Source) bool { return true }

func (directStrategy) Extract(_ context.Context, src Source) ([]byte, error) {
	data, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source: %w", err)
	}
	return data, nil
}

// embeddedPreviewStrategy pulls the JPEG thumbnail stored in the EXIF
// block of TIFF-based raw containers.
type embeddedPreviewStrategy struct{}

func (embeddedPreviewStrategy) Name() string                            { return "embedded-exif" }
func (embeddedPreviewStrategy) Applicable(context.Context, Source) bool { return true }

func (embeddedPreviewStrategy) Extract(_ context.Context, src Source) ([]byte, error) {
	f, err := os.Open(src.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: no exif block: %v", ErrNoPreview, err)
	}
	thumb, err := x.JpegThumbnail()
	if err != nil || len(thumb) == 0 {
		return nil, fmt.Errorf("%w: no embedded jpeg", ErrNoPreview)
	}
	return thumb, nil
}

// converterPreviewStrategy asks the raw converter to dump the camera
// preview next to the source.
type converterPreviewStrategy struct {
	tool   string
	runner CommandRunner
	probe  Prober
}

func (s *converterPreviewStrategy) Name() string { return s.tool + "-preview" }

func (s *converterPreviewStrategy) Applicable(ctx context.Context, _ Source) bool {
	return s.probe.Available(ctx)
}

func (s *converterPreviewStrategy) Extract(ctx context.Context, src Source) ([]byte, error) {
	var tmp scratch
	defer tmp.cleanup()

	jpegOut := tmp.track(trimExt(src.Path) + ".thumb.jpg")
	tmp.track(trimExt(src.Path) + ".thumb.ppm")

	if _, err := s.runner.Run(ctx, s.tool, "-e", src.Path); err != nil {
		return nil, err
	}
	return readAndCheck(jpegOut)
}

// converterDecodeStrategy decodes the full raw image to a TIFF at half size
// with camera white balance and no automatic flip.
type converterDecodeStrategy struct {
	tool   string
	runner CommandRunner
	probe  Prober
}

func (s *converterDecodeStrategy) Name() string { return s.tool + "-decode" }

func (s *converterDecodeStrategy) Applicable(ctx context.Context, src Source) bool {
	// the converter would write its output over a .tiff source
	if strings.EqualFold(filepath.Ext(src.Path), ".tiff") {
		return false
	}
	return s.probe.Available(ctx)
}

func (s *converterDecodeStrategy) Extract(ctx context.Context, src Source) ([]byte, error) {
	var tmp scratch
	defer tmp.cleanup()

	tiffOut := tmp.track(trimExt(src.Path) + ".tiff")

	if _, err := s.runner.Run(ctx, s.tool, "-T", "-h", "-q", "0", "-H", "1", "-w", "-t", "0", src.Path); err != nil {
		return nil, err
	}
	return readAndCheck(tiffOut)
}

// transcodeStrategy decodes to an uncompressed PPM and has a second tool
// turn it into a TIFF the decoder understands.
type transcodeStrategy struct {
	tool      string
	secondary string
	runner    CommandRunner
	probe     Prober
}

func (s *transcodeStrategy) Name() string { return s.tool + "+" + s.secondary }

func (s *transcodeStrategy) Applicable(ctx context.Context, _ Source) bool {
	return s.secondary != "" && s.probe.Available(ctx)
}

func (s *transcodeStrategy) Extract(ctx context.Context, src Source) ([]byte, error) {
	var tmp scratch
	defer tmp.cleanup()

	ppmOut := tmp.track(src.Path + ".temp.ppm")
	tiffOut := tmp.track(src.Path + ".temp.tiff")

	ppm, err := s.runner.Run(ctx, s.tool, "-c", "-h", "-q", "0", "-H", "1", "-w", "-t", "0", src.Path)
	if err != nil {
		return nil, err
	}
	if len(ppm) == 0 {
		return nil, fmt.Errorf("%w: %s wrote no image data", ErrNoPreview, s.tool)
	}
	if err := os.WriteFile(ppmOut, ppm, 0644); err != nil {
		return nil, fmt.Errorf("failed to write intermediate %s: %w", ppmOut, err)
	}
	if _, err := s.runner.Run(ctx, s.secondary, ppmOut, tiffOut); err != nil {
		return nil, err
	}
	return readAndCheck(tiffOut)
}
