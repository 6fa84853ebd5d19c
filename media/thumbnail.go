package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// ErrNoThumbnail means not even the placeholder could be produced.
var ErrNoThumbnail = errors.New("unsupported or corrupt source")

// ConverterConfig wires the external tools used by the raw chain.
type ConverterConfig struct {
	RawConverter       string // e.g. dcraw
	SecondaryConverter string // e.g. ImageMagick convert
	Runner             CommandRunner
	Probe              Prober // availability of RawConverter
}

// ThumbnailPipeline turns an uploaded photo into a square JPEG thumbnail.
// It always produces something: when every extraction strategy fails a
// placeholder is written instead.
type ThumbnailPipeline struct {
	store    Store
	direct   Strategy
	rawChain []Strategy
}

func NewThumbnailPipeline(store Store, cfg ConverterConfig) *ThumbnailPipeline {
	if cfg.RawConverter == "" {
		cfg.RawConverter = "dcraw"
	}
	if cfg.Probe == nil {
		cfg.Probe = NewToolProbe(cfg.RawConverter, cfg.Runner)
	}

	chain := []Strategy{embeddedPreviewStrategy{}}
	if cfg.Runner != nil {
		chain = append(chain,
			&converterPreviewStrategy{tool: cfg.RawConverter, runner: cfg.Runner, probe: cfg.Probe},
			&converterDecodeStrategy{tool: cfg.RawConverter, runner: cfg.Runner, probe: cfg.Probe},
			&transcodeStrategy{tool: cfg.RawConverter, secondary: cfg.SecondaryConverter, runner: cfg.Runner, probe: cfg.Probe},
		)
	}

	return &ThumbnailPipeline{
		store:    store,
		direct:   directStrategy{},
		rawChain: chain,
	}
}

// GenerateThumbnail writes thumbnails/thumb_<displayName> and returns that
// relative path.
func (p *ThumbnailPipeline) GenerateThumbnail(ctx context.Context, sourcePath, displayName string) (string, error) {
	return p.generate(ctx, sourcePath, displayName, "")
}

// GenerateEventThumbnail writes the thumbnail inside an event folder,
// events/<sanitized event>/thumbnails/thumb_<displayName>.
func (p *ThumbnailPipeline) GenerateEventThumbnail(ctx context.Context, sourcePath, displayName, eventName string) (string, error) {
	if eventName == "" {
		return "", fmt.Errorf("event name is required")
	}
	return p.generate(ctx, sourcePath, displayName, eventName)
}

// strategiesFor orders the strategies for a source. Non-raw files try a
// direct decode first and fall back to the raw chain in case the
// extension lied.
func (p *ThumbnailPipeline) strategiesFor(src Source) []Strategy {
	if IsRawFile(src.Path) || IsRawFile(src.Name) {
		return p.rawChain
	}
	return append([]Strategy{p.direct}, p.rawChain...)
}

func (p *ThumbnailPipeline) inspect(sourcePath, displayName string) Source {
	src := Source{Path: sourcePath, Name: displayName}
	if f, err := os.Open(sourcePath); err == nil {
		src.Orientation = readOrientation(f)
		f.Close()
	}
	return src
}

func (p *ThumbnailPipeline) generate(ctx context.Context, sourcePath, displayName, eventName string) (string, error) {
	if displayName == "" {
		displayName = filepath.Base(sourcePath)
	}
	src := p.inspect(sourcePath, displayName)

	for _, s := range p.strategiesFor(src) {
		if ctx.Err() != nil {
			log.Printf("thumbnail: %s: context done, skipping remaining strategies", displayName)
			break
		}
		if !s.Applicable(ctx, src) {
			continue
		}
		data, err := s.Extract(ctx, src)
		if err != nil {
			log.Printf("thumbnail: %s: strategy %s failed: %v", displayName, s.Name(), err)
			continue
		}
		out, err := normalizeThumbnail(data, src.Orientation)
		if err != nil {
			log.Printf("thumbnail: %s: strategy %s output not usable: %v", displayName, s.Name(), err)
			continue
		}
		rel, err := p.write(displayName, eventName, out)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrNoThumbnail, err)
		}
		log.Printf("thumbnail: %s: generated via %s", displayName, s.Name())
		return rel, nil
	}

	log.Printf("thumbnail: %s: no strategy succeeded, writing placeholder", displayName)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, renderPlaceholder(displayName), imaging.JPEG, imaging.JPEGQuality(ThumbnailJpegQuality)); err != nil {
		return "", fmt.Errorf("%w: placeholder encoding failed: %v", ErrNoThumbnail, err)
	}
	rel, err := p.write(displayName, eventName, buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoThumbnail, err)
	}
	return rel, nil
}

func (p *ThumbnailPipeline) write(displayName, eventName string, data []byte) (string, error) {
	filename := ThumbnailFilename(displayName)
	if eventName == "" {
		return p.store.Save(AssetTypeThumbnail, "", filename, bytes.NewReader(data))
	}
	dir := filepath.Join(SanitizeFolderName(eventName), "thumbnails")
	return p.store.Save(AssetTypeEvent, dir, filename, bytes.NewReader(data))
}
