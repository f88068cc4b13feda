// Package render turns an uploaded rate confirmation into ordered page images.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/ratecon-tracker/constants"
	"github.com/joseph-ayodele/ratecon-tracker/internal/common"
	"github.com/joseph-ayodele/ratecon-tracker/internal/entity"
)

type Config struct {
	Pdftoppm      string  // path to pdftoppm
	HeicConverter string  // heif-convert | magick | sips
	Scale         float64 // multiple of the 72 DPI nominal resolution, at least 2
	MaxPages      int
	MaxPDFBytes   int64
	MaxImageBytes int64
	TmpDir        string // "" uses os.TempDir
	Timeout       time.Duration
}

// Renderer rasterises documents. It keeps no state between calls.
type Renderer struct {
	cfg        Config
	runner     Runner
	countPages func(path string) (int, error)
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return NewWithRunner(cfg, execRunner{logger: logger}, logger)
}

// NewWithRunner is New with a caller-supplied command runner.
func NewWithRunner(cfg Config, runner Runner, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.HeicConverter == "" {
		cfg.HeicConverter = "magick"
	}
	if cfg.Scale < constants.MinRenderScale {
		cfg.Scale = constants.DefaultRenderScale
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = constants.DefaultMaxPages
	}
	if cfg.MaxPDFBytes <= 0 {
		cfg.MaxPDFBytes = constants.DefaultMaxPDFBytes
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = constants.DefaultMaxImageBytes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.DefaultRenderTimeout
	}
	return &Renderer{cfg: cfg, runner: runner, countPages: pdfPageCount, logger: logger}
}

// Render produces the document's pages in source order. Oversize, empty and
// unsupported uploads fail with common.ErrInvalidInput; anything that cannot
// be decoded, or takes longer than the configured timeout, fails with
// *common.DocumentRenderError. No pages are returned with an error.
func (r *Renderer) Render(ctx context.Context, doc entity.UploadedDocument) (*Pages, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", common.ErrInvalidInput)
	}
	mediaType := DetectMediaType(doc)

	var (
		pages []entity.RenderedPage
		err   error
	)
	switch {
	case constants.IsPDF(mediaType):
		if int64(len(doc.Data)) > r.cfg.MaxPDFBytes {
			return nil, fmt.Errorf("%w: pdf is %d bytes; limit is %d", common.ErrInvalidInput, len(doc.Data), r.cfg.MaxPDFBytes)
		}
		pages, err = r.withTempDir(func(dir string) ([]entity.RenderedPage, error) {
			return r.renderPDF(ctx, doc, dir)
		})
	case constants.IsHEIC(mediaType):
		if int64(len(doc.Data)) > r.cfg.MaxImageBytes {
			return nil, fmt.Errorf("%w: image is %d bytes; limit is %d", common.ErrInvalidInput, len(doc.Data), r.cfg.MaxImageBytes)
		}
		pages, err = r.withTempDir(func(dir string) ([]entity.RenderedPage, error) {
			return r.renderHEIC(ctx, doc, dir)
		})
	case constants.IsImage(mediaType):
		if int64(len(doc.Data)) > r.cfg.MaxImageBytes {
			return nil, fmt.Errorf("%w: image is %d bytes; limit is %d", common.ErrInvalidInput, len(doc.Data), r.cfg.MaxImageBytes)
		}
		pages, err = renderImage(doc.Data, mediaType)
	default:
		return nil, fmt.Errorf("%w: unsupported media type %q", common.ErrInvalidInput, mediaType)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("render.ok",
		"media_type", mediaType,
		"pages", len(pages),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &Pages{pages: pages}, nil
}

func (r *Renderer) withTempDir(fn func(dir string) ([]entity.RenderedPage, error)) ([]entity.RenderedPage, error) {
	dir, err := os.MkdirTemp(r.cfg.TmpDir, "ratecon-render-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("failed to remove temp dir", "path", path, "error", err)
		}
	}(dir)
	return fn(dir)
}

func (r *Renderer) renderHEIC(ctx context.Context, doc entity.UploadedDocument, dir string) ([]entity.RenderedPage, error) {
	in := filepath.Join(dir, "source.heic")
	if err := os.WriteFile(in, doc.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write temp image: %w", err)
	}
	out, err := convertHEICtoPNG(ctx, r.runner, r.cfg.HeicConverter, in, dir)
	if err != nil {
		return nil, renderFailure(0, "heic conversion", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		return nil, &common.DocumentRenderError{Reason: "heic conversion", Err: err}
	}
	return renderImage(data, constants.MediaTypePNG)
}

// renderFailure wraps a converter error. A canceled caller is passed through
// untouched; an expired render deadline is reported as a timeout.
func renderFailure(page int, reason string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		reason = "render timed out"
	}
	return &common.DocumentRenderError{Page: page, Reason: reason, Err: err}
}

// renderImage checks that data decodes as the claimed raster and wraps it as page 1.
func renderImage(data []byte, mediaType string) ([]entity.RenderedPage, error) {
	if _, err := decodeConfig(data); err != nil {
		return nil, &common.DocumentRenderError{Reason: "unreadable image", Err: err}
	}
	return []entity.RenderedPage{{Index: 1, MediaType: mediaType, Data: data}}, nil
}

func decodeConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, err
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return image.Config{}, fmt.Errorf("image has no pixels")
	}
	return cfg, nil
}

// DetectMediaType trusts a declared accepted media type, then the file
// extension, then content sniffing.
func DetectMediaType(doc entity.UploadedDocument) string {
	if mt := constants.NormalizeMediaType(doc.MediaType); constants.IsPDF(mt) || constants.IsImage(mt) {
		return mt
	}
	if mt, ok := constants.MediaTypeForExt(filepath.Ext(doc.Filename)); ok {
		return mt
	}
	return constants.NormalizeMediaType(http.DetectContentType(doc.Data))
}
