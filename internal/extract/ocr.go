package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"kyc-backend/internal/shared/apperr"
	"kyc-backend/internal/shared/metrics"
)

// Recognizer runs optical character recognition over a document.
type Recognizer interface {
	Recognize(ctx context.Context, data []byte, mimeType string) (string, error)
}

// OCRConfig controls the rasterize-and-recognize fallback.
type OCRConfig struct {
	Pdftoppm      string // binary name or absolute path; default "pdftoppm"
	Tesseract     string // binary name or absolute path; default "tesseract"
	TesseractLang string // default "eng"
	DPI           int    // default 200
	Width         int    // raster width in pixels; default 1200
	Height        int    // raster height in pixels; default 1600
	Timeout       time.Duration
	MaxConcurrent int64
	TempDir       string // parent for per-call scratch dirs; default os.TempDir()
}

// RasterOCR renders page 1 of a PDF to a JPEG and runs tesseract over it.
// Images are recognized directly. Each call works in its own scratch
// directory, which is removed before Recognize returns.
type RasterOCR struct {
	cfg    OCRConfig
	runner Runner
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewRasterOCR applies defaults to cfg. A nil runner uses ExecRunner.
func NewRasterOCR(cfg OCRConfig, runner Runner, logger *slog.Logger) *RasterOCR {
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.Width <= 0 {
		cfg.Width = 1200
	}
	if cfg.Height <= 0 {
		cfg.Height = 1600
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 2
	}
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &RasterOCR{
		cfg:    cfg,
		runner: runner,
		sem:    semaphore.NewWeighted(cfg.MaxConcurrent),
		logger: logger,
	}
}

// Recognize returns the raw OCR text. Scratch-file I/O failures are
// StorageIO errors; every other failure is an Extraction error.
func (o *RasterOCR) Recognize(ctx context.Context, data []byte, mimeType string) (string, error) {
	ctx, span := tracer.Start(ctx, "extract.ocr")
	defer span.End()

	if err := o.sem.Acquire(ctx, 1); err != nil {
		return "", apperr.Wrap(err, apperr.KindExtraction, "ocr slot unavailable")
	}
	defer o.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.OCRDuration.Observe(time.Since(start).Seconds()) }()

	dir, err := os.MkdirTemp(o.cfg.TempDir, "kyc-ocr-*")
	if err != nil {
		return "", apperr.StorageIO(err, "create ocr scratch dir")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			o.logger.Warn("ocr scratch cleanup failed", "dir", dir, "error", err)
		}
	}()

	mime := DetectMime(data, mimeType)
	span.SetAttributes(attribute.String("mime", mime))

	var image string
	switch {
	case mime == mimePDF:
		input := filepath.Join(dir, "input.pdf")
		if err := os.WriteFile(input, data, 0o600); err != nil {
			return "", apperr.StorageIO(err, "write ocr input")
		}
		image, err = o.rasterize(ctx, input, dir)
		if err != nil {
			return "", err
		}
	case strings.HasPrefix(mime, "image/"):
		image = filepath.Join(dir, "input"+imageExt(mime))
		if err := os.WriteFile(image, data, 0o600); err != nil {
			return "", apperr.StorageIO(err, "write ocr input")
		}
	default:
		return "", apperr.Newf(apperr.KindExtraction, "ocr does not support %s", mime)
	}

	// tesseract <image> stdout -l <lang>
	out, errb, err := o.runner.Run(ctx, o.cfg.Tesseract, image, "stdout", "-l", o.cfg.TesseractLang)
	if err != nil {
		return "", o.toolError("tesseract", ctx, err, errb)
	}
	return string(out), nil
}

func (o *RasterOCR) rasterize(ctx context.Context, input, dir string) (string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -f 1 -l 1 -r <dpi> -scale-to-x <w> -scale-to-y <h> -jpeg -singlefile <in.pdf> <dir/page>
	_, errb, err := o.runner.Run(ctx, o.cfg.Pdftoppm,
		"-f", "1", "-l", "1",
		"-r", strconv.Itoa(o.cfg.DPI),
		"-scale-to-x", strconv.Itoa(o.cfg.Width),
		"-scale-to-y", strconv.Itoa(o.cfg.Height),
		"-jpeg", "-singlefile",
		input, prefix,
	)
	if err != nil {
		return "", o.toolError("pdftoppm", ctx, err, errb)
	}
	image := prefix + ".jpg"
	if _, err := os.Stat(image); err != nil {
		return "", apperr.StorageIO(err, "read rasterized page")
	}
	return image, nil
}

func (o *RasterOCR) toolError(tool string, ctx context.Context, err error, stderr []byte) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperr.Wrap(ctx.Err(), apperr.KindExtraction, fmt.Sprintf("%s timed out after %s", tool, o.cfg.Timeout))
	}
	msg := strings.TrimSpace(truncate(string(stderr), 512))
	if msg == "" {
		msg = tool + " failed"
	}
	return apperr.Wrap(err, apperr.KindExtraction, msg)
}

func imageExt(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	case "image/webp":
		return ".webp"
	case "image/tiff":
		return ".tif"
	default:
		return ".img"
	}
}
