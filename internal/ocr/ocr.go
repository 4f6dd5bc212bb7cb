// Package ocr extracts text from "Top Artists / Top Songs" screenshots with
// the tesseract command-line engine.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

const (
	DefaultBinary = "tesseract"
	DefaultLang   = "eng"
)

var commandContext = exec.CommandContext

// Region is a crop rectangle in source image pixels.
type Region = image.Rectangle

// Option configures a [Recognizer].
type Option func(*Recognizer)

// WithBinary overrides the tesseract executable.
func WithBinary(binary string) Option {
	return func(r *Recognizer) {
		if binary != "" {
			r.binary = binary
		}
	}
}

// WithLang sets the tesseract language pack.
func WithLang(lang string) Option {
	return func(r *Recognizer) {
		if lang != "" {
			r.lang = lang
		}
	}
}

// WithLogger sets the logger used for recognition diagnostics.
func WithLogger(l *log.Logger) Option {
	return func(r *Recognizer) {
		if l != nil {
			r.logger = l
		}
	}
}

// Recognizer wraps the tesseract CLI.
type Recognizer struct {
	binary string
	lang   string
	logger *log.Logger
}

// New constructs a Recognizer using defaults.
func New(opts ...Option) *Recognizer {
	r := &Recognizer{binary: DefaultBinary, lang: DefaultLang, logger: shared.NewLogger(nil)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FromConfig builds a Recognizer from the ocr config section.
func FromConfig(cfg shared.OCRConfig, logger *log.Logger) *Recognizer {
	return New(WithBinary(cfg.Tesseract), WithLang(cfg.Lang), WithLogger(logger))
}

// Recognize returns the text tesseract reads from imagePath. A non-nil region
// restricts recognition to that rectangle.
func (r *Recognizer) Recognize(ctx context.Context, imagePath string, region *Region) (string, error) {
	if imagePath == "" {
		return "", fmt.Errorf("%w: image path required", shared.ErrValidation)
	}

	target := imagePath
	if region != nil {
		img, err := decodeFile(imagePath)
		if err != nil {
			return "", err
		}
		cropped, err := writeCrop(img, *region)
		if err != nil {
			return "", err
		}
		defer os.Remove(cropped)
		target = cropped
	}

	return r.run(ctx, target)
}

// ExtractProfileText runs recognition the way each layout needs it: the
// combined layout reads the whole image, the dual layout reads the left and
// right halves of the top three quarters separately.
func (r *Recognizer) ExtractProfileText(ctx context.Context, imagePath string, layout models.Layout) (models.RawExtraction, error) {
	switch layout {
	case models.LayoutCombined:
		text, err := r.Recognize(ctx, imagePath, nil)
		if err != nil {
			return models.RawExtraction{}, err
		}
		return models.RawExtraction{Text: text, Layout: layout}, nil
	case models.LayoutDual:
		img, err := decodeFile(imagePath)
		if err != nil {
			return models.RawExtraction{}, err
		}
		left, right := DualRegions(img.Bounds())

		var texts [2]string
		for i, region := range []Region{left, right} {
			path, err := writeCrop(img, region)
			if err != nil {
				return models.RawExtraction{}, err
			}
			texts[i], err = r.run(ctx, path)
			os.Remove(path)
			if err != nil {
				return models.RawExtraction{}, err
			}
		}
		return models.RawExtraction{Text: texts[0], Right: texts[1], Layout: layout}, nil
	default:
		return models.RawExtraction{}, fmt.Errorf("%w: unknown layout %v", shared.ErrValidation, layout)
	}
}

// DualRegions splits the top 75% of bounds into left and right halves.
func DualRegions(bounds image.Rectangle) (left, right Region) {
	half := bounds.Dx() / 2
	height := bounds.Dy() * 3 / 4
	o := bounds.Min
	left = image.Rect(o.X, o.Y, o.X+half, o.Y+height)
	right = image.Rect(o.X+half, o.Y, o.X+2*half, o.Y+height)
	return left, right
}

func (r *Recognizer) run(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := commandContext(ctx, r.binary, path, "stdout", "-l", r.lang) //nolint:gosec
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", fmt.Errorf("%w: tesseract: %v", shared.ErrTimeout, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: tesseract exited with %d: %s",
				shared.ErrExternalService, exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("%w: run %s: %v", shared.ErrExternalService, r.binary, err)
	}

	text := stdout.String()
	r.logger.Debug("recognized image", "path", path, "chars", len(text))
	return text, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open image: %v", shared.ErrValidation, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode image %s: %v", shared.ErrValidation, path, err)
	}
	return img, nil
}

// writeCrop copies region of img into a temporary PNG and returns its path.
func writeCrop(img image.Image, region Region) (string, error) {
	region = region.Intersect(img.Bounds())
	if region.Empty() {
		return "", fmt.Errorf("%w: crop region outside image", shared.ErrValidation)
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Dx(), region.Dy()))
	draw.Draw(dst, dst.Bounds(), img, region.Min, draw.Src)

	f, err := os.CreateTemp("", "squadwrap-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create crop file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, dst); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to encode crop: %w", err)
	}
	return f.Name(), nil
}
