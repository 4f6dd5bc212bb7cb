package ocr

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/anrath/SquadSpotifyWrapped/internal/models"
	"github.com/anrath/SquadSpotifyWrapped/internal/shared"
)

// fakeTesseract swaps the tesseract binary for this test binary running the
// helper process in mode, and records the arguments of every invocation.
func fakeTesseract(t *testing.T, mode string) *[][]string {
	t.Helper()

	var (
		mu    sync.Mutex
		calls [][]string
	)
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		mu.Lock()
		calls = append(calls, append([]string{name}, args...))
		mu.Unlock()

		cmd := exec.CommandContext(ctx, os.Args[0], append([]string{"-test.run=TestHelperProcess", "--"}, args...)...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "OCR_HELPER_MODE="+mode)
		return cmd
	}
	t.Cleanup(func() {
		commandContext = original
	})
	return &calls
}

// writePNG writes a w×h image whose left half is black and right half white.
func writePNG(t *testing.T, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			var c color.Color = color.White
			if x < w/2 {
				c = color.Black
			}
			img.Set(x, y, c)
		}
	}

	path := filepath.Join(t.TempDir(), "wrapped.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		r := New()
		if r.binary != DefaultBinary || r.lang != DefaultLang {
			t.Errorf("unexpected defaults %q %q", r.binary, r.lang)
		}
	})

	t.Run("from config", func(t *testing.T) {
		r := FromConfig(shared.OCRConfig{Tesseract: "/opt/tesseract", Lang: "deu"}, nil)
		if r.binary != "/opt/tesseract" || r.lang != "deu" {
			t.Errorf("config not applied: %q %q", r.binary, r.lang)
		}
		if r.logger == nil {
			t.Error("expected a default logger")
		}
	})
}

func TestRecognize(t *testing.T) {
	ctx := context.Background()

	t.Run("whole image", func(t *testing.T) {
		calls := fakeTesseract(t, "size")
		path := writePNG(t, 40, 20)

		text, err := New(WithLang("eng")).Recognize(ctx, path, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "40x20 dark\n" {
			t.Errorf("unexpected text %q", text)
		}

		args := (*calls)[0]
		want := []string{DefaultBinary, path, "stdout", "-l", "eng"}
		if fmt.Sprint(args) != fmt.Sprint(want) {
			t.Errorf("args = %v, want %v", args, want)
		}
	})

	t.Run("region", func(t *testing.T) {
		calls := fakeTesseract(t, "size")
		path := writePNG(t, 40, 20)

		text, err := New().Recognize(ctx, path, &Region{Min: image.Pt(20, 0), Max: image.Pt(40, 10)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != "20x10 light\n" {
			t.Errorf("unexpected text %q", text)
		}

		cropPath := (*calls)[0][1]
		if cropPath == path {
			t.Error("expected recognition to run on a cropped copy")
		}
		if _, err := os.Stat(cropPath); !os.IsNotExist(err) {
			t.Error("expected cropped copy to be removed")
		}
	})

	t.Run("region outside image", func(t *testing.T) {
		fakeTesseract(t, "size")
		path := writePNG(t, 40, 20)

		_, err := New().Recognize(ctx, path, &Region{Min: image.Pt(100, 100), Max: image.Pt(200, 200)})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("requires path", func(t *testing.T) {
		if _, err := New().Recognize(ctx, "", nil); !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("undecodable image", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "notes.png")
		if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
			t.Fatal(err)
		}

		_, err := New().Recognize(ctx, path, &Region{Max: image.Pt(1, 1)})
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("tesseract failure", func(t *testing.T) {
		fakeTesseract(t, "failure")
		path := writePNG(t, 4, 4)

		_, err := New().Recognize(ctx, path, nil)
		if !errors.Is(err, shared.ErrExternalService) {
			t.Fatalf("expected ErrExternalService, got %v", err)
		}
		if got := err.Error(); !strings.Contains(got, "missing language data") {
			t.Errorf("expected stderr in error, got %q", got)
		}
	})

	t.Run("canceled", func(t *testing.T) {
		fakeTesseract(t, "size")
		path := writePNG(t, 4, 4)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := New().Recognize(cctx, path, nil); !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})
}

func TestExtractProfileText(t *testing.T) {
	ctx := context.Background()

	t.Run("combined", func(t *testing.T) {
		calls := fakeTesseract(t, "size")
		path := writePNG(t, 40, 20)

		raw, err := New().ExtractProfileText(ctx, path, models.LayoutCombined)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if raw.Layout != models.LayoutCombined || raw.Text != "40x20 dark\n" || raw.Right != "" {
			t.Errorf("unexpected extraction %+v", raw)
		}
		if len(*calls) != 1 {
			t.Errorf("expected one tesseract run, got %d", len(*calls))
		}
	})

	t.Run("dual", func(t *testing.T) {
		calls := fakeTesseract(t, "size")
		path := writePNG(t, 40, 20)

		raw, err := New().ExtractProfileText(ctx, path, models.LayoutDual)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if raw.Text != "20x15 dark\n" || raw.Right != "20x15 light\n" {
			t.Errorf("unexpected extraction %+v", raw)
		}
		if len(*calls) != 2 {
			t.Errorf("expected two tesseract runs, got %d", len(*calls))
		}
	})

	t.Run("unknown layout", func(t *testing.T) {
		_, err := New().ExtractProfileText(ctx, "x.png", models.Layout(9))
		if !errors.Is(err, shared.ErrValidation) {
			t.Errorf("expected ErrValidation, got %v", err)
		}
	})
}

func TestDualRegions(t *testing.T) {
	left, right := DualRegions(image.Rect(0, 0, 1081, 1920))

	if left != image.Rect(0, 0, 540, 1440) {
		t.Errorf("unexpected left region %v", left)
	}
	if right != image.Rect(540, 0, 1080, 1440) {
		t.Errorf("unexpected right region %v", right)
	}
}

// TestHelperProcess stands in for tesseract. In "size" mode it prints the
// input image's dimensions and whether its top-left pixel is dark.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}

	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}

	switch os.Getenv("OCR_HELPER_MODE") {
	case "size":
		f, err := os.Open(args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		img, _, err := image.Decode(f)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(2)
		}
		b := img.Bounds()
		shade := "light"
		if r, _, _, _ := img.At(b.Min.X, b.Min.Y).RGBA(); r < 0x8000 {
			shade = "dark"
		}
		fmt.Printf("%dx%d %s\n", b.Dx(), b.Dy(), shade)
		os.Exit(0)
	case "failure":
		fmt.Fprintln(os.Stderr, "missing language data")
		os.Exit(1)
	default:
		os.Exit(0)
	}
}
