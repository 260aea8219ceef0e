package imagediff

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// solid builds a w×h image filled with one color.
func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// writePNG stores an image under dir and returns its path.
func writePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", name, err)
	}
	return path
}

var (
	red  = color.RGBA{R: 255, A: 255}
	blue = color.RGBA{B: 255, A: 255}
)

func TestScore_Identical(t *testing.T) {
	// WHAT: Two identical images score 0.
	a := solid(100, 100, red)
	b := solid(100, 100, red)
	if got := Score(a, b); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestScore_CompletelyDifferent(t *testing.T) {
	// WHAT: Images sharing no pixel color score 100.
	a := solid(100, 100, red)
	b := solid(100, 100, blue)
	if got := Score(a, b); got != 100 {
		t.Errorf("got %v, want 100", got)
	}
}

func TestScore_PartialChange(t *testing.T) {
	// WHAT: Changing half the image scores near 50.
	// WHY: The score must track the changed area, not just flag any change.
	a := solid(200, 200, red)
	b := solid(200, 200, red)
	for y := 0; y < 200; y++ {
		for x := 0; x < 100; x++ {
			b.SetRGBA(x, y, blue)
		}
	}
	got := Score(a, b)
	if got < 40 || got > 60 {
		t.Errorf("got %v, want roughly 50", got)
	}
}

func TestScore_DimensionDrift(t *testing.T) {
	// WHAT: The same content at different capture sizes scores 0.
	// WHY: Full-page screenshot height varies run to run; that alone is not
	// a visual change.
	a := solid(100, 300, red)
	b := solid(200, 650, red)
	if got := Score(a, b); got != 0 {
		t.Errorf("got %v, want 0", got)
	}
}

func TestCompare_Files(t *testing.T) {
	// WHAT: Compare reads both refs from disk and scores them.
	dir := t.TempDir()
	oldPath := writePNG(t, dir, "old.png", solid(50, 50, red))
	newPath := writePNG(t, dir, "new.png", solid(50, 50, blue))

	got, err := Compare(oldPath, newPath)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if got != 100 {
		t.Errorf("got %v, want 100", got)
	}
}

func TestCompare_MissingFile(t *testing.T) {
	// WHAT: An unreadable ref is an error, not a zero score.
	// WHY: Silent zeros would hide every visual change behind a bad path.
	dir := t.TempDir()
	oldPath := writePNG(t, dir, "old.png", solid(10, 10, red))
	if _, err := Compare(oldPath, filepath.Join(dir, "absent.png")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
