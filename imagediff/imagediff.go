// Package imagediff scores the visual difference between two stored
// screenshots as a percentage.
//
// Both images are first scaled onto a fixed-size thumbnail, which makes the
// comparison tolerant of the height drift full-page captures have from run
// to run, and bounds the work per comparison regardless of capture size.
// The score is the share of thumbnail pixels whose color moved beyond a
// small per-channel tolerance.
package imagediff

import (
	"fmt"
	"image"
	"os"

	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// thumbSize is the edge length of the comparison grid.
const thumbSize = 256

// tolerance is the per-channel wiggle room in 16-bit color space. Rescaling
// two almost-identical captures leaves interpolation noise well under this;
// real content shifts land far over it.
const tolerance uint32 = 1 << 10

// Compare loads two screenshots and returns their difference in [0,100].
// 0 means visually identical, 100 means every sampled pixel moved. The
// signature matches what the snapshot differ plugs in for visual scoring.
func Compare(oldPath, newPath string) (float64, error) {
	oldImg, err := loadImage(oldPath)
	if err != nil {
		return 0, fmt.Errorf("load old screenshot: %w", err)
	}
	newImg, err := loadImage(newPath)
	if err != nil {
		return 0, fmt.Errorf("load new screenshot: %w", err)
	}
	return Score(oldImg, newImg), nil
}

// Score computes the difference between two decoded images in [0,100].
func Score(oldImg, newImg image.Image) float64 {
	a := thumbnail(oldImg)
	b := thumbnail(newImg)

	differing := 0
	for y := 0; y < thumbSize; y++ {
		for x := 0; x < thumbSize; x++ {
			if !colorsClose(a, b, x, y) {
				differing++
			}
		}
	}
	return 100 * float64(differing) / float64(thumbSize*thumbSize)
}

func thumbnail(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, thumbSize, thumbSize))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

func colorsClose(a, b *image.RGBA, x, y int) bool {
	r1, g1, b1, a1 := a.At(x, y).RGBA()
	r2, g2, b2, a2 := b.At(x, y).RGBA()
	return absDiff(r1, r2) <= tolerance &&
		absDiff(g1, g2) <= tolerance &&
		absDiff(b1, b2) <= tolerance &&
		absDiff(a1, a2) <= tolerance
}

func absDiff(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}

func loadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	return img, nil
}
