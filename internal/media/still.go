package media

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// StillExtensions lists the image formats Still can decode.
var StillExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".webp"}

// IsStillPath reports whether path has a still image extension.
func IsStillPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range StillExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Still is a decoded image shown for as long as its clip lasts.
type Still struct {
	name  string
	frame *image.RGBA
}

// OpenStill decodes the image at path.
func OpenStill(path string) (*Still, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Rect.Min != (image.Point{}) {
		b := img.Bounds()
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Rect, img, b.Min, draw.Src)
	}
	return &Still{name: path, frame: rgba}, nil
}

func (s *Still) Name() string      { return s.name }
func (s *Still) Duration() float64 { return 0 }
func (s *Still) HasVideo() bool    { return true }
func (s *Still) HasAudio() bool    { return false }
func (s *Still) Close() error      { return nil }

// Frames repeats the still image.
func (s *Still) Frames(_ context.Context, _, _ float64, count int) ([]*image.RGBA, error) {
	out := make([]*image.RGBA, count)
	for i := range out {
		out[i] = s.frame
	}
	return out, nil
}

// Audio returns silence.
func (s *Still) Audio(_ context.Context, in, out float64, sampleRate int) (AudioBuffer, error) {
	return NewSilence(sampleRate, out-in), nil
}
