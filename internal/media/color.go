package media

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"strings"
)

// ColorSource is a flat-color video source with no audio. Placeholders for
// unresolved sources are ColorSources.
type ColorSource struct {
	name  string
	frame *image.RGBA
}

// NewColorSource returns a source filling width×height with c.
func NewColorSource(name string, c color.RGBA, width, height int) *ColorSource {
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return &ColorSource{name: name, frame: frame}
}

// IsPlaceholder reports whether h substitutes for a missing source.
func IsPlaceholder(h Handle) bool {
	return strings.HasPrefix(h.Name(), PlaceholderPrefix)
}

// PlaceholderPrefix marks placeholder handle names.
const PlaceholderPrefix = "placeholder:"

// NewPlaceholder returns the flat-color stand-in for source.
func NewPlaceholder(source string, c color.RGBA, width, height int) *ColorSource {
	return NewColorSource(PlaceholderPrefix+source, c, width, height)
}

func (s *ColorSource) Name() string      { return s.name }
func (s *ColorSource) Duration() float64 { return 0 }
func (s *ColorSource) HasVideo() bool    { return true }
func (s *ColorSource) HasAudio() bool    { return false }
func (s *ColorSource) Close() error      { return nil }

// Frames repeats the single color frame.
func (s *ColorSource) Frames(_ context.Context, _, _ float64, count int) ([]*image.RGBA, error) {
	out := make([]*image.RGBA, count)
	for i := range out {
		out[i] = s.frame
	}
	return out, nil
}

// Audio returns silence.
func (s *ColorSource) Audio(_ context.Context, in, out float64, sampleRate int) (AudioBuffer, error) {
	return NewSilence(sampleRate, out-in), nil
}
