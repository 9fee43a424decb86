package effects

import (
	"errors"
	"fmt"
	"image"
	"maps"
	"slices"

	"montage/internal/timeline"
)

// Parameter keys the engine sets on every filter call.
const (
	ParamTime         = "t"
	ParamClipDuration = "clip_duration"
	ParamDuration     = "duration"
)

var (
	// ErrUnknownFilter reports a filter id the provider does not implement.
	ErrUnknownFilter = errors.New("unknown filter")
	// ErrUnknownTransition reports a transition type the provider does not implement.
	ErrUnknownTransition = errors.New("unknown transition")
	// ErrFrameMismatch reports frames of differing sizes in one call.
	ErrFrameMismatch = errors.New("frame size mismatch")
)

// EffectProvider applies one filter to one frame.
type EffectProvider interface {
	Apply(frame *image.RGBA, filterID string, params timeline.FilterParams) (*image.RGBA, error)
}

// TransitionProvider blends the trailing frames of one clip with the leading
// frames of the next. Either side may be nil for a clip edge with no
// neighbor. The result must hold exactly len(tail)+len(head) frames.
type TransitionProvider interface {
	Apply(tail, head []*image.RGBA, tr timeline.Transition) ([]*image.RGBA, error)
}

// TextRenderer draws text onto a canvas in place.
type TextRenderer interface {
	RenderText(canvas *image.RGBA, content string, at timeline.Position, params timeline.FilterParams) error
}

type filterFunc func(src *image.RGBA, p timeline.FilterParams) *image.RGBA

// Builtin implements EffectProvider and TextRenderer with pure Go pixel
// operations.
type Builtin struct {
	filters map[string]filterFunc
}

// NewBuiltin returns the built-in provider.
func NewBuiltin() *Builtin {
	return &Builtin{filters: map[string]filterFunc{
		"fade_in":   fadeIn,
		"fade_out":  fadeOut,
		"blur":      blurFilter,
		"zoom":      zoomFilter,
		"rotate":    rotateFilter,
		"glow":      glowFilter,
		"tint":      tintFilter,
		"grade":     gradeFilter,
		"grayscale": grayscaleFilter,
		"sepia":     sepiaFilter,
		"posterize": posterizeFilter,
		"vignette":  vignetteFilter,
		"grain":     grainFilter,
		"letterbox": letterboxFilter,
	}}
}

// Filters lists the supported filter ids.
func (b *Builtin) Filters() []string {
	return slices.Sorted(maps.Keys(b.filters))
}

// Apply runs filterID over a copy of frame. A "duration" parameter limits
// non-fade filters to the first duration seconds of the clip.
func (b *Builtin) Apply(frame *image.RGBA, filterID string, params timeline.FilterParams) (*image.RGBA, error) {
	if frame == nil {
		return nil, fmt.Errorf("apply %s: nil frame", filterID)
	}
	fn, ok := b.filters[filterID]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFilter, filterID)
	}
	if filterID != "fade_in" && filterID != "fade_out" {
		if d := param(params, ParamDuration, 0); d > 0 && param(params, ParamTime, 0) >= d {
			return cloneFrame(frame), nil
		}
	}
	return fn(frame, params), nil
}

func param(p timeline.FilterParams, key string, fallback float64) float64 {
	if v, ok := p[key]; ok {
		return v
	}
	return fallback
}

// NewFrame allocates a transparent frame.
func NewFrame(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

func cloneFrame(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func to8(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}
