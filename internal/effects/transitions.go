package effects

import (
	"fmt"
	"image"
	"math"
	"slices"

	"golang.org/x/image/math/f64"

	"montage/internal/timeline"
)

type blendFunc func(a, b *image.RGBA, p float64) *image.RGBA

// Transitions implements TransitionProvider.
type Transitions struct {
	blends map[string]blendFunc
}

// NewTransitions returns the built-in transition provider.
func NewTransitions() *Transitions {
	return &Transitions{blends: map[string]blendFunc{
		"fade":      mix,
		"crossfade": mix,
		"dissolve":  dissolve,
		"wipe":      wipe,
		"slide":     slide,
		"flip":      flip,
		"zoom":      zoomBlend,
	}}
}

// Supports reports whether kind is implemented.
func (t *Transitions) Supports(kind string) bool {
	_, ok := t.blends[kind]
	return ok
}

// Apply blends across the boundary. While the outgoing tail plays, the
// incoming side holds its first frame; while the incoming head plays, the
// outgoing side holds its last frame. A missing side is transparent, which
// reveals the timeline background.
func (t *Transitions) Apply(tail, head []*image.RGBA, tr timeline.Transition) ([]*image.RGBA, error) {
	blend, ok := t.blends[tr.Type]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTransition, tr.Type)
	}
	ease, err := easing(tr.Easing)
	if err != nil {
		return nil, err
	}
	frames := slices.Concat(tail, head)
	if len(frames) == 0 {
		return nil, nil
	}
	rect := frames[0].Rect
	for _, f := range frames {
		if f == nil || f.Rect != rect {
			return nil, ErrFrameMismatch
		}
	}
	blank := image.NewRGBA(rect)

	n := len(tail)
	total := len(frames)
	out := make([]*image.RGBA, total)
	for k := range total {
		var a, b *image.RGBA
		switch {
		case len(tail) == 0:
			a, b = blank, head[k]
		case len(head) == 0:
			a, b = tail[k], blank
		case k < n:
			a, b = tail[k], head[0]
		default:
			a, b = tail[n-1], head[k-n]
		}
		p := ease((float64(k) + 0.5) / float64(total))
		out[k] = blend(a, b, p)
	}
	return out, nil
}

func easing(name string) (func(float64) float64, error) {
	switch name {
	case "", "linear":
		return func(p float64) float64 { return p }, nil
	case "ease-in", "ease_in":
		return func(p float64) float64 { return p * p }, nil
	case "ease-out", "ease_out":
		return func(p float64) float64 { return 1 - (1-p)*(1-p) }, nil
	case "ease-in-out", "ease_in_out":
		return func(p float64) float64 { return p * p * (3 - 2*p) }, nil
	}
	return nil, fmt.Errorf("unknown easing %q", name)
}

func mix(a, b *image.RGBA, p float64) *image.RGBA {
	dst := image.NewRGBA(a.Rect)
	for i := range dst.Pix {
		dst.Pix[i] = uint8(float64(a.Pix[i])*(1-p) + float64(b.Pix[i])*p + 0.5)
	}
	return dst
}

func dissolve(a, b *image.RGBA, p float64) *image.RGBA {
	dst := image.NewRGBA(a.Rect)
	w := a.Rect.Dx()
	for y := 0; y < a.Rect.Dy(); y++ {
		for x := 0; x < w; x++ {
			src := a
			if noise(uint32(x), uint32(y), 7) < p {
				src = b
			}
			o := y*a.Stride + x*4
			copy(dst.Pix[o:o+4], src.Pix[o:o+4])
		}
	}
	return dst
}

func wipe(a, b *image.RGBA, p float64) *image.RGBA {
	dst := image.NewRGBA(a.Rect)
	edge := int(p * float64(a.Rect.Dx()))
	for y := 0; y < a.Rect.Dy(); y++ {
		o := y * a.Stride
		copy(dst.Pix[o:o+edge*4], b.Pix[o:o+edge*4])
		copy(dst.Pix[o+edge*4:o+a.Rect.Dx()*4], a.Pix[o+edge*4:o+a.Rect.Dx()*4])
	}
	return dst
}

// slide pushes the outgoing frame left while the incoming one enters from
// the right.
func slide(a, b *image.RGBA, p float64) *image.RGBA {
	dst := image.NewRGBA(a.Rect)
	w := a.Rect.Dx()
	shift := int(p * float64(w))
	for y := 0; y < a.Rect.Dy(); y++ {
		o := y * a.Stride
		copy(dst.Pix[o:o+(w-shift)*4], a.Pix[o+shift*4:o+w*4])
		copy(dst.Pix[o+(w-shift)*4:o+w*4], b.Pix[o:o+shift*4])
	}
	return dst
}

// flip squeezes the outgoing frame to a vertical line, then opens the
// incoming one from it.
func flip(a, b *image.RGBA, p float64) *image.RGBA {
	src, k := a, 1-2*p
	if p >= 0.5 {
		src, k = b, 2*p-1
	}
	k = math.Max(k, 1e-3)
	cx := float64(a.Rect.Dx()) / 2
	return transformFrame(src, f64.Aff3{k, 0, cx * (1 - k), 0, 1, 0})
}

// zoomBlend pushes into the outgoing frame while fading to the incoming one.
func zoomBlend(a, b *image.RGBA, p float64) *image.RGBA {
	cx := float64(a.Rect.Dx()) / 2
	cy := float64(a.Rect.Dy()) / 2
	ka := 1 + p
	kb := 2 - p
	za := transformFrame(a, f64.Aff3{ka, 0, cx * (1 - ka), 0, ka, cy * (1 - ka)})
	zb := transformFrame(b, f64.Aff3{kb, 0, cx * (1 - kb), 0, kb, cy * (1 - kb)})
	return mix(za, zb, p)
}
