package effects

import (
	"image"
	"math"

	"montage/internal/timeline"
)

const defaultFade = 1.0

// mapStraight applies fn to every pixel in straight (non-premultiplied)
// 0..1 space and re-premultiplies the result.
func mapStraight(src *image.RGBA, fn func(x, y int, r, g, b, a float64) (float64, float64, float64, float64)) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	w := src.Rect.Dx()
	for y := 0; y < src.Rect.Dy(); y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for x := 0; x < w; x++ {
			i := x * 4
			a := float64(row[i+3]) / 255
			if a == 0 {
				continue
			}
			r := float64(row[i]) / 255 / a
			g := float64(row[i+1]) / 255 / a
			b := float64(row[i+2]) / 255 / a
			r, g, b, a = fn(x, y, r, g, b, a)
			a = clamp01(a)
			out[i] = to8(clamp01(r) * a)
			out[i+1] = to8(clamp01(g) * a)
			out[i+2] = to8(clamp01(b) * a)
			out[i+3] = to8(a)
		}
	}
	return dst
}

// scaleAlpha multiplies every premultiplied channel by f.
func scaleAlpha(src *image.RGBA, f float64) *image.RGBA {
	f = clamp01(f)
	dst := image.NewRGBA(src.Rect)
	if f == 0 {
		return dst
	}
	for i, v := range src.Pix {
		dst.Pix[i] = uint8(float64(v)*f + 0.5)
	}
	return dst
}

func fadeIn(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	d := fadeLength(p)
	return scaleAlpha(src, param(p, ParamTime, 0)/d)
}

func fadeOut(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	d := fadeLength(p)
	remaining := param(p, ParamClipDuration, d) - param(p, ParamTime, 0)
	return scaleAlpha(src, remaining/d)
}

func fadeLength(p timeline.FilterParams) float64 {
	d := param(p, ParamDuration, defaultFade)
	if cd := param(p, ParamClipDuration, 0); cd > 0 && d > cd {
		d = cd
	}
	if d <= 0 {
		d = defaultFade
	}
	return d
}

func luma(r, g, b float64) float64 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func tintFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	s := clamp01(param(p, "strength", 0.15))
	tr := param(p, "r", 255) / 255
	tg := param(p, "g", 255) / 255
	tb := param(p, "b", 255) / 255
	return mapStraight(src, func(_, _ int, r, g, b, a float64) (float64, float64, float64, float64) {
		return r*(1-s) + tr*s, g*(1-s) + tg*s, b*(1-s) + tb*s, a
	})
}

// gradeFilter applies brightness (offset), contrast and saturation
// (multipliers). A zero multiplier leaves that channel unchanged.
func gradeFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	bright := param(p, "brightness", 0)
	contrast := param(p, "contrast", 1)
	if contrast == 0 {
		contrast = 1
	}
	sat := param(p, "saturation", 1)
	if sat == 0 {
		sat = 1
	}
	return mapStraight(src, func(_, _ int, r, g, b, a float64) (float64, float64, float64, float64) {
		adjust := func(c float64) float64 { return (c-0.5)*contrast + 0.5 + bright }
		r, g, b = adjust(r), adjust(g), adjust(b)
		l := luma(r, g, b)
		return l + (r-l)*sat, l + (g-l)*sat, l + (b-l)*sat, a
	})
}

func grayscaleFilter(src *image.RGBA, _ timeline.FilterParams) *image.RGBA {
	return mapStraight(src, func(_, _ int, r, g, b, a float64) (float64, float64, float64, float64) {
		l := luma(r, g, b)
		return l, l, l, a
	})
}

func sepiaFilter(src *image.RGBA, _ timeline.FilterParams) *image.RGBA {
	return mapStraight(src, func(_, _ int, r, g, b, a float64) (float64, float64, float64, float64) {
		return 0.393*r + 0.769*g + 0.189*b,
			0.349*r + 0.686*g + 0.168*b,
			0.272*r + 0.534*g + 0.131*b,
			a
	})
}

func posterizeFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	levels := math.Max(2, math.Round(param(p, "levels", 8)))
	step := levels - 1
	q := func(c float64) float64 { return math.Round(c*step) / step }
	return mapStraight(src, func(_, _ int, r, g, b, a float64) (float64, float64, float64, float64) {
		return q(r), q(g), q(b), a
	})
}

func vignetteFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	s := clamp01(param(p, "strength", 0.4))
	cx := float64(src.Rect.Dx()) / 2
	cy := float64(src.Rect.Dy()) / 2
	return mapStraight(src, func(x, y int, r, g, b, a float64) (float64, float64, float64, float64) {
		dx := (float64(x) + 0.5 - cx) / cx
		dy := (float64(y) + 0.5 - cy) / cy
		f := 1 - s*(dx*dx+dy*dy)/2
		return r * f, g * f, b * f, a
	})
}

// grainFilter adds deterministic noise seeded by the frame time so
// re-rendering a chunk reproduces the same pixels.
func grainFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	amount := clamp01(param(p, "amount", 0.08))
	seed := uint32(param(p, ParamTime, 0)*1000 + 0.5)
	return mapStraight(src, func(x, y int, r, g, b, a float64) (float64, float64, float64, float64) {
		n := (noise(uint32(x), uint32(y), seed) - 0.5) * amount
		return r + n, g + n, b + n, a
	})
}

// noise hashes a coordinate to [0,1).
func noise(x, y, seed uint32) float64 {
	h := x*374761393 + y*668265263 + seed*2246822519
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float64(h&0xffffff) / float64(1<<24)
}

func letterboxFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	ratio := param(p, "ratio", 2.39)
	dst := cloneFrame(src)
	w, h := src.Rect.Dx(), src.Rect.Dy()
	if ratio <= 0 || float64(w)/float64(h) >= ratio {
		return dst
	}
	bar := int((float64(h) - float64(w)/ratio) / 2)
	for y := 0; y < h; y++ {
		if y >= bar && y < h-bar {
			continue
		}
		row := dst.Pix[y*dst.Stride : y*dst.Stride+w*4]
		for i := 0; i < len(row); i += 4 {
			row[i], row[i+1], row[i+2], row[i+3] = 0, 0, 0, 255
		}
	}
	return dst
}
