package effects

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"montage/internal/timeline"
)

func blurFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	return boxBlur(src, int(math.Round(param(p, "radius", 3))))
}

// boxBlur runs a separable box blur. Premultiplied channels blur correctly
// without conversion.
func boxBlur(src *image.RGBA, radius int) *image.RGBA {
	if radius <= 0 {
		return cloneFrame(src)
	}
	w, h := src.Rect.Dx(), src.Rect.Dy()
	tmp := image.NewRGBA(src.Rect)
	dst := image.NewRGBA(src.Rect)
	pass := func(in, out *image.RGBA, length, lines int, at func(line, i int) int) {
		sums := make([]int, 4)
		for line := 0; line < lines; line++ {
			clear(sums)
			count := 0
			for i := -radius; i <= radius; i++ {
				if i < 0 || i >= length {
					continue
				}
				o := at(line, i)
				for c := 0; c < 4; c++ {
					sums[c] += int(in.Pix[o+c])
				}
				count++
			}
			for i := 0; i < length; i++ {
				o := at(line, i)
				for c := 0; c < 4; c++ {
					out.Pix[o+c] = uint8(sums[c] / count)
				}
				if drop := i - radius; drop >= 0 {
					d := at(line, drop)
					for c := 0; c < 4; c++ {
						sums[c] -= int(in.Pix[d+c])
					}
					count--
				}
				if add := i + radius + 1; add < length {
					a := at(line, add)
					for c := 0; c < 4; c++ {
						sums[c] += int(in.Pix[a+c])
					}
					count++
				}
			}
		}
	}
	pass(src, tmp, w, h, func(y, x int) int { return y*src.Stride + x*4 })
	pass(tmp, dst, h, w, func(x, y int) int { return y*tmp.Stride + x*4 })
	return dst
}

// glowFilter screens a blurred copy over the frame.
func glowFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	strength := clamp01(param(p, "strength", 0.5))
	halo := boxBlur(src, int(math.Round(param(p, "radius", 8))))
	dst := image.NewRGBA(src.Rect)
	for i := range src.Pix {
		a := float64(src.Pix[i]) / 255
		b := float64(halo.Pix[i]) / 255 * strength
		dst.Pix[i] = to8(a + b - a*b)
	}
	return dst
}

// zoomFilter scales the frame about its center, growing linearly from 1 to
// 1+amount over the clip.
func zoomFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	amount := param(p, "amount", 0.2)
	progress := 1.0
	if cd := param(p, ParamClipDuration, 0); cd > 0 {
		progress = clamp01(param(p, ParamTime, 0) / cd)
	}
	k := 1 + amount*progress
	cx := float64(src.Rect.Dx()) / 2
	cy := float64(src.Rect.Dy()) / 2
	return transformFrame(src, f64.Aff3{k, 0, cx * (1 - k), 0, k, cy * (1 - k)})
}

// rotateFilter rotates about the center by a fixed "angle" in degrees or,
// without one, by "speed" degrees per second of clip time.
func rotateFilter(src *image.RGBA, p timeline.FilterParams) *image.RGBA {
	deg, ok := p["angle"]
	if !ok {
		deg = param(p, "speed", 15) * param(p, ParamTime, 0)
	}
	return transformFrame(src, RotationAbout(deg, float64(src.Rect.Dx())/2, float64(src.Rect.Dy())/2))
}

// RotationAbout returns the source-to-destination matrix rotating by deg
// degrees clockwise around (cx, cy).
func RotationAbout(deg, cx, cy float64) f64.Aff3 {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
}

func transformFrame(src *image.RGBA, m f64.Aff3) *image.RGBA {
	dst := image.NewRGBA(src.Rect)
	xdraw.BiLinear.Transform(dst, m, src, src.Rect, draw.Src, nil)
	return dst
}
