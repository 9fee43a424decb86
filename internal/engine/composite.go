package engine

import (
	"context"
	"image"
	"image/color"
	"image/draw"

	"montage/internal/services"
	"montage/internal/timeline"
)

// compositeTracks builds each output frame in turn: background, then every
// covering clip in track priority order. Clip frames are produced as they
// are consumed, so only the composed output spans the whole chunk.
func (j *job) compositeTracks(ctx context.Context) error {
	bg := color.RGBA{A: 255}
	if rgb, err := timeline.ParseHexColor(j.tl.BackgroundColor); err == nil && j.tl.BackgroundColor != "" {
		bg = color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}
	}
	fill := image.NewUniform(bg)
	j.frames = make([]*image.RGBA, j.total)
	for idx := range j.frames {
		if err := ctx.Err(); err != nil {
			return services.Wrap(services.ErrCanceled, "composite", "", "", err)
		}
		f := image.NewRGBA(image.Rect(0, 0, j.w, j.h))
		draw.Draw(f, f.Rect, fill, image.Point{}, draw.Src)
		for _, l := range j.layers {
			if err := j.compositeLayer(ctx, f, idx, l); err != nil {
				return err
			}
		}
		j.frames[idx] = f
	}
	j.layers = nil
	j.result.Frames = len(j.frames)
	return nil
}

func (j *job) compositeLayer(ctx context.Context, dst *image.RGBA, idx int, l layer) error {
	track := j.tl.Tracks[l.track]
	for _, r := range l.clips {
		k := idx - r.start
		if k < 0 || k >= r.count {
			continue
		}
		mode := r.clip.BlendMode
		if mode == timeline.BlendNormal || mode == "normal" {
			mode = track.BlendMode
		}
		opacity := track.Opacity * r.clip.Opacity
		if opacity > 0 {
			if track.Type == timeline.TrackEffect {
				r.adjust(dst, k, mode, opacity)
			} else {
				src, err := r.frame(ctx, k)
				if err != nil {
					return err
				}
				Blend(dst, src, mode, opacity)
			}
		}
		if k == r.count-1 {
			r.release()
		}
	}
	return nil
}

// Blend composites src over dst in place. Both frames hold premultiplied
// RGBA of the same bounds; opacity scales src.
func Blend(dst, src *image.RGBA, mode timeline.BlendMode, opacity float64) {
	if dst.Rect != src.Rect {
		return
	}
	op := uint32(clampUnit(opacity)*255 + 0.5)
	if op == 0 {
		return
	}
	d, s := dst.Pix, src.Pix
	for i := 0; i+3 < len(d) && i+3 < len(s); i += 4 {
		sa := uint32(s[i+3]) * op / 255
		sr := uint32(s[i]) * op / 255
		sg := uint32(s[i+1]) * op / 255
		sb := uint32(s[i+2]) * op / 255
		if sa == 0 && sr == 0 && sg == 0 && sb == 0 {
			continue
		}
		if sa == 255 && (mode == timeline.BlendNormal || mode == "normal") {
			d[i], d[i+1], d[i+2], d[i+3] = uint8(sr), uint8(sg), uint8(sb), 255
			continue
		}
		da := uint32(d[i+3])
		inv := 255 - sa
		for c, sc := range [3]uint32{sr, sg, sb} {
			dc := uint32(d[i+c])
			var v uint32
			switch mode {
			case timeline.BlendAdd:
				v = sc + dc
			case timeline.BlendMultiply:
				v = (sc*dc + sc*(255-da) + dc*inv) / 255
			case timeline.BlendScreen:
				v = sc + dc - sc*dc/255
			default:
				v = sc + dc*inv/255
			}
			d[i+c] = uint8(min(v, 255))
		}
		d[i+3] = uint8(min(sa+da*inv/255, 255))
	}
}

// Mix linearly interpolates dst toward src by amount, in place.
func Mix(dst, src *image.RGBA, amount float64) {
	if dst.Rect != src.Rect {
		return
	}
	a := uint32(clampUnit(amount)*255 + 0.5)
	if a == 255 {
		copy(dst.Pix, src.Pix)
		return
	}
	inv := 255 - a
	d, s := dst.Pix, src.Pix
	for i := range d {
		d[i] = uint8((uint32(d[i])*inv + uint32(s[i])*a) / 255)
	}
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
