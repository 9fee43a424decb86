package effects

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	xdraw "golang.org/x/image/draw"

	"montage/internal/timeline"
)

const (
	defaultTextSize = 0.06
	glyphWidth      = 7
	glyphHeight     = 13
	textPadding     = 4
)

// RenderText draws content centered on at, scaled so one line is "size"
// of the frame height (default 6%), over a translucent backing box. Lines
// wrap at 90% of the frame width.
func (b *Builtin) RenderText(canvas *image.RGBA, content string, at timeline.Position, params timeline.FilterParams) error {
	content = strings.TrimSpace(content)
	if canvas == nil || content == "" {
		return nil
	}
	w, h := canvas.Rect.Dx(), canvas.Rect.Dy()
	lineHeight := math.Max(glyphHeight, float64(h)*param(params, "size", defaultTextSize))
	scale := lineHeight / glyphHeight
	maxChars := int(float64(w) * 0.9 / (glyphWidth * scale))
	if maxChars < 1 {
		maxChars = 1
	}
	lines := wrapWords(content, maxChars)

	longest := 0
	for _, line := range lines {
		longest = max(longest, len([]rune(line)))
	}
	sw := longest*glyphWidth + 2*textPadding
	sh := len(lines)*glyphHeight + 2*textPadding
	small := image.NewRGBA(image.Rect(0, 0, sw, sh))
	backing := uint8(255 * clamp01(param(params, "backing", 0.45)))
	draw.Draw(small, small.Rect, image.NewUniform(color.RGBA{A: backing}), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  small,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: basicfont.Face7x13,
	}
	for i, line := range lines {
		width := drawer.MeasureString(line).Ceil()
		drawer.Dot = fixed.P((sw-width)/2, textPadding+(i+1)*glyphHeight-basicfont.Face7x13.Descent)
		drawer.DrawString(line)
	}

	dw := int(float64(sw) * scale)
	dh := int(float64(sh) * scale)
	cx := int(at.X * float64(w))
	cy := int(at.Y * float64(h))
	target := image.Rect(cx-dw/2, cy-dh/2, cx-dw/2+dw, cy-dh/2+dh)
	target = clampRect(target, canvas.Rect)
	xdraw.NearestNeighbor.Scale(canvas, target, small, small.Rect, draw.Over, nil)
	return nil
}

// clampRect shifts r inside bounds without resizing it when it fits.
func clampRect(r, bounds image.Rectangle) image.Rectangle {
	if dx := bounds.Min.X - r.Min.X; dx > 0 {
		r = r.Add(image.Pt(dx, 0))
	}
	if dx := r.Max.X - bounds.Max.X; dx > 0 {
		r = r.Sub(image.Pt(dx, 0))
	}
	if dy := bounds.Min.Y - r.Min.Y; dy > 0 {
		r = r.Add(image.Pt(0, dy))
	}
	if dy := r.Max.Y - bounds.Max.Y; dy > 0 {
		r = r.Sub(image.Pt(0, dy))
	}
	return r
}

func wrapWords(text string, limit int) []string {
	var lines []string
	var current []rune
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		for len(runes) > limit {
			if len(current) > 0 {
				lines = append(lines, string(current))
				current = nil
			}
			lines = append(lines, string(runes[:limit]))
			runes = runes[limit:]
		}
		switch {
		case len(current) == 0:
			current = append(current, runes...)
		case len(current)+1+len(runes) <= limit:
			current = append(append(current, ' '), runes...)
		default:
			lines = append(lines, string(current))
			current = append([]rune(nil), runes...)
		}
	}
	if len(current) > 0 {
		lines = append(lines, string(current))
	}
	return lines
}
