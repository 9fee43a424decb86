package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"maps"
	"math"
	"slices"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"montage/internal/effects"
	"montage/internal/media"
	"montage/internal/services"
	"montage/internal/timeline"
)

// GradeFilter is the filter id carrying an artistic style's color grading.
const GradeFilter = "grade"

// TextFilter keys the parameters passed to the text renderer.
const TextFilter = "text"

// decodeBatchSeconds bounds the decoded source video one clip holds.
const decodeBatchSeconds = 0.5

// layer is one composited track after the transform stage.
type layer struct {
	track int
	clips []*clipRenderer
}

type filterStep struct {
	id     string
	params timeline.FilterParams
}

// clipSpan returns the first frame and frame count of clip, clamped to the
// timeline.
func (j *job) clipSpan(clip timeline.Clip) (int, int) {
	start := timeline.FrameIndex(clip.Start, j.fps)
	end := min(timeline.FrameIndex(clip.End, j.fps), j.total)
	if end <= start {
		return start, 0
	}
	return start, end - start
}

// TransitionSpans splits clip into the frame counts of its transition head,
// untouched middle and transition tail. Each edge is clamped to half the
// clip so the spans always sum to the clip's frame count.
func TransitionSpans(clip timeline.Clip, fps float64) (head, middle, tail int) {
	n := timeline.FrameIndex(clip.End, fps) - timeline.FrameIndex(clip.Start, fps)
	if n <= 0 {
		return 0, 0, 0
	}
	if clip.TransitionIn != nil {
		head = edgeFrames(clip.TransitionIn.Duration, clip.Duration(), n, fps)
	}
	if clip.TransitionOut != nil {
		tail = edgeFrames(clip.TransitionOut.Duration, clip.Duration(), n, fps)
	}
	return head, n - head - tail, tail
}

func edgeFrames(seconds, clipDuration float64, n int, fps float64) int {
	if seconds <= 0 {
		return 0
	}
	return min(timeline.FrameIndex(math.Min(seconds, clipDuration/2), fps), n/2)
}

func (j *job) transformClips(ctx context.Context) error {
	order := make([]int, 0, len(j.tl.Tracks))
	for ti, track := range j.tl.Tracks {
		if track.Enabled && track.Type.CompositePriority() >= 0 {
			order = append(order, ti)
		}
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return j.tl.Tracks[a].Type.CompositePriority() - j.tl.Tracks[b].Type.CompositePriority()
	})

	for _, ti := range order {
		track := j.tl.Tracks[ti]
		l := layer{track: ti}
		for ci, clip := range track.Clips {
			start, n := j.clipSpan(clip)
			if n == 0 {
				continue
			}
			l.clips = append(l.clips, j.newClipRenderer(ti, ci, clip, track.Type, start, n))
		}
		if track.Type != timeline.TrackEffect {
			slices.SortStableFunc(l.clips, func(a, b *clipRenderer) int { return a.start - b.start })
			if err := j.applyTransitions(ctx, ti, l.clips); err != nil {
				return err
			}
		}
		j.layers = append(j.layers, l)
	}
	return nil
}

// clipRenderer produces the frames of one clip on demand. It holds only the
// current decode batch and the blended transition edges, so a chunk's
// footprint is dominated by its composed output.
type clipRenderer struct {
	j      *job
	ti, ci int
	clip   timeline.Clip
	kind   timeline.TrackType
	start  int
	count  int

	steps  []filterStep
	failed []bool
	offset float64
	length float64

	handle  media.Handle
	text    *image.RGBA
	batch   []*image.RGBA
	batchAt int

	lastRaw    *image.RGBA
	lastPlaced *image.RGBA

	head []*image.RGBA
	tail []*image.RGBA
}

func (j *job) newClipRenderer(ti, ci int, clip timeline.Clip, kind timeline.TrackType, start, n int) *clipRenderer {
	r := &clipRenderer{j: j, ti: ti, ci: ci, clip: clip, kind: kind, start: start, count: n}
	r.steps = j.chain(clip)
	r.failed = make([]bool, len(r.steps))
	r.offset, r.length = clip.Clock()
	switch kind {
	case timeline.TrackVideo:
		r.handle = j.handles[clipKey{ti, ci}]
		if r.handle == nil {
			r.handle = media.NewPlaceholder(clip.Source, j.e.placeholder, j.w, j.h)
		}
	case timeline.TrackText:
		r.text = effects.NewFrame(j.w, j.h)
		if err := j.e.text.RenderText(r.text, clip.Content, clip.Transform.Position, clip.ParamsFor(TextFilter)); err != nil {
			j.skip(ti, ci, TextFilter, err)
		}
	}
	return r
}

// frame returns output frame k of the clip, transition edges included.
func (r *clipRenderer) frame(ctx context.Context, k int) (*image.RGBA, error) {
	if k < len(r.head) {
		return r.head[k], nil
	}
	if from := r.count - len(r.tail); len(r.tail) > 0 && k >= from {
		return r.tail[k-from], nil
	}
	return r.render(ctx, k)
}

// span renders frames [from, to) without transition edges.
func (r *clipRenderer) span(ctx context.Context, from, to int) ([]*image.RGBA, error) {
	out := make([]*image.RGBA, 0, to-from)
	for k := from; k < to; k++ {
		f, err := r.render(ctx, k)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// render places and filters frame k. Repeated source frames are placed once.
func (r *clipRenderer) render(ctx context.Context, k int) (*image.RGBA, error) {
	raw, err := r.source(ctx, k)
	if err != nil {
		return nil, err
	}
	placed := r.lastPlaced
	if raw != r.lastRaw {
		placed = raw
		if r.kind == timeline.TrackVideo {
			placed = placeFrame(raw, r.clip.Transform, r.j.w, r.j.h)
		}
		r.lastRaw, r.lastPlaced = raw, placed
	}
	return r.filter(placed, k), nil
}

func (r *clipRenderer) source(ctx context.Context, k int) (*image.RGBA, error) {
	if r.kind == timeline.TrackText {
		return r.text, nil
	}
	if k < r.batchAt || k >= r.batchAt+len(r.batch) {
		if err := r.decode(ctx, k); err != nil {
			return nil, err
		}
	}
	return r.batch[k-r.batchAt], nil
}

// decode loads the batch holding frame k. Batches sample the same source
// times a single request for the whole clip would. A failed decode turns
// the rest of the clip into a placeholder.
func (r *clipRenderer) decode(ctx context.Context, k int) error {
	size := max(1, int(r.j.fps*decodeBatchSeconds))
	from := k / size * size
	n := min(size, r.count-from)
	step := (r.clip.ClipOut - r.clip.ClipIn) / float64(r.count)
	in := r.clip.ClipIn + float64(from)*step
	out := in + float64(n)*step
	if from+n == r.count {
		out = r.clip.ClipOut
	}

	frames, err := r.handle.Frames(ctx, in, out, n)
	if err == nil && len(frames) != n {
		err = fmt.Errorf("decoder returned %d frames, want %d", len(frames), n)
	}
	if err != nil {
		if ctx.Err() != nil {
			return services.Wrap(services.ErrCanceled, "transform", r.clip.Source, "decode", ctx.Err())
		}
		r.j.substitute(r.ti, r.ci, services.Wrap(services.ErrResourceMissing, "transform", r.clip.Source, "decode failed", err))
		r.handle = media.NewPlaceholder(r.clip.Source, r.j.e.placeholder, r.j.w, r.j.h)
		if frames, err = r.handle.Frames(ctx, in, out, n); err != nil {
			return services.Wrap(services.ErrResourceMissing, "transform", r.clip.Source, "placeholder", err)
		}
	}
	r.batch, r.batchAt = frames, from
	return nil
}

// filter runs the clip's steps over one frame. A step that fails is
// recorded and dropped for the rest of the clip.
func (r *clipRenderer) filter(frame *image.RGBA, k int) *image.RGBA {
	t := r.offset + float64(k)/r.j.fps
	for i, step := range r.steps {
		if r.failed[i] {
			continue
		}
		next, err := r.j.applyStep(step, frame, t, r.length)
		if err != nil {
			r.failed[i] = true
			r.j.skip(r.ti, r.ci, step.id, err)
			continue
		}
		frame = next
	}
	return frame
}

// adjust runs an effect clip's steps over composite frame dst, clip frame
// k, and mixes the result back in.
func (r *clipRenderer) adjust(dst *image.RGBA, k int, mode timeline.BlendMode, opacity float64) {
	filtered := r.filter(dst, k)
	if filtered == dst {
		return
	}
	if mode == timeline.BlendNormal || mode == "normal" {
		Mix(dst, filtered, opacity)
		return
	}
	Blend(dst, filtered, mode, opacity)
}

func (r *clipRenderer) release() {
	r.batch, r.head, r.tail = nil, nil, nil
	r.lastRaw, r.lastPlaced = nil, nil
}

// placeFrame fill-scales src to width×height, then applies the clip's
// scale, rotation and center position.
func placeFrame(src *image.RGBA, tf timeline.Transform, width, height int) *image.RGBA {
	sw, sh := src.Rect.Dx(), src.Rect.Dy()
	if sw == 0 || sh == 0 {
		return image.NewRGBA(image.Rect(0, 0, width, height))
	}
	scale := tf.Scale
	if scale <= 0 {
		scale = 1
	}
	if sw == width && sh == height && scale == 1 && tf.Rotation == 0 && tf.Position == timeline.Center && src.Rect.Min == (image.Point{}) {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Transform(dst, FillMatrix(sw, sh, width, height, tf), src, src.Rect, xdraw.Over, nil)
	return dst
}

// FillMatrix maps source pixel coordinates to canvas coordinates: scale by
// max(W/w, H/h)·tf.Scale, rotate tf.Rotation degrees clockwise about the
// source center and move that center to tf.Position.
func FillMatrix(sw, sh, width, height int, tf timeline.Transform) f64.Aff3 {
	scale := tf.Scale
	if scale <= 0 {
		scale = 1
	}
	s := math.Max(float64(width)/float64(sw), float64(height)/float64(sh)) * scale
	rad := tf.Rotation * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	cx, cy := float64(sw)/2, float64(sh)/2
	px, py := tf.Position.X*float64(width), tf.Position.Y*float64(height)
	return f64.Aff3{
		s * cos, -s * sin, px - s*(cos*cx-sin*cy),
		s * sin, s * cos, py - s*(sin*cx+cos*cy),
	}
}

// chain returns the clip's filter steps: style grading, style filters,
// then explicit filters.
func (j *job) chain(clip timeline.Clip) []filterStep {
	var steps []filterStep
	if clip.ArtisticStyle != nil {
		resolved, entry, _ := j.e.catalog.Resolve(clip.ArtisticStyle)
		if g := resolved.Grading; g != nil && !g.IsZero() {
			steps = append(steps, filterStep{id: GradeFilter, params: timeline.FilterParams{
				"brightness": g.Brightness,
				"contrast":   g.Contrast,
				"saturation": g.Saturation,
			}})
		}
		for _, id := range resolved.Filters {
			params := maps.Clone(entry.Params[id])
			if params == nil {
				params = timeline.FilterParams{}
			}
			maps.Copy(params, clip.ParamsFor(id))
			steps = append(steps, filterStep{id: id, params: params})
		}
	}
	for _, id := range clip.Filters {
		steps = append(steps, filterStep{id: id, params: clip.ParamsFor(id)})
	}
	return steps
}

func (j *job) applyStep(step filterStep, frame *image.RGBA, t, clipDuration float64) (out *image.RGBA, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("filter %s panicked: %v", step.id, r)
		}
	}()
	params := maps.Clone(step.params)
	if params == nil {
		params = timeline.FilterParams{}
	}
	params[effects.ParamClipDuration] = clipDuration
	params[effects.ParamTime] = t
	res, err := j.e.effects.Apply(frame, step.id, params)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Rect != frame.Rect {
		return nil, effects.ErrFrameMismatch
	}
	return res, nil
}

// applyTransitions blends clip boundaries within one track. When both sides
// of a shared boundary declare a transition, the tail of the earlier clip
// and the head of the later go to the provider together. A transition
// declared on one side only blends that side's edge, with nil for the other.
func (j *job) applyTransitions(ctx context.Context, ti int, clips []*clipRenderer) error {
	for i, cur := range clips {
		head, _, tail := TransitionSpans(cur.clip, j.fps)
		head, tail = min(head, cur.count), min(tail, cur.count)

		var prev, next *clipRenderer
		if i > 0 && clips[i-1].start+clips[i-1].count == cur.start {
			prev = clips[i-1]
		}
		if i+1 < len(clips) && clips[i+1].start == cur.start+cur.count {
			next = clips[i+1]
		}

		pairedIn := prev != nil && prev.clip.TransitionOut != nil
		if cur.clip.TransitionIn != nil && head > 0 && !pairedIn {
			if err := j.blendBoundary(ctx, ti, nil, cur, *cur.clip.TransitionIn, 0, head); err != nil {
				return err
			}
		}
		if cur.clip.TransitionOut == nil || tail == 0 {
			continue
		}
		var err error
		if next != nil && next.clip.TransitionIn != nil {
			nextHead, _, _ := TransitionSpans(next.clip, j.fps)
			err = j.blendBoundary(ctx, ti, cur, next, *cur.clip.TransitionOut, tail, min(nextHead, next.count))
		} else {
			err = j.blendBoundary(ctx, ti, cur, nil, *cur.clip.TransitionOut, tail, 0)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// blendBoundary renders the last tail frames of a and the first head frames
// of b and keeps the provider's output as their edges. Provider failures
// leave both untouched.
func (j *job) blendBoundary(ctx context.Context, ti int, a, b *clipRenderer, tr timeline.Transition, tail, head int) error {
	var tailFrames, headFrames []*image.RGBA
	var err error
	if a != nil && tail > 0 {
		if tailFrames, err = a.span(ctx, a.count-tail, a.count); err != nil {
			return err
		}
	}
	if b != nil && head > 0 {
		if headFrames, err = b.span(ctx, 0, head); err != nil {
			return err
		}
	}
	if len(tailFrames)+len(headFrames) == 0 {
		return nil
	}
	owner := b
	if owner == nil {
		owner = a
	}
	effect := "transition:" + tr.Type
	out, err := j.e.transitions.Apply(tailFrames, headFrames, tr)
	if err == nil && len(out) != len(tailFrames)+len(headFrames) {
		err = fmt.Errorf("%w: transition returned %d frames, want %d", effects.ErrFrameMismatch, len(out), len(tailFrames)+len(headFrames))
	}
	if err != nil {
		if errors.Is(err, effects.ErrUnknownTransition) {
			err = services.Wrap(services.ErrEffectApplication, "transform", effect, "unsupported transition", err)
		}
		j.skip(ti, owner.ci, effect, err)
		return nil
	}
	if a != nil {
		a.tail = out[:len(tailFrames)]
	}
	if b != nil {
		b.head = out[len(tailFrames):]
	}
	return nil
}
