package engine_test

import (
	"context"
	"errors"
	"image"
	"image/color"

	"montage/internal/engine"
	"montage/internal/media"
	"montage/internal/services"
	"montage/internal/timeline"
)

var red = color.RGBA{R: 255, A: 255}

// fakeResolver serves canned handles and counts opens and closes.
type fakeResolver struct {
	handles  map[string]func() media.Handle
	resolved int
	closed   int
}

func (f *fakeResolver) Resolve(_ context.Context, source string) (media.Handle, error) {
	mk, ok := f.handles[source]
	if !ok {
		return nil, services.Wrap(services.ErrResourceMissing, "resolve", source, "not found", nil)
	}
	f.resolved++
	return &countingHandle{Handle: mk(), closed: &f.closed}, nil
}

type countingHandle struct {
	media.Handle
	closed *int
}

func (h *countingHandle) Close() error {
	*h.closed++
	return h.Handle.Close()
}

// toneHandle is an audio-only source of constant level.
type toneHandle struct {
	duration float64
	level    float32
}

func (h toneHandle) Name() string      { return "tone" }
func (h toneHandle) Duration() float64 { return h.duration }
func (h toneHandle) HasVideo() bool    { return false }
func (h toneHandle) HasAudio() bool    { return true }
func (h toneHandle) Close() error      { return nil }

func (h toneHandle) Frames(context.Context, float64, float64, int) ([]*image.RGBA, error) {
	return nil, errors.New("no video")
}

func (h toneHandle) Audio(_ context.Context, in, out float64, rate int) (media.AudioBuffer, error) {
	buf := media.NewSilence(rate, out-in)
	for i := range buf.Samples {
		buf.Samples[i] = h.level
	}
	return buf, nil
}

// captureSink keeps what the engine emits.
type captureSink struct {
	frames []*image.RGBA
	audio  media.AudioBuffer
	format engine.Format
	err    error
}

func (s *captureSink) Write(_ context.Context, frames []*image.RGBA, audio media.AudioBuffer, format engine.Format) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.frames, s.audio, s.format = frames, audio, format
	return "memory://chunk", nil
}

func videoClip(start, end float64, source string) timeline.Clip {
	return timeline.Clip{
		Start:     start,
		End:       end,
		ClipIn:    0,
		ClipOut:   end - start,
		Source:    source,
		Filters:   []string{},
		Transform: timeline.DefaultTransform(),
		Opacity:   1,
	}
}

func track(kind timeline.TrackType, clips ...timeline.Clip) timeline.Track {
	return timeline.Track{Type: kind, Name: string(kind), Clips: clips, Enabled: true, Opacity: 1}
}

func smallTimeline(duration float64, tracks ...timeline.Track) timeline.Timeline {
	return timeline.Timeline{
		Version:         timeline.SchemaVersion,
		Metadata:        timeline.Metadata{ID: "tl", Title: "test"},
		Duration:        duration,
		FPS:             10,
		Resolution:      timeline.Resolution{Width: 8, Height: 8},
		BackgroundColor: "#000000",
		Tracks:          tracks,
	}
}

func colorResolver(source string, c color.RGBA) *fakeResolver {
	return &fakeResolver{handles: map[string]func() media.Handle{
		source: func() media.Handle { return media.NewColorSource(source, c, 8, 8) },
	}}
}

// stripeHandle decodes fresh frames on every call, like a file source, and
// records the spans requested.
type stripeHandle struct {
	width, height int
	calls         *[]frameRequest
}

type frameRequest struct {
	in, out float64
	count   int
}

func (h stripeHandle) Name() string      { return "stripes" }
func (h stripeHandle) Duration() float64 { return 0 }
func (h stripeHandle) HasVideo() bool    { return true }
func (h stripeHandle) HasAudio() bool    { return false }
func (h stripeHandle) Close() error      { return nil }

func (h stripeHandle) Frames(_ context.Context, in, out float64, count int) ([]*image.RGBA, error) {
	if h.calls != nil {
		*h.calls = append(*h.calls, frameRequest{in: in, out: out, count: count})
	}
	frames := make([]*image.RGBA, count)
	for i := range frames {
		f := image.NewRGBA(image.Rect(0, 0, h.width, h.height))
		for p := 0; p < len(f.Pix); p += 4 {
			f.Pix[p], f.Pix[p+1], f.Pix[p+2], f.Pix[p+3] = uint8(i*16), 0x80, uint8(p), 0xff
		}
		frames[i] = f
	}
	return frames, nil
}

func (h stripeHandle) Audio(_ context.Context, in, out float64, rate int) (media.AudioBuffer, error) {
	return media.NewSilence(rate, out-in), nil
}
