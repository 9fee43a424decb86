package engine_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"montage/internal/engine"
	"montage/internal/media"
	"montage/internal/services"
	"montage/internal/timeline"
)

func TestTransitionSpansSplitClip(t *testing.T) {
	fade := &timeline.Transition{Type: "fade", Duration: 2}
	tests := []struct {
		name                string
		clip                timeline.Clip
		head, middle, tail int
	}{
		{"five second clip", timeline.Clip{Start: 0, End: 5, TransitionIn: fade, TransitionOut: fade}, 60, 30, 60},
		{"clamped to half", timeline.Clip{Start: 10, End: 13, TransitionIn: fade, TransitionOut: fade}, 45, 0, 45},
		{"head only", timeline.Clip{Start: 0, End: 5, TransitionIn: fade}, 60, 90, 0},
		{"no transitions", timeline.Clip{Start: 0, End: 5}, 0, 150, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			head, middle, tail := engine.TransitionSpans(tc.clip, 30)
			if head != tc.head || middle != tc.middle || tail != tc.tail {
				t.Fatalf("spans = %d/%d/%d, want %d/%d/%d", head, middle, tail, tc.head, tc.middle, tc.tail)
			}
			if total := timeline.FrameIndex(tc.clip.Duration(), 30); head+middle+tail != total {
				t.Fatalf("spans sum to %d, want %d", head+middle+tail, total)
			}
		})
	}
}

func TestRenderTransitionTouchesOnlyEdges(t *testing.T) {
	plain := videoClip(0, 5, "red")
	faded := plain
	faded.TransitionIn = &timeline.Transition{Type: "fade", Duration: 2}
	faded.TransitionOut = &timeline.Transition{Type: "fade", Duration: 2}

	render := func(c timeline.Clip) *captureSink {
		sink := &captureSink{}
		eng := engine.New(colorResolver("red", red))
		res, err := eng.Render(context.Background(), smallTimeline(5, track(timeline.TrackVideo, c)), sink)
		if err != nil {
			t.Fatalf("Render: %v", err)
		}
		if res.Degraded() {
			t.Fatalf("unexpected degradation: %+v", res)
		}
		return sink
	}
	base := render(plain)
	got := render(faded)

	if len(got.frames) != 50 || len(base.frames) != 50 {
		t.Fatalf("frames = %d/%d, want 50", len(got.frames), len(base.frames))
	}
	head, middle, _ := engine.TransitionSpans(faded, 10)
	if head != 20 || middle != 10 {
		t.Fatalf("spans head=%d middle=%d", head, middle)
	}
	for k := head; k < head+middle; k++ {
		if !bytes.Equal(got.frames[k].Pix, base.frames[k].Pix) {
			t.Fatalf("middle frame %d differs from the untransitioned render", k)
		}
	}
	if bytes.Equal(got.frames[0].Pix, base.frames[0].Pix) {
		t.Fatalf("first head frame should be blended")
	}
	if bytes.Equal(got.frames[49].Pix, base.frames[49].Pix) {
		t.Fatalf("last tail frame should be blended")
	}
}

func TestRenderAdjacentClipsShareBoundary(t *testing.T) {
	a := videoClip(0, 2, "red")
	b := videoClip(2, 4, "blue")
	tr := &timeline.Transition{Type: "crossfade", Duration: 0.5}
	a.TransitionOut, b.TransitionIn = tr, tr

	res := colorResolver("red", red)
	res.handles["blue"] = func() media.Handle {
		return media.NewColorSource("blue", colorRGBA(0, 0, 255), 8, 8)
	}
	sink := &captureSink{}
	if _, err := engine.New(res).Render(context.Background(), smallTimeline(4, track(timeline.TrackVideo, a, b)), sink); err != nil {
		t.Fatalf("Render: %v", err)
	}
	// Frames 15..24 blend red into blue; both colors are present mid-way.
	mid := sink.frames[20].RGBAAt(0, 0)
	if mid.R == 0 || mid.B == 0 {
		t.Fatalf("boundary frame = %+v, want a red/blue mix", mid)
	}
	if got := sink.frames[10].RGBAAt(0, 0); got != red {
		t.Fatalf("frame before the transition = %+v, want red", got)
	}
	if got := sink.frames[30].RGBAAt(0, 0); got.B != 255 || got.R != 0 {
		t.Fatalf("frame after the transition = %+v, want blue", got)
	}
}

func TestRenderMissingSourceUsesPlaceholder(t *testing.T) {
	res := &fakeResolver{}
	sink := &captureSink{}
	eng := engine.New(res, engine.WithPlaceholderColor(red))
	tl := smallTimeline(3, track(timeline.TrackVideo, videoClip(0, 3, "gone")))

	result, err := eng.Render(context.Background(), tl, sink)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(result.Placeholders) != 1 {
		t.Fatalf("placeholders = %+v, want one", result.Placeholders)
	}
	p := result.Placeholders[0]
	if p.Source != "gone" || p.Start != 0 || p.End != 3 {
		t.Fatalf("placeholder = %+v", p)
	}
	if len(sink.frames) != 30 {
		t.Fatalf("frames = %d, want 30", len(sink.frames))
	}
	if got := sink.frames[29].RGBAAt(4, 4); got != red {
		t.Fatalf("placeholder pixel = %+v, want red", got)
	}
	if !result.Degraded() || result.FinalState() != engine.StateDone {
		t.Fatalf("result = %+v", result)
	}
}

func TestRenderEncoderFailureIsFatal(t *testing.T) {
	res := colorResolver("red", red)
	sink := &captureSink{err: errors.New("disk full")}
	result, err := engine.New(res).Render(context.Background(), smallTimeline(1, track(timeline.TrackVideo, videoClip(0, 1, "red"))), sink)
	if !errors.Is(err, services.ErrEncoding) {
		t.Fatalf("error = %v, want ErrEncoding", err)
	}
	if result.FinalState() != engine.StateFailed {
		t.Fatalf("final state = %s", result.FinalState())
	}
	want := []engine.State{
		engine.StateResourcesResolving, engine.StateClipsTransforming, engine.StateTrackCompositing,
		engine.StateAudioMixing, engine.StateEmitting, engine.StateFailed,
	}
	if len(result.States) != len(want) {
		t.Fatalf("states = %v, want %v", result.States, want)
	}
	for i := range want {
		if result.States[i] != want[i] {
			t.Fatalf("states = %v, want %v", result.States, want)
		}
	}
	if res.closed != res.resolved || res.resolved != 1 {
		t.Fatalf("opened %d handles, closed %d", res.resolved, res.closed)
	}
}

func TestRenderRejectsInvalidTimeline(t *testing.T) {
	res := colorResolver("red", red)
	tl := smallTimeline(1, track(timeline.TrackVideo, videoClip(0, 1, "red")))
	tl.FPS = 0
	_, err := engine.New(res).Render(context.Background(), tl, &captureSink{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
	if res.resolved != 0 {
		t.Fatalf("resolver called %d times for an invalid timeline", res.resolved)
	}
}

func TestRenderSkipsUnknownFilter(t *testing.T) {
	c := videoClip(0, 1, "red")
	c.Filters = []string{"sparkle", "grayscale"}
	sink := &captureSink{}
	result, err := engine.New(colorResolver("red", red)).Render(context.Background(), smallTimeline(1, track(timeline.TrackVideo, c)), sink)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(result.Failures) != 1 || result.Failures[0].Effect != "sparkle" || result.Failures[0].Kind != "effect_application" {
		t.Fatalf("failures = %+v", result.Failures)
	}
	px := sink.frames[0].RGBAAt(0, 0)
	if px.R != px.G || px.G != px.B {
		t.Fatalf("grayscale should still apply, got %+v", px)
	}
}

func TestEffectTrackAdjustsComposite(t *testing.T) {
	adjust := timeline.Clip{Start: 0, End: 1, ClipOut: 1, Filters: []string{"grayscale"}, Transform: timeline.DefaultTransform(), Opacity: 1}
	// The effect track is listed first but composites above video.
	tl := smallTimeline(2,
		track(timeline.TrackEffect, adjust),
		track(timeline.TrackVideo, videoClip(0, 2, "red")),
	)
	sink := &captureSink{}
	if _, err := engine.New(colorResolver("red", red)).Render(context.Background(), tl, sink); err != nil {
		t.Fatalf("Render: %v", err)
	}
	gray := sink.frames[5].RGBAAt(0, 0)
	if gray.R != gray.G || gray.R == 255 {
		t.Fatalf("adjusted frame = %+v, want gray", gray)
	}
	if got := sink.frames[15].RGBAAt(0, 0); got != red {
		t.Fatalf("frame outside the effect span = %+v, want red", got)
	}
}

func TestRenderSkipsDisabledTracks(t *testing.T) {
	tr := track(timeline.TrackVideo, videoClip(0, 1, "red"))
	tr.Enabled = false
	res := colorResolver("red", red)
	sink := &captureSink{}
	if _, err := engine.New(res).Render(context.Background(), smallTimeline(1, tr), sink); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if res.resolved != 0 {
		t.Fatalf("disabled track resolved %d sources", res.resolved)
	}
	if got := sink.frames[0].RGBAAt(0, 0); got != colorRGBA(0, 0, 0) {
		t.Fatalf("pixel = %+v, want background", got)
	}
}

func TestStateTransitions(t *testing.T) {
	if !engine.StateResourcesResolving.CanTransition(engine.StateClipsTransforming) {
		t.Fatalf("resolving should advance to transforming")
	}
	if engine.StateResourcesResolving.CanTransition(engine.StateEmitting) {
		t.Fatalf("stages must not be skipped")
	}
	for _, s := range []engine.State{engine.StateResourcesResolving, engine.StateClipsTransforming, engine.StateTrackCompositing, engine.StateAudioMixing, engine.StateEmitting} {
		if !s.CanTransition(engine.StateFailed) {
			t.Fatalf("%s cannot fail", s)
		}
	}
	if engine.StateDone.CanTransition(engine.StateFailed) || !engine.StateDone.Terminal() {
		t.Fatalf("done must be terminal")
	}
}

func TestRenderOneSidedTransitionLeavesNeighbor(t *testing.T) {
	a := videoClip(0, 2, "red")
	b := videoClip(2, 4, "blue")
	b.TransitionIn = &timeline.Transition{Type: "crossfade", Duration: 0.5}

	res := colorResolver("red", red)
	res.handles["blue"] = func() media.Handle {
		return media.NewColorSource("blue", colorRGBA(0, 0, 255), 8, 8)
	}
	sink := &captureSink{}
	result, err := engine.New(res).Render(context.Background(), smallTimeline(4, track(timeline.TrackVideo, a, b)), sink)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if result.Degraded() {
		t.Fatalf("unexpected degradation: %+v", result)
	}
	// The earlier clip declares no transition_out, so its tail stays red.
	for k := 15; k < 20; k++ {
		if got := sink.frames[k].RGBAAt(0, 0); got != red {
			t.Fatalf("frame %d = %+v, want untouched red", k, got)
		}
	}
	first := sink.frames[20].RGBAAt(0, 0)
	if first.R != 0 || first.B == 0 || first.B == 255 {
		t.Fatalf("first head frame = %+v, want blue fading in over the background", first)
	}
	if got := sink.frames[30].RGBAAt(0, 0); got != colorRGBA(0, 0, 255) {
		t.Fatalf("frame after the head = %+v, want blue", got)
	}
}
