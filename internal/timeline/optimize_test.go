package timeline_test

import (
	"reflect"
	"strings"
	"testing"

	"montage/internal/timeline"
)

func TestOptimizeShiftsOverlappingClip(t *testing.T) {
	tl := sampleTimeline(videoTrack(clip(0, 10), clip(8, 20)))

	got, _ := timeline.Optimize(tl)
	b := got.Tracks[0].Clips[1]
	if b.Start != 10 || b.End != 22 {
		t.Fatalf("B = [%v,%v], want [10,22]", b.Start, b.End)
	}
	if b.ClipIn != 2 || b.ClipOut != 14 {
		t.Fatalf("B source window = [%v,%v], want [2,14]", b.ClipIn, b.ClipOut)
	}
	if got.Duration != 30 {
		t.Fatalf("duration = %v, want 30", got.Duration)
	}
	if tl.Tracks[0].Clips[1].Start != 8 {
		t.Fatal("Optimize mutated its input")
	}
}

func TestOptimizeExtendsDuration(t *testing.T) {
	tl := sampleTimeline(videoTrack(clip(0, 20), clip(15, 30)))

	got, suggestions := timeline.Optimize(tl)
	if got.Duration != 35 {
		t.Fatalf("duration = %v, want 35", got.Duration)
	}
	if len(suggestions) == 0 || !strings.Contains(suggestions[0], "extended") {
		t.Fatalf("expected extension suggestion, got %v", suggestions)
	}
	if err := timeline.Validate(got); err != nil {
		t.Fatalf("optimized timeline invalid: %v", err)
	}
}

func TestOptimizeSortsAndNeverOverlaps(t *testing.T) {
	tl := sampleTimeline(videoTrack(clip(12, 18), clip(0, 6), clip(4, 9), clip(5, 7)))
	tl.Duration = 60

	got, _ := timeline.Optimize(tl)
	clips := got.Tracks[0].Clips
	for i := 1; i < len(clips); i++ {
		if clips[i].Start < clips[i-1].End {
			t.Fatalf("clips %d and %d overlap: [%v,%v) [%v,%v)", i-1, i, clips[i-1].Start, clips[i-1].End, clips[i].Start, clips[i].End)
		}
	}
	if clips[1].Duration() != 5 || clips[2].Duration() != 2 {
		t.Fatalf("durations not preserved: %v %v", clips[1].Duration(), clips[2].Duration())
	}
}

func TestOptimizeIdempotent(t *testing.T) {
	audio := timeline.Track{Type: timeline.TrackAudio, Name: "music", Enabled: true, Opacity: 1,
		Clips: []timeline.Clip{clip(0, 20), clip(10, 25)}}
	withTransition := clip(20, 24)
	withTransition.TransitionIn = &timeline.Transition{Type: "wipe", Duration: 3}
	tl := sampleTimeline(videoTrack(clip(5, 12), clip(0, 10), clip(18, 20), withTransition), audio)
	tl.Duration = 40

	once, _ := timeline.Optimize(tl)
	twice, _ := timeline.Optimize(once)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("optimize not idempotent\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestOptimizeInfersTransitions(t *testing.T) {
	tl := sampleTimeline(videoTrack(clip(0, 10), clip(10, 20), clip(22, 30)))
	tl.Metadata.TransitionEffect = "dissolve"
	tl.Metadata.Rhythm = &timeline.Rhythm{Name: "slow", TransitionDuration: 1.5}

	got, _ := timeline.Optimize(tl)
	clips := got.Tracks[0].Clips
	if clips[0].TransitionIn != nil {
		t.Fatal("first clip got a leading transition")
	}
	out, in := clips[0].TransitionOut, clips[1].TransitionIn
	if out == nil || in == nil {
		t.Fatal("adjacent clips missing inferred transitions")
	}
	if out.Type != "dissolve" || out.Duration != 1.5 || *out != *in {
		t.Fatalf("unexpected transitions out=%+v in=%+v", out, in)
	}
	if clips[1].TransitionOut != nil || clips[2].TransitionIn != nil {
		t.Fatal("non-adjacent clips received transitions")
	}
}

func TestOptimizeDefaultFadeClampedToHalfClip(t *testing.T) {
	tl := sampleTimeline(videoTrack(clip(0, 0.6), clip(0.6, 5)))

	got, _ := timeline.Optimize(tl)
	tr := got.Tracks[0].Clips[0].TransitionOut
	if tr == nil || tr.Type != timeline.DefaultTransitionType {
		t.Fatalf("expected default fade, got %+v", tr)
	}
	if tr.Duration != 0.3 {
		t.Fatalf("duration = %v, want 0.3", tr.Duration)
	}
}

func TestOptimizeCopiesOneSidedTransition(t *testing.T) {
	b := clip(10, 20)
	b.TransitionIn = &timeline.Transition{Type: "slide", Duration: 2, Easing: "ease-in"}
	tl := sampleTimeline(videoTrack(clip(0, 10), b))

	got, _ := timeline.Optimize(tl)
	out := got.Tracks[0].Clips[0].TransitionOut
	if out == nil || *out != *b.TransitionIn {
		t.Fatalf("transition_out = %+v, want copy of %+v", out, b.TransitionIn)
	}
}

func TestOptimizeSkipsNonVideoTracks(t *testing.T) {
	text := timeline.Track{Type: timeline.TrackText, Name: "subs", Enabled: true, Opacity: 1}
	a, b := clip(0, 5), clip(5, 10)
	a.Content, b.Content = "one", "two"
	text.Clips = []timeline.Clip{a, b}

	got, _ := timeline.Optimize(sampleTimeline(text))
	if got.Tracks[0].Clips[0].TransitionOut != nil {
		t.Fatal("text track received an inferred transition")
	}
}

func TestSuggestions(t *testing.T) {
	heavy := clip(0, 10)
	for range 21 {
		heavy.Filters = append(heavy.Filters, "blur")
	}
	tracks := []timeline.Track{videoTrack(heavy)}
	for range 4 {
		tracks = append(tracks, timeline.Track{Type: timeline.TrackAudio, Name: "a", Enabled: true, Opacity: 1})
	}
	tl := sampleTimeline(tracks...)
	tl.Duration = 301

	got := timeline.Suggestions(tl)
	if len(got) != 3 {
		t.Fatalf("expected 3 suggestions, got %d: %v", len(got), got)
	}
	if quiet := timeline.Suggestions(sampleTimeline(videoTrack(clip(0, 5)))); len(quiet) != 0 {
		t.Fatalf("unexpected suggestions: %v", quiet)
	}
}
