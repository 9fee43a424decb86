package chunking_test

import (
	"errors"
	"math"
	"slices"
	"testing"

	"montage/internal/chunking"
	"montage/internal/services"
	"montage/internal/timeline"
)

func clip(start, end float64) timeline.Clip {
	return timeline.Clip{
		Start:     start,
		End:       end,
		ClipOut:   end - start,
		Source:    "src",
		Filters:   []string{},
		Transform: timeline.DefaultTransform(),
		Opacity:   1,
	}
}

func hdTimeline(duration float64, tracks ...timeline.Track) timeline.Timeline {
	return timeline.Timeline{
		Version:    timeline.SchemaVersion,
		Duration:   duration,
		FPS:        30,
		Resolution: timeline.Resolution{Width: 1920, Height: 1080},
		Tracks:     tracks,
	}
}

func videoTrack(clips ...timeline.Clip) timeline.Track {
	return timeline.Track{Type: timeline.TrackVideo, Name: "main", Clips: clips, Enabled: true, Opacity: 1}
}

// memoryFor returns an available-memory figure giving chunks of about
// seconds length for tl.
func memoryFor(tl timeline.Timeline, seconds float64) uint64 {
	return uint64(math.Ceil(seconds * chunking.PerSecondCost(tl) / chunking.ChunkFraction))
}

func TestPlanLongFourKTimelineSplits(t *testing.T) {
	tl := timeline.Timeline{
		Version:    timeline.SchemaVersion,
		Duration:   600,
		FPS:        60,
		Resolution: timeline.Resolution{Width: 3840, Height: 2160},
		Tracks:     []timeline.Track{videoTrack(clip(0, 600))},
	}
	plan, err := chunking.NewPlanner(4<<30, 0.8, nil).Plan(tl)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if !(plan.ChunkSeconds < tl.Duration) {
		t.Fatalf("chunk seconds = %v, want < %v", plan.ChunkSeconds, tl.Duration)
	}
	if !plan.Split() {
		t.Fatalf("expected more than one chunk")
	}
	assertContiguous(t, plan, tl)
}

func TestPlanWithinBudgetIsSingleChunk(t *testing.T) {
	tl := hdTimeline(10, videoTrack(clip(0, 10)))
	plan, err := chunking.NewPlanner(64<<30, 0.8, nil).Plan(tl)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(plan.Chunks))
	}
	c := plan.Chunks[0]
	if c.Start != 0 || c.End != 10 || c.Frames != 300 || c.Timeline.Duration != 10 {
		t.Fatalf("chunk = %+v", c)
	}
	if uint64(chunking.Estimate(tl)) != plan.Estimate || plan.Estimate != 2*1920*1080*3*30*10 {
		t.Fatalf("estimate = %d", plan.Estimate)
	}
}

func TestPlanSnapsToClipBoundaries(t *testing.T) {
	tl := hdTimeline(30, videoTrack(clip(0, 8), clip(8, 16), clip(16, 24), clip(24, 30)))
	plan, err := chunking.NewPlanner(memoryFor(tl, 10), 0.8, nil).Plan(tl)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	want := [][2]float64{{0, 8}, {8, 16}, {16, 24}, {24, 30}}
	if len(plan.Chunks) != len(want) {
		t.Fatalf("chunks = %+v", plan.Chunks)
	}
	for i, w := range want {
		c := plan.Chunks[i]
		if c.Index != i || c.Start != w[0] || c.End != w[1] {
			t.Fatalf("chunk %d = [%v,%v), want [%v,%v)", i, c.Start, c.End, w[0], w[1])
		}
		if len(c.Timeline.Tracks[0].Clips) != 1 {
			t.Fatalf("chunk %d clips = %d, want 1", i, len(c.Timeline.Tracks[0].Clips))
		}
	}
}

func TestPlanNeverCutsInsideTransition(t *testing.T) {
	a, b := clip(0, 10), clip(10, 20)
	tr := &timeline.Transition{Type: "fade", Duration: 1}
	a.TransitionOut, b.TransitionIn = tr, tr
	tl := hdTimeline(20, videoTrack(a, b))

	plan, err := chunking.NewPlanner(memoryFor(tl, 9.99), 0.8, nil).Plan(tl)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	// Target 9.96s falls in the 9s..11s window; the cut moves back to 9s.
	if plan.Chunks[0].End != 9 {
		t.Fatalf("first cut = %v, want 9", plan.Chunks[0].End)
	}
	assertOutsideWindows(t, plan, tl)
	assertContiguous(t, plan, tl)
}

func TestPlanNeverCutsInsideAudioFade(t *testing.T) {
	music := clip(0, 30)
	music.Audio = &timeline.AudioSettings{Volume: 1, FadeOut: 5}
	audio := timeline.Track{Type: timeline.TrackAudio, Name: "music", Clips: []timeline.Clip{music}, Enabled: true, Opacity: 1}
	tl := hdTimeline(30, videoTrack(clip(0, 30)), audio)

	plan, err := chunking.NewPlanner(memoryFor(tl, 9), 0.8, nil).Plan(tl)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	assertOutsideWindows(t, plan, tl)
	assertContiguous(t, plan, tl)
	// The third cut would land at 27s; it moves back to the fade start.
	last := plan.Chunks[len(plan.Chunks)-1]
	if last.Start != 25 {
		t.Fatalf("last chunk starts at %v, want 25", last.Start)
	}
}

func TestCutsSkipOverlappingWindows(t *testing.T) {
	opening := clip(0, 6)
	opening.TransitionIn = &timeline.Transition{Type: "fade", Duration: 3}
	music := clip(2, 6)
	music.Audio = &timeline.AudioSettings{Volume: 1, FadeIn: 2}
	audio := timeline.Track{Type: timeline.TrackAudio, Name: "music", Clips: []timeline.Clip{music}, Enabled: true, Opacity: 1}
	tl := hdTimeline(10, videoTrack(opening, clip(6, 10)), audio)
	tl.FPS = 10

	// The transition head spans frames 0..30 and the fade 20..40; the first
	// cut must clear both.
	got := chunking.Cuts(tl, 25)
	want := []int{0, 40, 60, 85, 100}
	if !slices.Equal(got, want) {
		t.Fatalf("cuts = %v, want %v", got, want)
	}
	for _, cut := range got {
		for _, w := range chunking.Windows(tl) {
			if w.Contains(cut) {
				t.Fatalf("cut %d inside window %+v", cut, w)
			}
		}
	}
}

func TestPlanRejectsInvalidTimeline(t *testing.T) {
	tl := hdTimeline(0)
	if _, err := chunking.NewPlanner(1<<30, 0.8, nil).Plan(tl); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("error = %v, want ErrValidation", err)
	}
}

func TestNewPlannerDetectsMemory(t *testing.T) {
	if got := chunking.NewPlanner(0, 0, nil).Available(); got == 0 {
		t.Fatalf("available memory should fall back to a positive figure")
	}
}

func assertContiguous(t *testing.T, plan chunking.Plan, tl timeline.Timeline) {
	t.Helper()
	frames := 0
	for i, c := range plan.Chunks {
		if c.Index != i {
			t.Fatalf("chunk %d has index %d", i, c.Index)
		}
		if i > 0 && c.Start != plan.Chunks[i-1].End {
			t.Fatalf("gap between chunk %d and %d", i-1, i)
		}
		frames += c.Frames
	}
	if plan.Chunks[0].Start != 0 || plan.Chunks[len(plan.Chunks)-1].End != tl.Duration {
		t.Fatalf("plan does not cover [0,%v)", tl.Duration)
	}
	if frames != tl.FrameCount() {
		t.Fatalf("frames = %d, want %d", frames, tl.FrameCount())
	}
}

func assertOutsideWindows(t *testing.T, plan chunking.Plan, tl timeline.Timeline) {
	t.Helper()
	windows := chunking.Windows(tl)
	if len(windows) == 0 {
		t.Fatalf("expected protected windows")
	}
	for _, c := range plan.Chunks[1:] {
		f := timeline.FrameIndex(c.Start, tl.FPS)
		for _, w := range windows {
			if w.Contains(f) {
				t.Fatalf("cut at frame %d inside window %+v", f, w)
			}
		}
	}
}

func TestWindowsOneSidedTransitionKeepsBoundaryFree(t *testing.T) {
	a := clip(0, 5)
	b := clip(5, 10)
	b.TransitionIn = &timeline.Transition{Type: "crossfade", Duration: 1}
	tl := hdTimeline(10, videoTrack(a, b))
	tl.FPS = 10

	got := chunking.Windows(tl)
	want := []chunking.Window{{Lo: 50, Hi: 60}}
	if !slices.Equal(got, want) {
		t.Fatalf("windows = %+v, want %+v", got, want)
	}
	if slices.ContainsFunc(got, func(w chunking.Window) bool { return w.Contains(50) }) {
		t.Fatalf("boundary frame 50 is inside %+v", got)
	}
}
