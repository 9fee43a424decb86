package features_test

import (
	"errors"
	"reflect"
	"slices"
	"testing"

	"montage/internal/features"
	"montage/internal/services"
	"montage/internal/timeline"
)

func mustExtract(t *testing.T, text string) features.Features {
	t.Helper()
	f, err := features.Extract(text)
	if err != nil {
		t.Fatalf("Extract(%q): %v", text, err)
	}
	return f
}

func TestExtractFadeAndSubtitles(t *testing.T) {
	f := mustExtract(t, "make a 30-second video with fade in/out and subtitles")

	if f.Duration != 30 || !f.DurationStated {
		t.Fatalf("duration = %v (stated=%v), want 30", f.Duration, f.DurationStated)
	}
	if len(f.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(f.Segments))
	}
	seg := f.Segments[0]
	want := []string{features.FilterFadeIn, features.FilterFadeOut, features.FilterSubtitle}
	if !reflect.DeepEqual(seg.Effects, want) {
		t.Fatalf("effects = %v, want %v", seg.Effects, want)
	}
	if seg.Start != 0 || seg.End != 30 {
		t.Fatalf("segment span = [%v,%v], want [0,30]", seg.Start, seg.End)
	}
	if !f.Subtitles() {
		t.Fatal("subtitles not detected")
	}
	if f.Transition != "" || f.Music {
		t.Fatalf("unexpected transition=%q music=%v", f.Transition, f.Music)
	}
	if f.Rhythm != features.DefaultRhythm {
		t.Fatalf("rhythm = %+v, want default", f.Rhythm)
	}
}

func TestExtractRejectsUnusableInput(t *testing.T) {
	for _, input := range []string{"", "  hi ", "12 34 !!", "?!"} {
		_, err := features.Extract(input)
		if err == nil {
			t.Fatalf("Extract(%q) succeeded, want error", input)
		}
		var verr *timeline.ValidationError
		if !errors.As(err, &verr) || !errors.Is(err, services.ErrValidation) {
			t.Fatalf("Extract(%q) error = %v, want ValidationError", input, err)
		}
	}
}

func TestExtractDurationPrecedence(t *testing.T) {
	tests := []struct {
		text   string
		want   float64
		stated bool
	}{
		{"a 1m 30s product teaser", 90, true},
		{"2 minutes and 15 seconds of travel shots", 135, true},
		{"a 2 minute recap with a 10 second intro", 120, true},
		{"a 45 second teaser", 45, true},
		{"thirty seconds of beach footage", 30, true},
		{"a 2.5 second sting", 2.5, true},
		{"a short clip of the mountains", features.DefaultDuration, false},
	}
	for _, tt := range tests {
		f := mustExtract(t, tt.text)
		if f.Duration != tt.want || f.DurationStated != tt.stated {
			t.Errorf("Extract(%q) duration = %v stated=%v, want %v stated=%v", tt.text, f.Duration, f.DurationStated, tt.want, tt.stated)
		}
	}
}

func TestExtractRangesDoNotSetDuration(t *testing.T) {
	f := mustExtract(t, "0-5 seconds: sunrise over the hills. Then the city skyline")
	if f.Duration != 30 || f.DurationStated {
		t.Fatalf("duration = %v stated=%v, want default", f.Duration, f.DurationStated)
	}
	if got := f.Segments; got[0].Start != 0 || got[0].End != 5 || got[1].Start != 5 || got[1].End != 30 {
		t.Fatalf("segments = [%v,%v] [%v,%v], want [0,5] [5,30]", got[0].Start, got[0].End, got[1].Start, got[1].End)
	}
}

func TestExtractRangeExtendsDefaultDuration(t *testing.T) {
	f := mustExtract(t, "Intro card. 10 to 45 seconds: interview footage")
	if f.Duration != 45 {
		t.Fatalf("duration = %v, want 45", f.Duration)
	}
}

func TestExtractEvenSplit(t *testing.T) {
	f := mustExtract(t, "Sunrise over the hills. Busy street at noon. Quiet harbor, 30 seconds total.")
	if len(f.Segments) != 3 {
		t.Fatalf("segments = %d, want 3", len(f.Segments))
	}
	for i, seg := range f.Segments {
		if seg.Start != float64(i*10) || seg.End != float64(i*10+10) {
			t.Fatalf("segment %d = [%v,%v], want [%d,%d]", i, seg.Start, seg.End, i*10, i*10+10)
		}
	}
}

func TestExtractLastAndOpenRanges(t *testing.T) {
	f := mustExtract(t, "Intro with the logo. From second 10 show the product with blur. Credits in the last 5 seconds.")
	want := [][2]float64{{0, 10}, {10, 25}, {25, 30}}
	for i, seg := range f.Segments {
		if seg.Start != want[i][0] || seg.End != want[i][1] {
			t.Fatalf("segment %d = [%v,%v], want %v", i, seg.Start, seg.End, want[i])
		}
	}
	if !reflect.DeepEqual(f.Segments[1].Effects, []string{features.FilterBlur}) {
		t.Fatalf("segment 1 effects = %v", f.Segments[1].Effects)
	}
}

func TestExtractTransitionSuppressesFilters(t *testing.T) {
	tests := []struct {
		text       string
		transition string
		effects    []string
	}{
		{"flip between the shots", features.TransitionFlip, nil},
		{"use a flip transition and rotate the logo", features.TransitionFlip, []string{features.FilterRotate}},
		{"crossfade the holiday photos", features.TransitionCrossfade, nil},
		{"zoom transition into a zoomed close-up", features.TransitionZoom, []string{features.FilterZoom}},
		{"dissolve between scenes and fade out at the end", features.TransitionDissolve, []string{features.FilterFadeOut}},
		{"spin the title", "", []string{features.FilterRotate}},
	}
	for _, tt := range tests {
		f := mustExtract(t, tt.text)
		if f.Transition != tt.transition {
			t.Errorf("Extract(%q) transition = %q, want %q", tt.text, f.Transition, tt.transition)
		}
		if !reflect.DeepEqual(f.Segments[0].Effects, tt.effects) {
			t.Errorf("Extract(%q) effects = %v, want %v", tt.text, f.Segments[0].Effects, tt.effects)
		}
	}
}

func TestExtractFirstMatchTables(t *testing.T) {
	f := mustExtract(t, "a fast paced cinematic anime video in cyberpunk style, warm neon colors, with background music")
	if f.Rhythm.Name != "fast" {
		t.Fatalf("rhythm = %q, want fast", f.Rhythm.Name)
	}
	if f.Theme == nil || f.Theme.Name != "warm" {
		t.Fatalf("theme = %+v, want warm", f.Theme)
	}
	if f.Style != "cinematic" {
		t.Fatalf("style = %q, want cinematic", f.Style)
	}
	if !f.Music {
		t.Fatal("music not detected")
	}

	f = mustExtract(t, "anime clip with a cyberpunk look")
	if f.Style != "cyberpunk" {
		t.Fatalf("style = %q, want cyberpunk (table order)", f.Style)
	}
}

func TestExtractEffectDurations(t *testing.T) {
	f := mustExtract(t, "fade in for 2 seconds over the opening shot")
	d, ok := f.Segments[0].EffectDuration.(features.Uniform)
	if !ok || d != 2 {
		t.Fatalf("effect duration = %#v, want Uniform(2)", f.Segments[0].EffectDuration)
	}
	if f.Duration != features.DefaultDuration {
		t.Fatalf("effect duration leaked into total: %v", f.Duration)
	}

	f = mustExtract(t, "fade in for 1 second and blur for 3 seconds")
	per, ok := f.Segments[0].EffectDuration.(features.PerKey)
	if !ok {
		t.Fatalf("effect duration = %#v, want PerKey", f.Segments[0].EffectDuration)
	}
	if v, _ := per.For(features.FilterFadeIn); v != 1 {
		t.Fatalf("fade_in duration = %v, want 1", v)
	}
	if v, _ := per.For(features.FilterBlur); v != 3 {
		t.Fatalf("blur duration = %v, want 3", v)
	}
	if _, ok := per.For(features.FilterZoom); ok {
		t.Fatal("zoom should have no duration")
	}
}

func TestExtractSubtitlePositionAndQuotes(t *testing.T) {
	f := mustExtract(t, `Put the caption "fade away" at the top`)
	seg := f.Segments[0]
	if !reflect.DeepEqual(seg.Effects, []string{features.FilterSubtitle}) {
		t.Fatalf("effects = %v, want only subtitle", seg.Effects)
	}
	if seg.Position != "top" {
		t.Fatalf("position = %q, want top", seg.Position)
	}
}

func TestExtractDecimalDoesNotSplit(t *testing.T) {
	f := mustExtract(t, "A 2.5 minute recap. Then the outro")
	if len(f.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(f.Segments))
	}
	if f.Duration != 150 {
		t.Fatalf("duration = %v, want 150", f.Duration)
	}
}

// requireTiled checks that segments cover [0, total) without holes or
// overlaps.
func requireTiled(t *testing.T, segments []features.Segment, total float64) {
	t.Helper()
	sorted := slices.Clone(segments)
	slices.SortFunc(sorted, func(a, b features.Segment) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		}
		return 0
	})
	cursor := 0.0
	for _, seg := range sorted {
		if seg.Start != cursor {
			t.Fatalf("segment %d starts at %v, want %v (segments %+v)", seg.Index, seg.Start, cursor, sorted)
		}
		if seg.End <= seg.Start {
			t.Fatalf("segment %d is empty: [%v,%v]", seg.Index, seg.Start, seg.End)
		}
		cursor = seg.End
	}
	if cursor != total {
		t.Fatalf("segments end at %v, want %v", cursor, total)
	}
}

func TestExtractUntimedSegmentsTileAroundRange(t *testing.T) {
	f := mustExtract(t, "A 30 second video. Show the city from 10 to 20 seconds. Then the beach. Then the mountains.")
	if f.Duration != 30 || len(f.Segments) != 4 {
		t.Fatalf("duration = %v, segments = %d, want 30 and 4", f.Duration, len(f.Segments))
	}
	requireTiled(t, f.Segments, 30)
	want := [][2]float64{{0, 10}, {10, 20}, {20, 25}, {25, 30}}
	for i, seg := range f.Segments {
		if seg.Start != want[i][0] || seg.End != want[i][1] {
			t.Fatalf("segment %d = [%v,%v], want %v", i, seg.Start, seg.End, want[i])
		}
	}
}

func TestExtractRangeAbsorbsUnfillableGap(t *testing.T) {
	f := mustExtract(t, "A 30 second video. Show the city from 10 to 20 seconds.")
	requireTiled(t, f.Segments, 30)
	if got := f.Segments[1]; got.Start != 10 || got.End != 30 {
		t.Fatalf("city = [%v,%v], want [10,30]", got.Start, got.End)
	}
}

func TestExtractEmptyGapBorrowsSegment(t *testing.T) {
	f := mustExtract(t, "From 20 to 25 seconds the city. Then the beach. Then the mountains. 30 seconds total.")
	requireTiled(t, f.Segments, 30)
	// Every untimed sentence follows the city, so the opening gap takes the
	// first of them.
	want := [][2]float64{{20, 25}, {0, 20}, {25, 27.5}, {27.5, 30}}
	for i, seg := range f.Segments {
		if seg.Start != want[i][0] || seg.End != want[i][1] {
			t.Fatalf("segment %d = [%v,%v], want %v", i, seg.Start, seg.End, want[i])
		}
	}
}
