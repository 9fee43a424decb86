package timeline

import (
	"fmt"
	"math"
	"sort"
)

// Optimizer limits and defaults.
const (
	DefaultTransitionType     = "fade"
	DefaultTransitionDuration = 0.5
	DefaultEasing             = "linear"

	longTimelineSeconds = 300
	maxFilterCount      = 20
	maxAudioTracks      = 3
)

// Optimize returns a repaired copy of t plus advisory suggestions. It runs
// two passes: conflict repair (sort each track by start and push
// overlapping clips to the previous clip's end, keeping their length) and
// transition inference (give adjacent video clips without transitions a
// matching fade pair). Optimize(Optimize(t)) equals Optimize(t).
func Optimize(t Timeline) (Timeline, []string) {
	out := t.Clone()
	var suggestions []string

	for i := range out.Tracks {
		repairOverlaps(&out.Tracks[i])
	}
	if end := latestEnd(out); end > out.Duration {
		suggestions = append(suggestions, fmt.Sprintf("duration extended from %.2fs to %.2fs to fit shifted clips", out.Duration, end))
		out.Duration = end
	}

	kind, length := inferenceDefaults(out.Metadata)
	for i := range out.Tracks {
		if out.Tracks[i].Type == TrackVideo {
			inferTransitions(&out.Tracks[i], kind, length)
		}
	}

	return out, append(suggestions, Suggestions(out)...)
}

// Suggestions lists non-blocking advice about timeline size.
func Suggestions(t Timeline) []string {
	var out []string
	if t.Duration > longTimelineSeconds {
		out = append(out, fmt.Sprintf("timeline runs %.0fs (over %ds); rendering will be chunked, consider splitting it", t.Duration, longTimelineSeconds))
	}
	filters, audio := 0, 0
	for _, track := range t.Tracks {
		if track.Type == TrackAudio {
			audio++
		}
		for _, clip := range track.Clips {
			filters += len(clip.Filters)
			if clip.ArtisticStyle != nil {
				filters += len(clip.ArtisticStyle.Filters)
			}
		}
	}
	if filters > maxFilterCount {
		out = append(out, fmt.Sprintf("%d filters in use (over %d); expect slow rendering", filters, maxFilterCount))
	}
	if audio > maxAudioTracks {
		out = append(out, fmt.Sprintf("%d audio tracks (over %d); consider pre-mixing background audio", audio, maxAudioTracks))
	}
	return out
}

func repairOverlaps(track *Track) {
	sort.SliceStable(track.Clips, func(i, j int) bool {
		return track.Clips[i].Start < track.Clips[j].Start
	})
	for i := 1; i < len(track.Clips); i++ {
		prev := track.Clips[i-1]
		clip := &track.Clips[i]
		if clip.Start >= prev.End-timeTolerance {
			continue
		}
		shift := prev.End - clip.Start
		speed := clip.Speed()
		length := clip.Duration()
		clip.Start = prev.End
		clip.End = clip.Start + length
		clip.ClipIn += shift * speed
		clip.ClipOut += shift * speed
	}
}

func latestEnd(t Timeline) float64 {
	end := 0.0
	for _, track := range t.Tracks {
		for _, clip := range track.Clips {
			end = math.Max(end, clip.End)
		}
	}
	return end
}

func inferenceDefaults(meta Metadata) (string, float64) {
	kind := DefaultTransitionType
	if meta.TransitionEffect != "" {
		kind = meta.TransitionEffect
	}
	length := DefaultTransitionDuration
	if meta.Rhythm != nil && meta.Rhythm.TransitionDuration > 0 {
		length = meta.Rhythm.TransitionDuration
	}
	return kind, length
}

// inferTransitions fills missing boundary transitions between clips that
// touch. When one side already declares a transition the other side gets a
// copy, so both clips blend over the same window.
func inferTransitions(track *Track, kind string, length float64) {
	for i := 1; i < len(track.Clips); i++ {
		a := &track.Clips[i-1]
		b := &track.Clips[i]
		if math.Abs(b.Start-a.End) > timeTolerance {
			continue
		}
		limit := math.Min(a.Duration(), b.Duration()) / 2
		switch {
		case a.TransitionOut == nil && b.TransitionIn == nil:
			tr := Transition{Type: kind, Duration: math.Min(length, limit), Easing: DefaultEasing}
			a.TransitionOut = &tr
			in := tr
			b.TransitionIn = &in
		case a.TransitionOut == nil:
			tr := *b.TransitionIn
			tr.Duration = math.Min(tr.Duration, limit)
			a.TransitionOut = &tr
		case b.TransitionIn == nil:
			tr := *a.TransitionOut
			tr.Duration = math.Min(tr.Duration, limit)
			b.TransitionIn = &tr
		}
	}
}
