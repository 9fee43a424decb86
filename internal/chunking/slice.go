package chunking

import (
	"math"

	"montage/internal/timeline"
)

// Slice returns the part of tl within [from, to), rebased to start at zero.
// Clips crossing either edge are trimmed: their source window shrinks at
// the clip's speed, their clock keeps the original offset and length, and
// the transition or fade on the cut side is dropped.
func Slice(tl timeline.Timeline, from, to float64) timeline.Timeline {
	out := tl.Clone()
	out.Duration = to - from
	if from == 0 && to >= tl.Duration {
		out.Duration = tl.Duration
		return out
	}
	for ti := range out.Tracks {
		src := out.Tracks[ti].Clips
		clips := make([]timeline.Clip, 0, len(src))
		for _, c := range src {
			if c.End <= from || c.Start >= to {
				continue
			}
			clips = append(clips, trim(c, from, to))
		}
		out.Tracks[ti].Clips = clips
	}
	return out
}

func trim(c timeline.Clip, from, to float64) timeline.Clip {
	head := math.Max(0, from-c.Start)
	tail := math.Max(0, c.End-to)
	speed := c.Speed()
	offset, length := c.Clock()

	out := c
	out.Start = math.Max(c.Start, from) - from
	out.End = math.Min(c.End, to) - from
	if head == 0 && tail == 0 {
		return out
	}
	out.ClipIn = c.ClipIn + head*speed
	out.ClipOut = c.ClipOut - tail*speed
	out.TimeOffset = offset + head
	out.FullDuration = length
	if out.Audio != nil {
		a := *out.Audio
		out.Audio = &a
	}
	if head > 0 {
		out.TransitionIn = nil
		if out.Audio != nil {
			out.Audio.FadeIn = 0
		}
	}
	if tail > 0 {
		out.TransitionOut = nil
		if out.Audio != nil {
			out.Audio.FadeOut = 0
		}
	}
	return out
}
