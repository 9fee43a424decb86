package engine

import (
	"context"
	"math"

	"montage/internal/media"
	"montage/internal/services"
	"montage/internal/timeline"
)

func (j *job) mixAudio(ctx context.Context) error {
	rate := j.e.sampleRate
	total := media.SampleFrames(rate, j.tl.Duration)
	mix := make([]float32, total*media.Channels)

	for ti, track := range j.tl.Tracks {
		if !track.Enabled || track.Type != timeline.TrackAudio {
			continue
		}
		for ci, clip := range track.Clips {
			h, ok := j.handles[clipKey{ti, ci}]
			if !ok || media.IsPlaceholder(h) {
				continue
			}
			buf, err := clipAudio(ctx, h, clip, rate)
			if err != nil {
				if ctx.Err() != nil {
					return services.Wrap(services.ErrCanceled, "mix", clip.Source, "decode audio", ctx.Err())
				}
				j.substitute(ti, ci, services.Wrap(services.ErrResourceMissing, "mix", clip.Source, "audio decode failed", err))
				continue
			}
			settings := timeline.AudioSettings{Volume: 1}
			if clip.Audio != nil {
				settings = *clip.Audio
			}
			mixInto(mix, buf.Samples, media.SampleFrames(rate, clip.Start), rate, settings)
		}
	}
	for i, v := range mix {
		mix[i] = float32(math.Max(-1, math.Min(1, float64(v))))
	}
	j.audio = media.AudioBuffer{SampleRate: rate, Samples: mix}
	j.result.AudioFrames = j.audio.Frames()
	return nil
}

// clipAudio decodes the clip's source span stretched or looped to exactly
// cover its timeline span. A looped clip whose clipIn lies past the end of
// the source (a later piece of a split clip) starts at the matching phase.
func clipAudio(ctx context.Context, h media.Handle, clip timeline.Clip, rate int) (media.AudioBuffer, error) {
	want := media.SampleFrames(rate, clip.Duration())
	d := h.Duration()
	if clip.Audio == nil || !clip.Audio.Loop || d <= 0 || clip.ClipOut <= d {
		buf, err := h.Audio(ctx, clip.ClipIn, clip.ClipOut, rate)
		if err != nil {
			return media.AudioBuffer{}, err
		}
		if buf.Frames() != want {
			buf.Samples = Resample(buf.Samples, want)
		}
		return buf, nil
	}

	in := clip.ClipIn
	if in >= d {
		in = math.Mod(in, d)
	}
	first, err := h.Audio(ctx, in, d, rate)
	if err != nil {
		return media.AudioBuffer{}, err
	}
	samples := make([]float32, 0, want*media.Channels)
	samples = append(samples, first.Samples[:min(len(first.Samples), want*media.Channels)]...)
	if rest := want - len(samples)/media.Channels; rest > 0 {
		whole, err := h.Audio(ctx, 0, d, rate)
		if err != nil {
			return media.AudioBuffer{}, err
		}
		samples = append(samples, LoopSamples(whole.Samples, rest)...)
	}
	return media.AudioBuffer{SampleRate: rate, Samples: samples}, nil
}

// LoopSamples repeats interleaved stereo samples until frames frames are
// filled. Empty input yields silence.
func LoopSamples(samples []float32, frames int) []float32 {
	out := make([]float32, frames*media.Channels)
	if len(samples) < media.Channels {
		return out
	}
	n := len(samples) - len(samples)%media.Channels
	for i := 0; i < len(out); i += n {
		copy(out[i:], samples[:n])
	}
	return out
}

// Resample linearly stretches interleaved stereo samples to frames frames.
func Resample(samples []float32, frames int) []float32 {
	out := make([]float32, frames*media.Channels)
	in := len(samples) / media.Channels
	if in == 0 || frames == 0 {
		return out
	}
	if in == frames {
		copy(out, samples)
		return out
	}
	ratio := float64(in) / float64(frames)
	for i := range frames {
		pos := float64(i) * ratio
		k := int(pos)
		frac := float32(pos - float64(k))
		next := min(k+1, in-1)
		for c := range media.Channels {
			a := samples[k*media.Channels+c]
			b := samples[next*media.Channels+c]
			out[i*media.Channels+c] = a + (b-a)*frac
		}
	}
	return out
}

// Envelope returns the gain of sample frame i of n under linear fades.
func Envelope(i, n, rate int, fadeIn, fadeOut float64) float64 {
	g := 1.0
	t := float64(i) / float64(rate)
	if fadeIn > 0 && t < fadeIn {
		g = math.Min(g, t/fadeIn)
	}
	if remaining := float64(n-i) / float64(rate); fadeOut > 0 && remaining < fadeOut {
		g = math.Min(g, remaining/fadeOut)
	}
	return g
}

func mixInto(dst, src []float32, offset, rate int, s timeline.AudioSettings) {
	n := len(src) / media.Channels
	dstFrames := len(dst) / media.Channels
	for i := range n {
		at := offset + i
		if at < 0 {
			continue
		}
		if at >= dstFrames {
			break
		}
		g := float32(s.Volume * Envelope(i, n, rate, s.FadeIn, s.FadeOut))
		for c := range media.Channels {
			dst[at*media.Channels+c] += src[i*media.Channels+c] * g
		}
	}
}
