// Package builder assembles a canonical Timeline from extracted features:
// exactly one video track, a text track when subtitles are implied, and a
// looping music track when background music is implied.
package builder

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"

	"montage/internal/features"
	"montage/internal/styles"
	"montage/internal/textutil"
	"montage/internal/timeline"
)

// Defaults for generated timelines.
const (
	DefaultFPS    = 30
	DefaultWidth  = 1920
	DefaultHeight = 1080

	DefaultBackground = "#000000"
	SubtitlePosition  = "bottom"
	MusicSource       = "music"
	MusicVolume       = 0.8
	MusicFade         = 1.0
	TintStrength      = 0.15

	titleLimit    = 60
	subtitleLimit = 80
)

// Track names.
const (
	VideoTrackName = "main"
	TextTrackName  = "subtitles"
	AudioTrackName = "music"
)

// Builder turns Features into a Timeline. It is safe for concurrent use.
type Builder struct {
	catalog    *styles.Catalog
	fps        float64
	resolution timeline.Resolution
	newID      func() string
}

// Option customizes a Builder.
type Option func(*Builder)

// WithFormat sets the output frame rate and resolution.
func WithFormat(fps float64, width, height int) Option {
	return func(b *Builder) {
		if fps > 0 {
			b.fps = fps
		}
		if width > 0 && height > 0 {
			b.resolution = timeline.Resolution{Width: width, Height: height}
		}
	}
}

// WithIDGenerator replaces the uuid generator used for timeline ids.
func WithIDGenerator(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// New returns a Builder resolving artistic styles through catalog. A nil
// catalog means the built-in styles.
func New(catalog *styles.Catalog, opts ...Option) *Builder {
	if catalog == nil {
		catalog = styles.Builtin()
	}
	b := &Builder{
		catalog:    catalog,
		fps:        DefaultFPS,
		resolution: timeline.Resolution{Width: DefaultWidth, Height: DefaultHeight},
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles and validates the timeline for f.
func (b *Builder) Build(f features.Features) (timeline.Timeline, error) {
	t := timeline.Timeline{
		Version:         timeline.SchemaVersion,
		Metadata:        b.metadata(f),
		Duration:        f.Duration,
		FPS:             b.fps,
		Resolution:      b.resolution,
		BackgroundColor: DefaultBackground,
	}
	if f.Theme != nil {
		t.BackgroundColor = f.Theme.Hex
	}

	segments := append([]features.Segment(nil), f.Segments...)
	sort.SliceStable(segments, func(i, j int) bool { return segments[i].Start < segments[j].Start })

	style, hasStyle := b.catalog.Lookup(f.Style)
	video := timeline.Track{Type: timeline.TrackVideo, Name: VideoTrackName, Enabled: true, Opacity: 1, Clips: []timeline.Clip{}}
	for _, seg := range segments {
		if seg.Length() <= 0 {
			continue
		}
		clip := baseClip(seg)
		clip.Source = fmt.Sprintf("segment-%02d", seg.Index+1)
		for _, id := range seg.Effects {
			if id == features.FilterSubtitle {
				continue
			}
			clip.Filters = append(clip.Filters, id)
		}
		if f.Theme != nil {
			clip.Filters = append(clip.Filters, "tint")
			setParams(&clip, "tint", themeTint(f.Theme.Hex))
		}
		applyDurations(&clip, seg.EffectDuration)
		if hasStyle {
			clip.ArtisticStyle = style.ArtisticStyle()
			for id, params := range style.Params {
				if _, ok := clip.Params[id]; !ok {
					setParams(&clip, id, params)
				}
			}
		}
		video.Clips = append(video.Clips, clip)
	}
	t.Tracks = append(t.Tracks, video)

	if f.Subtitles() {
		text := timeline.Track{Type: timeline.TrackText, Name: TextTrackName, Enabled: true, Opacity: 1, Clips: []timeline.Clip{}}
		for _, seg := range segments {
			content := SubtitleText(seg.Text)
			if content == "" || seg.Length() <= 0 {
				continue
			}
			clip := baseClip(seg)
			clip.Content = content
			position := seg.Position
			if position == "" {
				position = SubtitlePosition
			}
			if pos, err := timeline.ParsePosition(position); err == nil {
				clip.Transform.Position = pos
			}
			text.Clips = append(text.Clips, clip)
		}
		if len(text.Clips) > 0 {
			t.Tracks = append(t.Tracks, text)
		}
	}

	if f.Music {
		fade := math.Min(MusicFade, f.Duration/2)
		clip := timeline.Clip{
			Start:     0,
			End:       f.Duration,
			ClipIn:    0,
			ClipOut:   f.Duration,
			Source:    MusicSource,
			Filters:   []string{},
			Transform: timeline.DefaultTransform(),
			Opacity:   1,
			Audio:     &timeline.AudioSettings{Volume: MusicVolume, Loop: true, FadeIn: fade, FadeOut: fade},
		}
		t.Tracks = append(t.Tracks, timeline.Track{
			Type: timeline.TrackAudio, Name: AudioTrackName, Enabled: true, Opacity: 1,
			Clips: []timeline.Clip{clip},
		})
	}

	if err := timeline.Validate(t); err != nil {
		return timeline.Timeline{}, fmt.Errorf("build timeline: %w", err)
	}
	return t, nil
}

func (b *Builder) metadata(f features.Features) timeline.Metadata {
	meta := timeline.Metadata{
		ID:               b.newID(),
		Title:            "Untitled",
		Description:      f.Text,
		TransitionEffect: f.Transition,
		Rhythm: &timeline.Rhythm{
			Name:               f.Rhythm.Name,
			CutsPerMinute:      f.Rhythm.CutsPerMinute,
			TransitionDuration: f.Rhythm.TransitionDuration,
		},
	}
	if len(f.Segments) > 0 {
		if title := textutil.Truncate(textutil.CleanSubtitle(f.Segments[0].Text), titleLimit); title != "" {
			meta.Title = title
		}
	}
	meta.Tags = append(meta.Tags, f.Rhythm.Name)
	if f.Style != "" {
		meta.Tags = append(meta.Tags, f.Style)
	}
	if f.Theme != nil {
		meta.ColorTheme = f.Theme.Name
		meta.Tags = append(meta.Tags, f.Theme.Name)
	}
	if f.Transition != "" {
		meta.Tags = append(meta.Tags, f.Transition)
	}
	return meta
}

func baseClip(seg features.Segment) timeline.Clip {
	return timeline.Clip{
		Start:     seg.Start,
		End:       seg.End,
		ClipIn:    0,
		ClipOut:   seg.Length(),
		Filters:   []string{},
		Transform: timeline.DefaultTransform(),
		Opacity:   1,
	}
}

func setParams(clip *timeline.Clip, id string, params timeline.FilterParams) {
	if clip.Params == nil {
		clip.Params = make(map[string]timeline.FilterParams)
	}
	merged := clip.Params[id]
	if merged == nil {
		merged = timeline.FilterParams{}
	}
	for k, v := range params {
		merged[k] = v
	}
	clip.Params[id] = merged
}

// applyDurations resolves the tagged effect duration once, into the clip's
// per-filter params.
func applyDurations(clip *timeline.Clip, d features.Duration) {
	if d == nil {
		return
	}
	for _, id := range clip.Filters {
		if v, ok := d.For(id); ok {
			setParams(clip, id, timeline.FilterParams{"duration": math.Min(v, clip.Duration())})
		}
	}
}

func themeTint(hex string) timeline.FilterParams {
	rgb, err := timeline.ParseHexColor(hex)
	if err != nil {
		return timeline.FilterParams{"strength": TintStrength}
	}
	return timeline.FilterParams{
		"r":        float64(rgb[0]),
		"g":        float64(rgb[1]),
		"b":        float64(rgb[2]),
		"strength": TintStrength,
	}
}

var (
	doubleQuoted = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|「([^」]+)」`)
	singleQuoted = regexp.MustCompile(`(?:^|\s)'([^']+)'(?:$|[\s.,!?:;])`)
)

// SubtitleText derives on-screen text for a sentence: the first quoted
// span, else the text after the first colon, else the cleaned sentence.
func SubtitleText(sentence string) string {
	if m := doubleQuoted.FindStringSubmatch(sentence); m != nil {
		for _, g := range m[1:] {
			if s := textutil.CleanSubtitle(g); s != "" {
				return textutil.Truncate(s, subtitleLimit)
			}
		}
	}
	if m := singleQuoted.FindStringSubmatch(sentence); m != nil {
		if s := textutil.CleanSubtitle(m[1]); s != "" {
			return textutil.Truncate(s, subtitleLimit)
		}
	}
	if _, tail, ok := strings.Cut(sentence, ":"); ok {
		if s := textutil.CleanSubtitle(tail); s != "" {
			return textutil.Truncate(s, subtitleLimit)
		}
	}
	return textutil.Truncate(textutil.CleanSubtitle(sentence), subtitleLimit)
}
