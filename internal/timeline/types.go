package timeline

import (
	"maps"
	"slices"
)

// SchemaVersion is the document version written by Encode.
const SchemaVersion = "1.0"

// TrackType identifies how a track participates in compositing and mixing.
type TrackType string

const (
	TrackVideo  TrackType = "video"
	TrackAudio  TrackType = "audio"
	TrackText   TrackType = "text"
	TrackEffect TrackType = "effect"
)

// Valid reports whether t is one of the known track types.
func (t TrackType) Valid() bool {
	switch t {
	case TrackVideo, TrackAudio, TrackText, TrackEffect:
		return true
	}
	return false
}

// CompositePriority orders track types bottom to top: video base, text
// overlay, effect overlay. Audio tracks never composite.
func (t TrackType) CompositePriority() int {
	switch t {
	case TrackVideo:
		return 0
	case TrackText:
		return 1
	case TrackEffect:
		return 2
	default:
		return -1
	}
}

// BlendMode selects the per-pixel compositing operator.
type BlendMode string

const (
	BlendNormal   BlendMode = ""
	BlendAdd      BlendMode = "add"
	BlendMultiply BlendMode = "multiply"
	BlendScreen   BlendMode = "screen"
)

// Valid reports whether m is a supported blend mode. "normal" is accepted as
// an alias for the empty mode.
func (m BlendMode) Valid() bool {
	switch m {
	case BlendNormal, "normal", BlendAdd, BlendMultiply, BlendScreen:
		return true
	}
	return false
}

// Resolution is the output frame size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Transition is a boundary-local blend applied only within the leading or
// trailing Duration seconds of a clip.
type Transition struct {
	Type     string  `json:"type"`
	Duration float64 `json:"duration"`
	Easing   string  `json:"easing,omitempty"`
}

// ColorGrading carries the grading defaults of an artistic style.
type ColorGrading struct {
	Brightness float64 `json:"brightness,omitempty"`
	Contrast   float64 `json:"contrast,omitempty"`
	Saturation float64 `json:"saturation,omitempty"`
}

// IsZero reports whether no grading adjustment is set.
func (g ColorGrading) IsZero() bool {
	return g == ColorGrading{}
}

// ArtisticStyle is a named bundle of filters, grading parameters and a
// default transition family. Builders resolve it to concrete filters; a
// hand-authored document may carry only the name.
type ArtisticStyle struct {
	Name       string        `json:"name"`
	Filters    []string      `json:"filters,omitempty"`
	Grading    *ColorGrading `json:"color_grading,omitempty"`
	Transition string        `json:"transition,omitempty"`
}

// Resolved reports whether the style already lists its filter chain.
func (s *ArtisticStyle) Resolved() bool {
	return s != nil && (len(s.Filters) > 0 || s.Grading != nil)
}

// Transform is the clip's geometric placement relative to the frame.
// Scale multiplies the fill-scaled size; Rotation is in degrees clockwise.
type Transform struct {
	Scale    float64  `json:"scale"`
	Position Position `json:"position"`
	Rotation float64  `json:"rotation,omitempty"`
}

// DefaultTransform is an unscaled, centered, unrotated placement.
func DefaultTransform() Transform {
	return Transform{Scale: 1, Position: Center}
}

// AudioSettings tunes how an audio clip is mixed.
type AudioSettings struct {
	Volume  float64 `json:"volume"`
	Loop    bool    `json:"loop,omitempty"`
	FadeIn  float64 `json:"fade_in,omitempty"`
	FadeOut float64 `json:"fade_out,omitempty"`
}

// FilterParams holds numeric parameters for one filter id.
type FilterParams map[string]float64

// Clip is one contiguous placement of a source on a track. Start/End are
// timeline seconds; ClipIn/ClipOut are source seconds.
type Clip struct {
	Start         float64                 `json:"start"`
	End           float64                 `json:"end"`
	ClipIn        float64                 `json:"clipIn"`
	ClipOut       float64                 `json:"clipOut"`
	Source        string                  `json:"source,omitempty"`
	Filters       []string                `json:"filters"`
	Params        map[string]FilterParams `json:"params,omitempty"`
	Transform     Transform               `json:"transform"`
	Content       string                  `json:"content,omitempty"`
	TransitionIn  *Transition             `json:"transition_in,omitempty"`
	TransitionOut *Transition             `json:"transition_out,omitempty"`
	ArtisticStyle *ArtisticStyle          `json:"artistic_style,omitempty"`
	Opacity       float64                 `json:"opacity"`
	BlendMode     BlendMode               `json:"blend_mode,omitempty"`
	Audio         *AudioSettings          `json:"audio,omitempty"`
	// TimeOffset and FullDuration are set on pieces of a clip split across
	// render chunks so time-dependent filters keep the original clock.
	TimeOffset   float64 `json:"time_offset,omitempty"`
	FullDuration float64 `json:"full_duration,omitempty"`
}

// Duration returns the clip length on the timeline.
func (c Clip) Duration() float64 {
	return c.End - c.Start
}

// Speed returns source seconds consumed per timeline second.
func (c Clip) Speed() float64 {
	d := c.Duration()
	if d <= 0 {
		return 1
	}
	return (c.ClipOut - c.ClipIn) / d
}

// Clock returns the clip-relative time of the clip's first frame and the
// length effects should treat as the whole clip.
func (c Clip) Clock() (offset, length float64) {
	length = c.FullDuration
	if length <= 0 {
		length = c.Duration()
	}
	return c.TimeOffset, length
}

// ParamsFor returns the parameters recorded for filterID, never nil.
func (c Clip) ParamsFor(filterID string) FilterParams {
	if p, ok := c.Params[filterID]; ok && p != nil {
		return p
	}
	return FilterParams{}
}

// Clone returns a deep copy of the clip.
func (c Clip) Clone() Clip {
	out := c
	out.Filters = slices.Clone(c.Filters)
	if c.Params != nil {
		out.Params = make(map[string]FilterParams, len(c.Params))
		for k, v := range c.Params {
			out.Params[k] = maps.Clone(v)
		}
	}
	if c.TransitionIn != nil {
		tr := *c.TransitionIn
		out.TransitionIn = &tr
	}
	if c.TransitionOut != nil {
		tr := *c.TransitionOut
		out.TransitionOut = &tr
	}
	if c.ArtisticStyle != nil {
		style := *c.ArtisticStyle
		style.Filters = slices.Clone(c.ArtisticStyle.Filters)
		if c.ArtisticStyle.Grading != nil {
			g := *c.ArtisticStyle.Grading
			style.Grading = &g
		}
		out.ArtisticStyle = &style
	}
	if c.Audio != nil {
		a := *c.Audio
		out.Audio = &a
	}
	return out
}

// Track is an ordered lane of clips of a single type.
type Track struct {
	Type      TrackType `json:"type"`
	Name      string    `json:"name"`
	Clips     []Clip    `json:"clips"`
	Enabled   bool      `json:"enabled"`
	Opacity   float64   `json:"opacity"`
	BlendMode BlendMode `json:"blend_mode,omitempty"`
}

// Clone returns a deep copy of the track.
func (t Track) Clone() Track {
	out := t
	if t.Clips != nil {
		out.Clips = make([]Clip, len(t.Clips))
		for i, c := range t.Clips {
			out.Clips[i] = c.Clone()
		}
	}
	return out
}

// Rhythm records the pacing profile a timeline was built with.
type Rhythm struct {
	Name               string  `json:"name"`
	CutsPerMinute      float64 `json:"cuts_per_minute"`
	TransitionDuration float64 `json:"transition_duration"`
}

// Metadata is the descriptive header of a timeline document.
type Metadata struct {
	ID               string   `json:"id,omitempty"`
	Title            string   `json:"title"`
	Description      string   `json:"description,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	TransitionEffect string   `json:"transition_effect,omitempty"`
	ColorTheme       string   `json:"color_theme,omitempty"`
	Rhythm           *Rhythm  `json:"rhythm,omitempty"`
}

// Timeline is the canonical declarative description of a video to render.
type Timeline struct {
	Version         string
	Metadata        Metadata
	Duration        float64
	FPS             float64
	Resolution      Resolution
	BackgroundColor string
	Tracks          []Track
}

// ID returns the timeline identifier.
func (t Timeline) ID() string { return t.Metadata.ID }

// Title returns the timeline title.
func (t Timeline) Title() string { return t.Metadata.Title }

// FrameCount returns the number of frames covering the timeline.
func (t Timeline) FrameCount() int {
	return FrameIndex(t.Duration, t.FPS)
}

// TracksOfType returns the indexes of tracks with the given type.
func (t Timeline) TracksOfType(kind TrackType) []int {
	var out []int
	for i, track := range t.Tracks {
		if track.Type == kind {
			out = append(out, i)
		}
	}
	return out
}

// Clone returns a deep copy of the timeline.
func (t Timeline) Clone() Timeline {
	out := t
	out.Metadata.Tags = slices.Clone(t.Metadata.Tags)
	if t.Metadata.Rhythm != nil {
		r := *t.Metadata.Rhythm
		out.Metadata.Rhythm = &r
	}
	if t.Tracks != nil {
		out.Tracks = make([]Track, len(t.Tracks))
		for i, track := range t.Tracks {
			out.Tracks[i] = track.Clone()
		}
	}
	return out
}

// FrameIndex converts a timeline time to the index of the frame starting at
// or after it. Clip frame counts derive from rounded boundaries so adjacent
// clips never drift apart.
func FrameIndex(seconds, fps float64) int {
	if seconds <= 0 || fps <= 0 {
		return 0
	}
	return int(seconds*fps + 0.5)
}
