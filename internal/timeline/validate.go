package timeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"montage/internal/services"
)

const (
	maxFPS        = 240
	maxDimension  = 8192
	timeTolerance = 1e-6
)

// ValidationError reports a malformed timeline or brief. It always matches
// services.ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// Unwrap ties the error to the services validation marker.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks structural invariants that must hold before any resource
// is touched. Overlaps are allowed; Optimize repairs them.
func Validate(t Timeline) error {
	if major, _, _ := strings.Cut(t.Version, "."); t.Version != "" && major != "1" {
		return invalid("version", "unsupported schema version %q", t.Version)
	}
	if !finitePositive(t.Duration) {
		return invalid("timeline.duration", "must be > 0, got %v", t.Duration)
	}
	if !finitePositive(t.FPS) || t.FPS > maxFPS {
		return invalid("timeline.fps", "must be in (0, %d], got %v", maxFPS, t.FPS)
	}
	if t.Resolution.Width <= 0 || t.Resolution.Height <= 0 ||
		t.Resolution.Width > maxDimension || t.Resolution.Height > maxDimension {
		return invalid("timeline.resolution", "must be within 1..%d, got %dx%d", maxDimension, t.Resolution.Width, t.Resolution.Height)
	}
	if t.BackgroundColor != "" {
		if _, err := ParseHexColor(t.BackgroundColor); err != nil {
			return invalid("timeline.background_color", "%v", err)
		}
	}
	for ti, track := range t.Tracks {
		if err := validateTrack(t, ti, track); err != nil {
			return err
		}
	}
	return nil
}

func validateTrack(t Timeline, ti int, track Track) error {
	prefix := fmt.Sprintf("timeline.tracks[%d]", ti)
	if !track.Type.Valid() {
		return invalid(prefix+".type", "unknown track type %q", track.Type)
	}
	if track.Opacity < 0 || track.Opacity > 1 || math.IsNaN(track.Opacity) {
		return invalid(prefix+".opacity", "must be within [0,1], got %v", track.Opacity)
	}
	if !track.BlendMode.Valid() {
		return invalid(prefix+".blend_mode", "unknown blend mode %q", track.BlendMode)
	}
	for ci, clip := range track.Clips {
		if err := validateClip(t, fmt.Sprintf("%s.clips[%d]", prefix, ci), track.Type, clip); err != nil {
			return err
		}
	}
	return nil
}

func validateClip(t Timeline, field string, kind TrackType, c Clip) error {
	if c.Start < 0 || math.IsNaN(c.Start) || math.IsInf(c.Start, 0) {
		return invalid(field+".start", "must be >= 0, got %v", c.Start)
	}
	if !(c.End > c.Start) || math.IsInf(c.End, 0) {
		return invalid(field+".end", "must be greater than start (%v), got %v", c.Start, c.End)
	}
	if c.End > t.Duration+timeTolerance {
		return invalid(field+".end", "exceeds timeline duration %v", t.Duration)
	}
	if c.ClipIn < 0 || math.IsNaN(c.ClipIn) {
		return invalid(field+".clipIn", "must be >= 0, got %v", c.ClipIn)
	}
	if !(c.ClipOut > c.ClipIn) {
		return invalid(field+".clipOut", "must be greater than clipIn (%v), got %v", c.ClipIn, c.ClipOut)
	}
	for i, id := range c.Filters {
		if strings.TrimSpace(id) == "" {
			return invalid(fmt.Sprintf("%s.filters[%d]", field, i), "empty filter id")
		}
	}
	if c.Transform.Scale <= 0 || math.IsNaN(c.Transform.Scale) {
		return invalid(field+".transform.scale", "must be > 0, got %v", c.Transform.Scale)
	}
	if c.Opacity < 0 || c.Opacity > 1 || math.IsNaN(c.Opacity) {
		return invalid(field+".opacity", "must be within [0,1], got %v", c.Opacity)
	}
	if !c.BlendMode.Valid() {
		return invalid(field+".blend_mode", "unknown blend mode %q", c.BlendMode)
	}
	for name, tr := range map[string]*Transition{"transition_in": c.TransitionIn, "transition_out": c.TransitionOut} {
		if tr == nil {
			continue
		}
		if strings.TrimSpace(tr.Type) == "" {
			return invalid(field+"."+name+".type", "missing transition type")
		}
		if !finitePositive(tr.Duration) {
			return invalid(field+"."+name+".duration", "must be > 0, got %v", tr.Duration)
		}
	}
	if c.ArtisticStyle != nil && strings.TrimSpace(c.ArtisticStyle.Name) == "" {
		return invalid(field+".artistic_style.name", "missing style name")
	}
	if kind == TrackText && strings.TrimSpace(c.Content) == "" {
		return invalid(field+".content", "text clips need content")
	}
	if c.TimeOffset < 0 || c.FullDuration < 0 {
		return invalid(field+".time_offset", "clock fields must be >= 0")
	}
	if a := c.Audio; a != nil {
		if a.Volume < 0 || math.IsNaN(a.Volume) {
			return invalid(field+".audio.volume", "must be >= 0, got %v", a.Volume)
		}
		if a.FadeIn < 0 || a.FadeOut < 0 {
			return invalid(field+".audio", "fades must be >= 0")
		}
	}
	return nil
}

func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ParseHexColor parses "#rrggbb" or "#rgb" into its components.
func ParseHexColor(value string) ([3]uint8, error) {
	s := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return [3]uint8{}, fmt.Errorf("invalid hex color %q", value)
	}
	var out [3]uint8
	for i := range 3 {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return [3]uint8{}, fmt.Errorf("invalid hex color %q", value)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
