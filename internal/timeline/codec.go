package timeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/tidwall/jsonc"

	"montage/internal/fileutil"
)

type document struct {
	Version  string   `json:"version"`
	Metadata Metadata `json:"metadata"`
	Timeline body     `json:"timeline"`
}

type body struct {
	Duration        float64    `json:"duration"`
	FPS             float64    `json:"fps"`
	Resolution      Resolution `json:"resolution"`
	BackgroundColor string     `json:"background_color,omitempty"`
	Tracks          []Track    `json:"tracks"`
}

// MarshalJSON writes the versioned document form:
// {version, metadata, timeline:{duration, fps, resolution, background_color, tracks}}.
func (t Timeline) MarshalJSON() ([]byte, error) {
	version := t.Version
	if version == "" {
		version = SchemaVersion
	}
	return json.Marshal(document{
		Version:  version,
		Metadata: t.Metadata,
		Timeline: body{
			Duration:        t.Duration,
			FPS:             t.FPS,
			Resolution:      t.Resolution,
			BackgroundColor: t.BackgroundColor,
			Tracks:          t.Tracks,
		},
	})
}

// UnmarshalJSON reads the versioned document form.
func (t *Timeline) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	version := doc.Version
	if version == "" {
		version = SchemaVersion
	}
	*t = Timeline{
		Version:         version,
		Metadata:        doc.Metadata,
		Duration:        doc.Timeline.Duration,
		FPS:             doc.Timeline.FPS,
		Resolution:      doc.Timeline.Resolution,
		BackgroundColor: doc.Timeline.BackgroundColor,
		Tracks:          doc.Timeline.Tracks,
	}
	return nil
}

// UnmarshalJSON fills omitted track fields with their defaults: enabled,
// fully opaque.
func (tr *Track) UnmarshalJSON(data []byte) error {
	type plain Track
	out := plain{Enabled: true, Opacity: 1}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*tr = Track(out)
	return nil
}

// UnmarshalJSON fills omitted clip fields with their defaults: identity
// transform, full opacity, and a source window matching the clip length.
func (c *Clip) UnmarshalJSON(data []byte) error {
	type plain Clip
	var probe struct {
		ClipOut *float64 `json:"clipOut"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	out := plain{Transform: DefaultTransform(), Opacity: 1}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	if probe.ClipOut == nil {
		out.ClipOut = out.ClipIn + (out.End - out.Start)
	}
	*c = Clip(out)
	return nil
}

// UnmarshalJSON defaults an omitted scale to 1 and an omitted position to
// the frame center.
func (tf *Transform) UnmarshalJSON(data []byte) error {
	type plain Transform
	out := plain(DefaultTransform())
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*tf = Transform(out)
	return nil
}

// UnmarshalJSON defaults an omitted volume to unity gain.
func (a *AudioSettings) UnmarshalJSON(data []byte) error {
	type plain AudioSettings
	out := plain{Volume: 1}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*a = AudioSettings(out)
	return nil
}

// Decode parses a timeline document and validates it. Comments and trailing
// commas are accepted so documents can be authored by hand.
func Decode(data []byte) (Timeline, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return Timeline{}, &ValidationError{Field: "document", Reason: "empty input"}
	}
	var t Timeline
	if err := json.Unmarshal(jsonc.ToJSON(data), &t); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.As(err, &syntaxErr):
			return Timeline{}, &ValidationError{Field: "document", Reason: fmt.Sprintf("invalid JSON at offset %d: %v", syntaxErr.Offset, err)}
		case errors.As(err, &typeErr):
			return Timeline{}, &ValidationError{Field: typeErr.Field, Reason: fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)}
		default:
			return Timeline{}, &ValidationError{Field: "document", Reason: err.Error()}
		}
	}
	if err := Validate(t); err != nil {
		return Timeline{}, err
	}
	return t, nil
}

// Encode renders the timeline as indented canonical JSON.
func Encode(t Timeline) ([]byte, error) {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode timeline: %w", err)
	}
	return append(data, '\n'), nil
}

// ReadFile loads and validates a timeline document from disk.
func ReadFile(path string) (Timeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Timeline{}, fmt.Errorf("read timeline: %w", err)
	}
	return Decode(data)
}

// WriteFile atomically writes the timeline document to path.
func WriteFile(path string, t Timeline) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}
