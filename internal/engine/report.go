package engine

// Placeholder records a clip whose source was replaced by a flat color (or
// silence) of identical duration.
type Placeholder struct {
	Track  string  `json:"track"`
	Clip   int     `json:"clip"`
	Source string  `json:"source"`
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Reason string  `json:"reason"`
}

// Failure records a recoverable clip-local problem such as a skipped filter.
type Failure struct {
	Track   string `json:"track"`
	Clip    int    `json:"clip"`
	Kind    string `json:"kind"`
	Effect  string `json:"effect,omitempty"`
	Message string `json:"message"`
}

// Result describes one engine render.
type Result struct {
	Artifact     string        `json:"artifact,omitempty"`
	Frames       int           `json:"frames"`
	AudioFrames  int           `json:"audio_frames"`
	Placeholders []Placeholder `json:"placeholders,omitempty"`
	Failures     []Failure     `json:"failures,omitempty"`
	States       []State       `json:"states"`
}

// Degraded reports whether any placeholder or skipped effect was recorded.
func (r Result) Degraded() bool {
	return len(r.Placeholders) > 0 || len(r.Failures) > 0
}

// FinalState returns the last state reached.
func (r Result) FinalState() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}
