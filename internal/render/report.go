package render

import (
	"fmt"
	"time"

	"montage/internal/engine"
)

// Status is the user-visible outcome of a render.
type Status string

const (
	StatusComplete Status = "complete"
	StatusDegraded Status = "degraded"
	StatusFailed   Status = "failed"
)

// ChunkState is the outcome of one chunk.
type ChunkState string

const (
	ChunkDone    ChunkState = "done"
	ChunkFailed  ChunkState = "failed"
	ChunkSkipped ChunkState = "skipped"
)

// ChunkReport describes one rendered (or skipped) chunk. Times are on the
// full timeline.
type ChunkReport struct {
	Index    int            `json:"index"`
	Start    float64        `json:"start"`
	End      float64        `json:"end"`
	Frames   int            `json:"frames"`
	State    ChunkState     `json:"state"`
	Artifact string         `json:"artifact,omitempty"`
	States   []engine.State `json:"states,omitempty"`
	Elapsed  time.Duration  `json:"elapsed"`
	Error    string         `json:"error,omitempty"`
}

// PlanSummary is the memory plan the render ran with.
type PlanSummary struct {
	EstimateBytes  uint64  `json:"estimate_bytes"`
	AvailableBytes uint64  `json:"available_bytes"`
	BudgetBytes    uint64  `json:"budget_bytes"`
	ChunkSeconds   float64 `json:"chunk_seconds"`
	Chunks         int     `json:"chunks"`
}

// Report is the result of one render.
type Report struct {
	RenderID         string               `json:"render_id"`
	Title            string               `json:"title"`
	TimelineHash     string               `json:"timeline_hash,omitempty"`
	Status           Status               `json:"status"`
	Artifact         string               `json:"artifact,omitempty"`
	Plan             PlanSummary          `json:"plan"`
	Chunks           []ChunkReport        `json:"chunks"`
	Failures         []engine.Failure     `json:"failures,omitempty"`
	PlaceholdersUsed []engine.Placeholder `json:"placeholders_used,omitempty"`
	Suggestions      []string             `json:"suggestions,omitempty"`
	Started          time.Time            `json:"started"`
	Elapsed          time.Duration        `json:"elapsed"`
	Error            string               `json:"error,omitempty"`
}

// CompletedArtifacts returns the artifacts of chunks that finished, in
// chunk order.
func (r Report) CompletedArtifacts() []string {
	var out []string
	for _, c := range r.Chunks {
		if c.State == ChunkDone && c.Artifact != "" {
			out = append(out, c.Artifact)
		}
	}
	return out
}

// RenderError reports the chunk whose render aborted the timeline.
type RenderError struct {
	ChunkIndex int
	Err        error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render chunk %d: %v", e.ChunkIndex, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }
