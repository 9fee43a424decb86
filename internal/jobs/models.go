package jobs

import (
	"time"

	"montage/internal/render"
)

// Record is one row of render history.
type Record struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	TimelineHash string        `json:"timeline_hash"`
	Status       render.Status `json:"status"`
	Artifact     string        `json:"artifact,omitempty"`
	Chunks       int           `json:"chunks"`
	Placeholders int           `json:"placeholders"`
	Failures     int           `json:"failures"`
	ErrorMessage string        `json:"error,omitempty"`
	ReportJSON   string        `json:"-"`
	CreatedAt    time.Time     `json:"created_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Elapsed returns how long the render ran.
func (r Record) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() || r.CreatedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.CreatedAt)
}

// Report decodes the stored render report.
func (r Record) Report() (render.Report, error) {
	return decodeReport(r.ReportJSON)
}
