package render

import (
	"context"
	"fmt"

	"montage/internal/chunking"
	"montage/internal/engine"
	"montage/internal/services"
	"montage/internal/timeline"
)

// ChunkJob is the unit of work handed to a ChunkRunner. The sub-timeline
// travels as its canonical JSON document so it survives a process hop
// unchanged.
type ChunkJob struct {
	RenderID string  `cbor:"render_id"`
	Index    int     `cbor:"index"`
	Start    float64 `cbor:"start"`
	End      float64 `cbor:"end"`
	Document []byte  `cbor:"timeline"`
}

// NewChunkJob packages chunk for a runner.
func NewChunkJob(renderID string, chunk chunking.Chunk) (ChunkJob, error) {
	doc, err := timeline.Encode(chunk.Timeline)
	if err != nil {
		return ChunkJob{}, err
	}
	return ChunkJob{
		RenderID: renderID,
		Index:    chunk.Index,
		Start:    chunk.Start,
		End:      chunk.End,
		Document: doc,
	}, nil
}

// Timeline decodes the job's sub-timeline.
func (j ChunkJob) Timeline() (timeline.Timeline, error) {
	return timeline.Decode(j.Document)
}

// ChunkRunner renders one chunk into an artifact.
type ChunkRunner interface {
	RunChunk(ctx context.Context, job ChunkJob) (engine.Result, error)
}

// LocalRunner renders chunks in the calling process.
type LocalRunner struct {
	engine *engine.Engine
	sink   engine.Sink
}

// NewLocalRunner renders with eng and encodes with sink.
func NewLocalRunner(eng *engine.Engine, sink engine.Sink) *LocalRunner {
	return &LocalRunner{engine: eng, sink: sink}
}

// RunChunk implements ChunkRunner.
func (r *LocalRunner) RunChunk(ctx context.Context, job ChunkJob) (engine.Result, error) {
	if r.engine == nil {
		return engine.Result{}, services.Wrap(services.ErrConfiguration, "render", "run chunk", "no engine", nil)
	}
	tl, err := job.Timeline()
	if err != nil {
		return engine.Result{}, fmt.Errorf("decode chunk %d: %w", job.Index, err)
	}
	ctx = services.WithChunk(services.WithRenderID(ctx, job.RenderID), job.Index)
	return r.engine.Render(ctx, tl, r.sink)
}

var _ ChunkRunner = (*LocalRunner)(nil)
