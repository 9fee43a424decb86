package render_test

import (
	"context"
	"fmt"
	"sync"

	"montage/internal/chunking"
	"montage/internal/engine"
	"montage/internal/render"
	"montage/internal/timeline"
)

func clip(start, end float64, source string) timeline.Clip {
	return timeline.Clip{
		Start:     start,
		End:       end,
		ClipOut:   end - start,
		Source:    source,
		Filters:   []string{},
		Transform: timeline.DefaultTransform(),
		Opacity:   1,
	}
}

// threeClipTimeline is 3 seconds of 8x8 video at 10 fps with a cut every
// second.
func threeClipTimeline() timeline.Timeline {
	return timeline.Timeline{
		Version:         timeline.SchemaVersion,
		Metadata:        timeline.Metadata{ID: "tl", Title: "Beach Day"},
		Duration:        3,
		FPS:             10,
		Resolution:      timeline.Resolution{Width: 8, Height: 8},
		BackgroundColor: "#000000",
		Tracks: []timeline.Track{{
			Type:    timeline.TrackVideo,
			Name:    "video",
			Enabled: true,
			Opacity: 1,
			Clips:   []timeline.Clip{clip(0, 1, "a"), clip(1, 2, "b"), clip(2, 3, "c")},
		}},
	}
}

// oneSecondPlanner splits threeClipTimeline into three chunks.
func oneSecondPlanner() *chunking.Planner {
	tl := threeClipTimeline()
	available := uint64(1*chunking.PerSecondCost(tl)/chunking.ChunkFraction) + 1
	return chunking.NewPlanner(available, 1, nil)
}

// fakeRunner returns "chunk-<i>" artifacts and lets tests hook each call.
type fakeRunner struct {
	mu    sync.Mutex
	jobs  []render.ChunkJob
	hook  func(ctx context.Context, job render.ChunkJob) (engine.Result, error)
	calls int
}

func (f *fakeRunner) RunChunk(ctx context.Context, job render.ChunkJob) (engine.Result, error) {
	f.mu.Lock()
	f.jobs = append(f.jobs, job)
	f.calls++
	f.mu.Unlock()
	if f.hook != nil {
		return f.hook(ctx, job)
	}
	return engine.Result{Artifact: fmt.Sprintf("chunk-%d", job.Index), States: []engine.State{engine.StateDone}}, nil
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStitcher struct {
	inputs []string
	output string
	err    error
}

func (f *fakeStitcher) Stitch(_ context.Context, inputs []string, output string) (string, error) {
	f.inputs = append([]string(nil), inputs...)
	f.output = output
	if f.err != nil {
		return "", f.err
	}
	return output, nil
}

type fakeFinisher struct{ err error }

func (f fakeFinisher) Finish(_ context.Context, artifact string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return artifact + ".mkv", nil
}

type recordingObserver struct{ reports []render.Report }

func (o *recordingObserver) ObserveRender(r render.Report) { o.reports = append(o.reports, r) }
