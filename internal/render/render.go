package render

import (
	"context"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"montage/internal/chunking"
	"montage/internal/engine"
	"montage/internal/logging"
	"montage/internal/services"
	"montage/internal/textutil"
	"montage/internal/timeline"
)

// Stitcher joins chunk artifacts in the given order.
type Stitcher interface {
	Stitch(ctx context.Context, inputs []string, output string) (string, error)
}

// Finisher post-processes the stitched artifact.
type Finisher interface {
	Finish(ctx context.Context, artifact string) (string, error)
}

// Observer receives every finished report, successful or not.
type Observer interface {
	ObserveRender(Report)
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithWorkers bounds how many chunks render at once.
func WithWorkers(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithOutputDir sets where the final artifact is written.
func WithOutputDir(dir string) Option {
	return func(r *Renderer) { r.outputDir = dir }
}

// WithFinisher adds a finishing pass after stitching.
func WithFinisher(f Finisher) Option {
	return func(r *Renderer) { r.finisher = f }
}

// WithObserver registers a report observer.
func WithObserver(o Observer) Option {
	return func(r *Renderer) {
		if o != nil {
			r.observers = append(r.observers, o)
		}
	}
}

// WithLogger sets the renderer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Renderer orchestrates chunk planning, rendering and stitching.
type Renderer struct {
	planner   *chunking.Planner
	runner    ChunkRunner
	stitcher  Stitcher
	finisher  Finisher
	observers []Observer
	workers   int
	outputDir string
	logger    *slog.Logger
}

// New returns a Renderer.
func New(planner *chunking.Planner, runner ChunkRunner, stitcher Stitcher, opts ...Option) *Renderer {
	r := &Renderer{
		planner:  planner,
		runner:   runner,
		stitcher: stitcher,
		workers:  1,
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.planner == nil {
		r.planner = chunking.NewPlanner(0, 0, r.logger)
	}
	r.logger = logging.NewComponentLogger(r.logger, "render")
	return r
}

// Render renders tl to a single artifact. The report is populated on every
// path; on failure it lists the chunks that completed before the render
// stopped.
func (r *Renderer) Render(ctx context.Context, tl timeline.Timeline) (report Report, err error) {
	started := time.Now()
	report = Report{
		RenderID: uuid.NewString(),
		Title:    tl.Title(),
		Status:   StatusFailed,
		Started:  started.UTC(),
	}
	if hash, hashErr := timeline.Hash(tl); hashErr == nil {
		report.TimelineHash = hash
	}
	report.Suggestions = timeline.Suggestions(tl)
	ctx = services.WithRenderID(ctx, report.RenderID)
	logger := logging.WithContext(ctx, r.logger)
	defer func() {
		report.Elapsed = time.Since(started)
		if err != nil {
			report.Status = StatusFailed
			report.Error = err.Error()
			logging.ErrorWithContext(logger, "render failed", "render_failed",
				logging.String("kind", services.Kind(err)),
				logging.Error(err),
			)
		}
		for _, o := range r.observers {
			o.ObserveRender(report)
		}
	}()

	if r.runner == nil || r.stitcher == nil {
		return report, services.Wrap(services.ErrConfiguration, "render", "setup", "runner and stitcher are required", nil)
	}
	plan, err := r.planner.Plan(tl)
	if err != nil {
		return report, err
	}
	report.Plan = PlanSummary{
		EstimateBytes:  plan.Estimate,
		AvailableBytes: plan.Available,
		BudgetBytes:    plan.Budget,
		ChunkSeconds:   plan.ChunkSeconds,
		Chunks:         len(plan.Chunks),
	}
	logger.Info("render planned",
		logging.String("title", tl.Title()),
		logging.Int("chunks", len(plan.Chunks)),
		logging.Int("workers", r.workers),
		logging.Float64("chunk_seconds", plan.ChunkSeconds),
	)

	chunks := make([]ChunkReport, len(plan.Chunks))
	results := make([]engine.Result, len(plan.Chunks))
	errs := make([]error, len(plan.Chunks))
	for i, c := range plan.Chunks {
		chunks[i] = ChunkReport{Index: c.Index, Start: c.Start, End: c.End, Frames: c.Frames, State: ChunkSkipped}
	}

	var failed atomic.Bool
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i := range plan.Chunks {
		if failed.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if failed.Load() || ctx.Err() != nil {
				return nil
			}
			results[i], errs[i] = r.runChunk(ctx, report.RenderID, plan.Chunks[i], &chunks[i])
			if errs[i] != nil {
				failed.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Chunks = chunks
	for i, res := range results {
		report.PlaceholdersUsed = appendPlaceholders(report.PlaceholdersUsed, tl, plan.Chunks[i].Start, res.Placeholders)
		report.Failures = append(report.Failures, res.Failures...)
	}

	for _, chunkErr := range errs {
		if chunkErr != nil {
			return report, chunkErr
		}
	}
	for _, c := range chunks {
		if c.State != ChunkDone {
			cause := ctx.Err()
			return report, services.Wrap(services.ErrCanceled, "render", "schedule", "render canceled before all chunks started", cause)
		}
	}

	artifact, err := r.stitcher.Stitch(ctx, report.CompletedArtifacts(), r.outputPath(tl, report.RenderID))
	if err != nil {
		return report, err
	}
	if len(chunks) > 1 {
		for _, c := range chunks {
			_ = os.Remove(c.Artifact)
		}
	}
	report.Artifact = artifact

	if r.finisher != nil {
		finished, finishErr := r.finisher.Finish(ctx, artifact)
		if finishErr != nil {
			logging.WarnWithContext(logger, "finishing pass failed", "finish_failed",
				logging.Error(finishErr),
				logging.String(logging.FieldErrorHint, "check the drapto installation"),
				logging.String(logging.FieldImpact, "stitched artifact kept without finishing pass"),
			)
			report.Failures = append(report.Failures, engine.Failure{
				Track:   "",
				Clip:    -1,
				Kind:    services.Kind(finishErr),
				Effect:  "finish",
				Message: finishErr.Error(),
			})
		} else {
			report.Artifact = finished
		}
	}

	report.Status = StatusComplete
	if len(report.PlaceholdersUsed) > 0 || len(report.Failures) > 0 {
		report.Status = StatusDegraded
	}
	logger.Info("render finished",
		logging.String("status", string(report.Status)),
		logging.String("artifact", report.Artifact),
		logging.Int("placeholders", len(report.PlaceholdersUsed)),
		logging.Int("failures", len(report.Failures)),
		logging.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}

// runChunk renders one chunk on a context that ignores cancellation, so a
// started chunk always completes or fails as a whole.
func (r *Renderer) runChunk(ctx context.Context, renderID string, chunk chunking.Chunk, out *ChunkReport) (engine.Result, error) {
	started := time.Now()
	chunkCtx := services.WithChunk(context.WithoutCancel(ctx), chunk.Index)
	logger := logging.WithContext(chunkCtx, r.logger)

	job, err := NewChunkJob(renderID, chunk)
	if err != nil {
		out.State = ChunkFailed
		out.Error = err.Error()
		return engine.Result{}, &RenderError{ChunkIndex: chunk.Index, Err: err}
	}
	logger.Info("chunk started", logging.Float64("start", chunk.Start), logging.Float64("end", chunk.End))
	res, err := r.runner.RunChunk(chunkCtx, job)
	out.Elapsed = time.Since(started)
	out.States = res.States
	if err != nil {
		out.State = ChunkFailed
		out.Error = err.Error()
		logging.ErrorWithContext(logger, "chunk failed", "chunk_failed",
			logging.String("kind", services.Kind(err)),
			logging.Error(err),
		)
		return res, &RenderError{ChunkIndex: chunk.Index, Err: err}
	}
	out.State = ChunkDone
	out.Artifact = res.Artifact
	logger.Info("chunk finished",
		logging.String("artifact", res.Artifact),
		logging.Duration("elapsed", out.Elapsed),
	)
	return res, nil
}

func (r *Renderer) outputPath(tl timeline.Timeline, renderID string) string {
	name := textutil.Slug(tl.Title())
	if len(renderID) >= 8 {
		name += "-" + renderID[:8]
	}
	return filepath.Join(r.outputDir, name+".mp4")
}

// appendPlaceholders moves chunk-relative placeholders onto the full
// timeline and joins the pieces of clips that were split across chunks.
func appendPlaceholders(dst []engine.Placeholder, tl timeline.Timeline, offset float64, src []engine.Placeholder) []engine.Placeholder {
	const eps = 1e-6
	for _, p := range src {
		p.Start += offset
		p.End += offset
		p.Clip = clipIndexAt(tl, p.Track, p.Source, p.Start+eps)
		if n := len(dst); n > 0 {
			last := &dst[n-1]
			if last.Track == p.Track && last.Clip == p.Clip && last.Source == p.Source && math.Abs(last.End-p.Start) < eps {
				last.End = p.End
				continue
			}
		}
		dst = append(dst, p)
	}
	return dst
}

func clipIndexAt(tl timeline.Timeline, track, source string, at float64) int {
	for ti, t := range tl.Tracks {
		if engine.TrackLabel(ti, t) != track {
			continue
		}
		for i, c := range t.Clips {
			if c.Source == source && c.Start <= at && at < c.End {
				return i
			}
		}
	}
	return -1
}
