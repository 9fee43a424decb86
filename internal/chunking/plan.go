package chunking

import (
	"fmt"
	"log/slog"
	"math"
	"slices"

	"montage/internal/logging"
	"montage/internal/timeline"
)

const (
	// BytesPerPixel is the RGB footprint assumed by the estimate.
	BytesPerPixel = 3
	// BufferFactor covers double buffering.
	BufferFactor = 2
	// ChunkFraction is the share of available memory one chunk may use.
	ChunkFraction = 0.7
	// DefaultMemoryFraction triggers splitting when exceeded.
	DefaultMemoryFraction = 0.8
	// FallbackAvailableMemory is assumed when detection fails.
	FallbackAvailableMemory uint64 = 4 << 30
)

// Chunk is one time range of a plan and its rebased sub-timeline.
type Chunk struct {
	Index    int               `json:"index"`
	Start    float64           `json:"start"`
	End      float64           `json:"end"`
	Frames   int               `json:"frames"`
	Timeline timeline.Timeline `json:"-"`
}

// Duration returns the chunk length in seconds.
func (c Chunk) Duration() float64 { return c.End - c.Start }

// Plan is the outcome of planning one timeline.
type Plan struct {
	Estimate     uint64  `json:"estimate_bytes"`
	Available    uint64  `json:"available_bytes"`
	Budget       uint64  `json:"budget_bytes"`
	ChunkSeconds float64 `json:"chunk_seconds"`
	Chunks       []Chunk `json:"chunks"`
}

// Split reports whether the timeline was divided.
func (p Plan) Split() bool { return len(p.Chunks) > 1 }

// PerSecondCost returns the estimated bytes for one second of tl.
func PerSecondCost(tl timeline.Timeline) float64 {
	return BufferFactor * float64(tl.Resolution.Width) * float64(tl.Resolution.Height) * BytesPerPixel * tl.FPS
}

// Estimate returns the estimated bytes to render tl in one piece.
func Estimate(tl timeline.Timeline) float64 {
	return PerSecondCost(tl) * tl.Duration
}

// Planner splits timelines against a memory budget.
type Planner struct {
	available uint64
	fraction  float64
	logger    *slog.Logger
}

// NewPlanner returns a planner. A zero available detects free memory; a
// fraction outside (0, 1] uses DefaultMemoryFraction.
func NewPlanner(available uint64, fraction float64, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "chunking")
	if fraction <= 0 || fraction > 1 {
		fraction = DefaultMemoryFraction
	}
	if available == 0 {
		detected, err := AvailableMemory()
		if err != nil || detected == 0 {
			logging.WarnWithContext(logger, "memory detection failed", "memory_detection_failed",
				logging.Error(err),
				logging.Int64("assumed_bytes", int64(FallbackAvailableMemory)),
				logging.String(logging.FieldErrorHint, "set render.available_memory_mb"),
				logging.String(logging.FieldImpact, "chunk sizes may not match this machine"))
			detected = FallbackAvailableMemory
		}
		available = detected
	}
	return &Planner{available: available, fraction: fraction, logger: logger}
}

// Available returns the memory the planner budgets against.
func (p *Planner) Available() uint64 { return p.available }

// Plan divides tl into chunks. A timeline within budget yields one chunk
// covering all of it.
func (p *Planner) Plan(tl timeline.Timeline) (Plan, error) {
	if err := timeline.Validate(tl); err != nil {
		return Plan{}, err
	}
	estimate := Estimate(tl)
	budget := p.fraction * float64(p.available)
	plan := Plan{
		Estimate:  uint64(estimate),
		Available: p.available,
		Budget:    uint64(budget),
	}
	total := tl.FrameCount()
	if total == 0 {
		return Plan{}, fmt.Errorf("timeline has no frames at %v fps", tl.FPS)
	}

	cuts := []int{0, total}
	if estimate > budget {
		plan.ChunkSeconds = float64(p.available) * ChunkFraction / PerSecondCost(tl)
		step := int(plan.ChunkSeconds * tl.FPS)
		if step < 1 {
			logging.WarnWithContext(p.logger, "one frame exceeds the chunk budget", "chunk_budget_tiny",
				logging.Float64("chunk_seconds", plan.ChunkSeconds),
				logging.String(logging.FieldErrorHint, "lower the resolution or raise available memory"),
				logging.String(logging.FieldImpact, "chunks hold a single frame"))
			step = 1
		}
		cuts = Cuts(tl, step)
	} else {
		plan.ChunkSeconds = tl.Duration
	}

	for i := 0; i+1 < len(cuts); i++ {
		start := float64(cuts[i]) / tl.FPS
		end := float64(cuts[i+1]) / tl.FPS
		if i+1 == len(cuts)-1 {
			end = tl.Duration
		}
		plan.Chunks = append(plan.Chunks, Chunk{
			Index:    i,
			Start:    start,
			End:      end,
			Frames:   cuts[i+1] - cuts[i],
			Timeline: Slice(tl, start, end),
		})
	}
	p.logger.Debug("render plan",
		logging.Int("chunks", len(plan.Chunks)),
		logging.Float64("chunk_seconds", plan.ChunkSeconds),
		logging.Int64("estimate_bytes", int64(plan.Estimate)),
		logging.Int64("budget_bytes", int64(plan.Budget)))
	return plan, nil
}

// Window is an open frame interval no cut may fall strictly inside.
type Window struct {
	Lo, Hi int
}

// Contains reports whether frame f lies strictly inside w.
func (w Window) Contains(f int) bool { return f > w.Lo && f < w.Hi }

// Cuts returns the frame indexes bounding each chunk, starting at 0 and
// ending at the timeline's frame count. Each chunk holds at most step
// frames unless a window forces it longer.
func Cuts(tl timeline.Timeline, step int) []int {
	total := tl.FrameCount()
	windows := mergeWindows(Windows(tl))
	bounds := clipBoundaries(tl, total)

	cuts := []int{0}
	at := 0
	for at+step < total {
		target := at + step
		cut := -1
		for i := len(bounds) - 1; i >= 0; i-- {
			b := bounds[i]
			if b > target || b <= at {
				continue
			}
			if !inside(windows, b) {
				cut = b
				break
			}
		}
		if cut < 0 {
			cut = escape(windows, target, at)
		}
		if cut >= total {
			break
		}
		cuts = append(cuts, cut)
		at = cut
	}
	return append(cuts, total)
}

// escape moves f out of the disjoint windows: back to the window start, or
// forward to its end when the start is not past floor.
func escape(windows []Window, f, floor int) int {
	for _, w := range windows {
		if !w.Contains(f) {
			continue
		}
		if w.Lo > floor {
			return w.Lo
		}
		return w.Hi
	}
	return f
}

// mergeWindows joins overlapping windows. Windows that only touch stay
// apart since their shared frame is a valid cut.
func mergeWindows(windows []Window) []Window {
	sorted := slices.Clone(windows)
	slices.SortFunc(sorted, func(a, b Window) int { return a.Lo - b.Lo })
	var out []Window
	for _, w := range sorted {
		if n := len(out); n > 0 && w.Lo < out[n-1].Hi {
			out[n-1].Hi = max(out[n-1].Hi, w.Hi)
			continue
		}
		out = append(out, w)
	}
	return out
}

func inside(windows []Window, f int) bool {
	for _, w := range windows {
		if w.Contains(f) {
			return true
		}
	}
	return false
}

func clipBoundaries(tl timeline.Timeline, total int) []int {
	var out []int
	for _, track := range tl.Tracks {
		if !track.Enabled {
			continue
		}
		for _, c := range track.Clips {
			for _, t := range []float64{c.Start, c.End} {
				if f := timeline.FrameIndex(t, tl.FPS); f > 0 && f < total {
					out = append(out, f)
				}
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Windows returns the frame spans a cut must not split: transition heads
// and tails, boundary transitions declared on both sides of a shared edge,
// and audio fades.
func Windows(tl timeline.Timeline) []Window {
	fps := tl.FPS
	var out []Window
	add := func(lo, hi float64) {
		w := Window{Lo: timeline.FrameIndex(lo, fps), Hi: timeline.FrameIndex(hi, fps)}
		if w.Hi > w.Lo {
			out = append(out, w)
		}
	}
	adjacent := func(a, b timeline.Clip) bool {
		return timeline.FrameIndex(a.End, fps) == timeline.FrameIndex(b.Start, fps)
	}
	for _, track := range tl.Tracks {
		if !track.Enabled {
			continue
		}
		for i, c := range track.Clips {
			if tr := c.TransitionIn; tr != nil {
				add(c.Start, c.Start+edge(tr.Duration, c))
			}
			if tr := c.TransitionOut; tr != nil {
				add(c.End-edge(tr.Duration, c), c.End)
			}
			for _, next := range track.Clips[i+1:] {
				if c.TransitionOut == nil || next.TransitionIn == nil || !adjacent(c, next) {
					continue
				}
				add(c.End-edge(c.TransitionOut.Duration, c), next.Start+edge(next.TransitionIn.Duration, next))
			}
			if a := c.Audio; a != nil && track.Type == timeline.TrackAudio {
				if a.FadeIn > 0 {
					add(c.Start, c.Start+math.Min(a.FadeIn, c.Duration()))
				}
				if a.FadeOut > 0 {
					add(c.End-math.Min(a.FadeOut, c.Duration()), c.End)
				}
			}
		}
	}
	slices.SortFunc(out, func(a, b Window) int { return a.Lo - b.Lo })
	return out
}

// edge clamps a transition length to half the clip.
func edge(seconds float64, c timeline.Clip) float64 {
	return math.Min(seconds, c.Duration()/2)
}
