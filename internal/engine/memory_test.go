package engine_test

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"testing"
	"time"

	"montage/internal/chunking"
	"montage/internal/engine"
	"montage/internal/media"
	"montage/internal/timeline"
)

func TestRenderPeakHeapWithinPlannerEstimate(t *testing.T) {
	if testing.Short() {
		t.Skip("renders 300 frames")
	}
	c := videoClip(0, 10, "stripes")
	c.Filters = []string{"fade_in", "fade_out", "glow"}
	tl := smallTimeline(10, track(timeline.TrackVideo, c))
	tl.FPS = 30
	tl.Resolution = timeline.Resolution{Width: 320, Height: 180}
	res := &fakeResolver{handles: map[string]func() media.Handle{
		"stripes": func() media.Handle { return stripeHandle{width: 320, height: 180} },
	}}

	defer debug.SetGCPercent(debug.SetGCPercent(10))
	runtime.GC()
	var base runtime.MemStats
	runtime.ReadMemStats(&base)

	var peak uint64
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		var ms runtime.MemStats
		for {
			runtime.ReadMemStats(&ms)
			peak = max(peak, ms.HeapAlloc)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	sink := &captureSink{}
	_, err := engine.New(res).Render(context.Background(), tl, sink)
	close(done)
	wg.Wait()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(sink.frames) != 300 {
		t.Fatalf("frames = %d, want 300", len(sink.frames))
	}

	estimate := chunking.Estimate(tl)
	growth := float64(peak) - float64(base.HeapAlloc)
	if growth > estimate {
		t.Fatalf("peak heap grew %.1f MB, planner estimate is %.1f MB", growth/(1<<20), estimate/(1<<20))
	}
}

func TestRenderDecodesInBatches(t *testing.T) {
	var calls []frameRequest
	res := &fakeResolver{handles: map[string]func() media.Handle{
		"stripes": func() media.Handle { return stripeHandle{width: 8, height: 8, calls: &calls} },
	}}
	c := videoClip(0, 3, "stripes")
	c.ClipIn, c.ClipOut = 1, 4
	sink := &captureSink{}
	if _, err := engine.New(res).Render(context.Background(), smallTimeline(3, track(timeline.TrackVideo, c)), sink); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(sink.frames) != 30 {
		t.Fatalf("frames = %d, want 30", len(sink.frames))
	}
	// 10 fps decodes in batches of 5 frames, each covering half a second of
	// source in order.
	if len(calls) != 6 {
		t.Fatalf("decode calls = %+v, want 6 batches", calls)
	}
	at := 1.0
	for i, call := range calls {
		if call.count != 5 {
			t.Fatalf("batch %d count = %d, want 5", i, call.count)
		}
		if diff := call.in - at; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("batch %d starts at %v, want %v", i, call.in, at)
		}
		at = call.out
	}
	if at != 4 {
		t.Fatalf("batches end at %v, want 4", at)
	}
}
