package timeline_test

import "montage/internal/timeline"

func clip(start, end float64) timeline.Clip {
	return timeline.Clip{
		Start:     start,
		End:       end,
		ClipIn:    0,
		ClipOut:   end - start,
		Filters:   []string{},
		Transform: timeline.DefaultTransform(),
		Opacity:   1,
	}
}

func sampleTimeline(tracks ...timeline.Track) timeline.Timeline {
	return timeline.Timeline{
		Version:    timeline.SchemaVersion,
		Metadata:   timeline.Metadata{ID: "tl-1", Title: "sample"},
		Duration:   30,
		FPS:        30,
		Resolution: timeline.Resolution{Width: 1280, Height: 720},
		Tracks:     tracks,
	}
}

func videoTrack(clips ...timeline.Clip) timeline.Track {
	return timeline.Track{Type: timeline.TrackVideo, Name: "main", Clips: clips, Enabled: true, Opacity: 1}
}
