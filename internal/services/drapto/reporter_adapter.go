package drapto

import (
	draptolib "github.com/five82/drapto"
)

// progressReporter folds the Drapto Reporter callbacks into ProgressUpdate
// values. Events without progress meaning are dropped.
type progressReporter struct {
	callback func(ProgressUpdate)
}

func newProgressReporter(callback func(ProgressUpdate)) *progressReporter {
	return &progressReporter{callback: callback}
}

func (r *progressReporter) Hardware(draptolib.HardwareSummary) {}

func (r *progressReporter) Initialization(s draptolib.InitializationSummary) {
	r.callback(ProgressUpdate{Stage: "initialization", Message: s.OutputFile})
}

func (r *progressReporter) StageProgress(s draptolib.StageProgress) {
	update := ProgressUpdate{
		Percent: float64(s.Percent),
		Stage:   s.Stage,
		Message: s.Message,
	}
	if s.ETA != nil {
		update.ETA = *s.ETA
	}
	r.callback(update)
}

func (r *progressReporter) CropResult(draptolib.CropSummary) {}

func (r *progressReporter) EncodingConfig(draptolib.EncodingConfigSummary) {}

func (r *progressReporter) EncodingStarted(uint64) {
	r.callback(ProgressUpdate{Stage: "encoding"})
}

func (r *progressReporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.callback(ProgressUpdate{
		Percent: float64(s.Percent),
		Stage:   "encoding",
		Speed:   float64(s.Speed),
		FPS:     float64(s.FPS),
		ETA:     s.ETA,
	})
}

func (r *progressReporter) ValidationComplete(s draptolib.ValidationSummary) {
	message := "validation passed"
	if !s.Passed {
		message = "validation failed"
	}
	r.callback(ProgressUpdate{Stage: "validation", Message: message})
}

func (r *progressReporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.callback(ProgressUpdate{Percent: 100, Stage: "complete", Message: s.OutputPath})
}

func (r *progressReporter) Warning(message string) {
	r.callback(ProgressUpdate{Stage: "warning", Warning: message})
}

func (r *progressReporter) Error(e draptolib.ReporterError) {
	r.callback(ProgressUpdate{Stage: "error", Message: e.Title + ": " + e.Message})
}

func (r *progressReporter) OperationComplete(message string) {
	r.callback(ProgressUpdate{Stage: "complete", Message: message})
}

func (r *progressReporter) BatchStarted(draptolib.BatchStartInfo) {}

func (r *progressReporter) FileProgress(draptolib.FileProgressContext) {}

func (r *progressReporter) BatchComplete(draptolib.BatchSummary) {}

var _ draptolib.Reporter = (*progressReporter)(nil)
