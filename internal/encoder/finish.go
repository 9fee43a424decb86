package encoder

import (
	"context"
	"log/slog"
	"strings"

	"montage/internal/logging"
	"montage/internal/services"
	"montage/internal/services/drapto"
)

// Finisher re-encodes a stitched artifact with Drapto.
type Finisher struct {
	client    drapto.Client
	outputDir string
	logger    *slog.Logger
}

// NewFinisher returns a Finisher writing into outputDir. A nil client
// uses the linked Drapto library.
func NewFinisher(client drapto.Client, outputDir string, logger *slog.Logger) *Finisher {
	if client == nil {
		client = drapto.NewLibrary()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finisher{client: client, outputDir: outputDir, logger: logging.NewComponentLogger(logger, "drapto")}
}

// NewFinisherFor picks the CLI client when binary is set and the library otherwise.
func NewFinisherFor(binary, outputDir string, logger *slog.Logger) *Finisher {
	var client drapto.Client
	if strings.TrimSpace(binary) != "" {
		client = drapto.NewCLI(drapto.WithBinary(binary))
	}
	return NewFinisher(client, outputDir, logger)
}

// Finish encodes artifact and returns the finished file path.
func (f *Finisher) Finish(ctx context.Context, artifact string) (string, error) {
	logger := logging.WithContext(ctx, f.logger)
	sampler := logging.NewProgressSampler(10)
	progress := func(update drapto.ProgressUpdate) {
		if update.Warning != "" {
			logging.WarnWithContext(logger, "drapto warning", "drapto_warning",
				logging.String("warning", update.Warning),
				logging.String(logging.FieldErrorHint, "inspect the finished file"),
				logging.String(logging.FieldImpact, "finishing pass continues"),
			)
			return
		}
		if !sampler.ShouldLog(update.Percent) {
			return
		}
		logger.Info("drapto progress",
			logging.Float64("percent", update.Percent),
			logging.String("stage", update.Stage),
			logging.Duration("eta", update.ETA),
		)
	}
	path, err := f.client.Encode(ctx, artifact, f.outputDir, progress)
	if err != nil {
		return "", services.Wrap(services.ErrExternalTool, "finish", "drapto", artifact, err)
	}
	logger.Info("finishing pass complete", logging.String("output", path))
	return path, nil
}
