package encoder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"montage/internal/fileutil"
	"montage/internal/logging"
	"montage/internal/services"
)

// Stitcher joins chunk artifacts, in the order given, into one file
// without re-encoding.
type Stitcher struct {
	exec   *Executor
	logger *slog.Logger
}

// NewStitcher returns a Stitcher using exec.
func NewStitcher(exec *Executor, logger *slog.Logger) *Stitcher {
	if exec == nil {
		exec = NewExecutor("")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stitcher{exec: exec, logger: logging.NewComponentLogger(logger, "stitcher")}
}

// Stitch writes inputs to output. A single input is moved into place.
func (s *Stitcher) Stitch(ctx context.Context, inputs []string, output string) (string, error) {
	if len(inputs) == 0 {
		return "", services.Wrap(services.ErrEncoding, "stitch", "concat", "no inputs", nil)
	}
	if strings.TrimSpace(output) == "" {
		return "", services.Wrap(services.ErrEncoding, "stitch", "concat", "output path required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return "", services.Wrap(services.ErrEncoding, "stitch", "prepare", "create output directory", err)
	}
	if len(inputs) == 1 {
		if err := fileutil.MoveFile(inputs[0], output); err != nil {
			return "", services.Wrap(services.ErrEncoding, "stitch", "move", inputs[0], err)
		}
		return output, nil
	}

	list, err := writeConcatList(filepath.Dir(output), inputs)
	if err != nil {
		return "", services.Wrap(services.ErrEncoding, "stitch", "prepare", "write concat list", err)
	}
	defer os.Remove(list)

	logging.WithContext(ctx, s.logger).Info("stitching chunks",
		logging.Int("inputs", len(inputs)),
		logging.String("output", output),
	)
	args := []string{
		"-f", "concat", "-safe", "0",
		"-i", list,
		"-c", "copy",
		"-movflags", "+faststart",
		output,
	}
	if err := s.exec.Run(ctx, args, nil); err != nil {
		_ = os.Remove(output)
		return "", services.Wrap(services.ErrEncoding, "stitch", "ffmpeg", output, err)
	}
	return output, nil
}

func writeConcatList(dir string, inputs []string) (string, error) {
	file, err := os.CreateTemp(dir, "montage-concat-*.txt")
	if err != nil {
		return "", err
	}
	var writeErr error
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			writeErr = err
			break
		}
		if _, err := fmt.Fprintf(file, "file '%s'\n", strings.ReplaceAll(abs, "'", `'\''`)); err != nil {
			writeErr = err
			break
		}
	}
	if err := file.Close(); err != nil && writeErr == nil {
		writeErr = err
	}
	if writeErr != nil {
		os.Remove(file.Name())
		return "", fmt.Errorf("concat list: %w", writeErr)
	}
	return file.Name(), nil
}
