package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"montage/internal/logging"
)

const stderrTailLines = 20

// Progress is one block of ffmpeg `-progress` output.
type Progress struct {
	Frame   int
	FPS     float64
	Speed   string
	OutTime string
}

// Executor runs the ffmpeg binary with progress reporting on stderr.
type Executor struct {
	binary   string
	logger   *slog.Logger
	progress func(Progress)
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithProgress registers a callback for each completed progress block.
func WithProgress(fn func(Progress)) ExecutorOption {
	return func(e *Executor) {
		e.progress = fn
	}
}

// WithExecutorLogger sets the logger used for ffmpeg diagnostics.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor returns an Executor for binary, defaulting to "ffmpeg".
func NewExecutor(binary string, opts ...ExecutorOption) *Executor {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	e := &Executor{binary: binary, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Binary returns the ffmpeg executable the executor launches.
func (e *Executor) Binary() string { return e.binary }

// Run executes ffmpeg with args. When feed is non-nil it receives the
// process stdin, which is closed once feed returns.
func (e *Executor) Run(ctx context.Context, args []string, feed func(io.Writer) error) error {
	if len(args) == 0 {
		return errors.New("no ffmpeg arguments provided")
	}
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error", "-progress", "pipe:2"}, args...)
	e.logger.Debug("executing ffmpeg", logging.String("binary", e.binary), logging.Any("args", full))

	cmd := exec.CommandContext(ctx, e.binary, full...) //nolint:gosec
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}
	var stdin io.WriteCloser
	if feed != nil {
		stdin, err = cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("stdin pipe: %w", err)
		}
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	tail := &lineTail{limit: stderrTailLines}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.streamOutput(stderr, tail)
	}()

	var feedErr error
	if feed != nil {
		feedErr = feed(stdin)
		if closeErr := stdin.Close(); feedErr == nil && closeErr != nil && !errors.Is(closeErr, io.ErrClosedPipe) {
			feedErr = closeErr
		}
	}
	wg.Wait()

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if detail := tail.String(); detail != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, detail)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if feedErr != nil {
		return fmt.Errorf("write ffmpeg input: %w", feedErr)
	}
	return nil
}

func (e *Executor) streamOutput(r io.Reader, tail *lineTail) {
	scanner := bufio.NewScanner(r)
	current := Progress{}
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			if line != "" {
				tail.add(line)
			}
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "frame":
			current.Frame, _ = strconv.Atoi(value)
		case "fps":
			current.FPS, _ = strconv.ParseFloat(value, 64)
		case "speed":
			current.Speed = value
		case "out_time":
			current.OutTime = value
		case "progress":
			if e.progress != nil && current.Frame > 0 {
				e.progress(current)
			}
			current = Progress{}
		case "bitrate", "total_size", "out_time_us", "out_time_ms", "dup_frames", "drop_frames":
		default:
			if !strings.HasPrefix(key, "stream_") {
				tail.add(line)
			}
		}
	}
}

type lineTail struct {
	limit int
	lines []string
}

func (t *lineTail) add(line string) {
	t.lines = append(t.lines, line)
	if len(t.lines) > t.limit {
		t.lines = t.lines[len(t.lines)-t.limit:]
	}
}

func (t *lineTail) String() string {
	return strings.Join(t.lines, "; ")
}
