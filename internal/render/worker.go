package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"montage/internal/engine"
	"montage/internal/logging"
	"montage/internal/services"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("render: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("render: CBOR decoder initialization failed: " + err.Error())
	}
}

// workerResult is what a worker process writes to stdout.
type workerResult struct {
	Result engine.Result `cbor:"result"`
	Error  string        `cbor:"error,omitempty"`
	Kind   string        `cbor:"kind,omitempty"`
}

// ServeWorker reads one ChunkJob from r, renders it with runner and writes
// the outcome to w. Render failures travel in the result; the returned
// error covers only the exchange itself.
func ServeWorker(ctx context.Context, r io.Reader, w io.Writer, runner ChunkRunner) error {
	var job ChunkJob
	if err := decMode.NewDecoder(r).Decode(&job); err != nil {
		return fmt.Errorf("decode chunk job: %w", err)
	}
	res, err := runner.RunChunk(ctx, job)
	out := workerResult{Result: res}
	if err != nil {
		out.Error = err.Error()
		out.Kind = services.Kind(err)
	}
	if err := encMode.NewEncoder(w).Encode(out); err != nil {
		return fmt.Errorf("encode chunk result: %w", err)
	}
	return nil
}

// CommandFunc builds the worker process command for one chunk.
type CommandFunc func(ctx context.Context) *exec.Cmd

// WorkerCommand runs `<executable> <args...>`.
func WorkerCommand(executable string, args ...string) CommandFunc {
	return func(ctx context.Context) *exec.Cmd {
		return exec.CommandContext(ctx, executable, args...) //nolint:gosec
	}
}

// ProcessRunner renders each chunk in a child worker process so codec
// state never crosses chunks.
type ProcessRunner struct {
	command CommandFunc
	stderr  io.Writer
	logger  *slog.Logger
}

// NewProcessRunner returns a runner launching command per chunk. Worker
// stderr is forwarded to stderr when non-nil.
func NewProcessRunner(command CommandFunc, stderr io.Writer, logger *slog.Logger) *ProcessRunner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ProcessRunner{command: command, stderr: stderr, logger: logging.NewComponentLogger(logger, "worker")}
}

// RunChunk implements ChunkRunner.
func (p *ProcessRunner) RunChunk(ctx context.Context, job ChunkJob) (engine.Result, error) {
	payload, err := encMode.Marshal(job)
	if err != nil {
		return engine.Result{}, fmt.Errorf("encode chunk job: %w", err)
	}
	cmd := p.command(ctx)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if p.stderr != nil {
		cmd.Stderr = io.MultiWriter(&stderr, p.stderr)
	}

	logging.WithContext(ctx, p.logger).Debug("starting worker process",
		logging.String("command", cmd.Path),
		logging.Int(logging.FieldChunk, job.Index),
	)
	if err := cmd.Run(); err != nil {
		detail := lastLine(stderr.String())
		return engine.Result{}, services.Wrap(services.ErrExternalTool, "render", "worker", detail, err)
	}

	var out workerResult
	if err := decMode.Unmarshal(stdout.Bytes(), &out); err != nil {
		return engine.Result{}, services.Wrap(services.ErrExternalTool, "render", "worker", "decode chunk result", err)
	}
	if out.Error != "" {
		return out.Result, &remoteError{kind: out.Kind, message: out.Error}
	}
	return out.Result, nil
}

// remoteError carries a worker failure across the process boundary while
// keeping errors.Is against the service markers working.
type remoteError struct {
	kind    string
	message string
}

func (e *remoteError) Error() string { return e.message }

func (e *remoteError) Is(target error) bool {
	marker := markerFor(e.kind)
	return marker != nil && errors.Is(marker, target)
}

func markerFor(kind string) error {
	switch kind {
	case "validation":
		return services.ErrValidation
	case "resource_missing":
		return services.ErrResourceMissing
	case "effect_application":
		return services.ErrEffectApplication
	case "encoding":
		return services.ErrEncoding
	case "configuration":
		return services.ErrConfiguration
	case "canceled":
		return services.ErrCanceled
	case "external_tool":
		return services.ErrExternalTool
	default:
		return nil
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

var _ ChunkRunner = (*ProcessRunner)(nil)
