package main

import (
	"context"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"

	"montage/internal/chunking"
	"montage/internal/config"
	"montage/internal/encoder"
	"montage/internal/engine"
	"montage/internal/jobs"
	"montage/internal/logging"
	"montage/internal/metrics"
	"montage/internal/render"
	"montage/internal/resolver"
	"montage/internal/services"
	"montage/internal/styles"
	"montage/internal/timeline"
)

func loadCatalog(cfg *config.Config, logger *slog.Logger) (*styles.Catalog, error) {
	catalog, err := styles.Load(cfg.Styles.CatalogPath, logger)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "load styles", cfg.Styles.CatalogPath, err)
	}
	return catalog, nil
}

func newPlanner(cfg *config.Config, logger *slog.Logger) *chunking.Planner {
	return chunking.NewPlanner(cfg.AvailableMemoryBytes(), cfg.Render.MemoryFraction, logger)
}

func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	catalog, err := loadCatalog(cfg, logger)
	if err != nil {
		return nil, err
	}
	rgb, err := timeline.ParseHexColor(cfg.Render.PlaceholderColor)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "placeholder color", cfg.Render.PlaceholderColor, err)
	}
	res := resolver.NewFileResolver(cfg.Paths.MediaDirs,
		resolver.WithCache(resolver.NewCache(cfg.Paths.CachePath, logger)),
		resolver.WithOpener(resolver.FFmpegOpener(cfg.Encoder.FFmpeg, cfg.Encoder.FFprobe, logger)),
		resolver.WithLogger(logger),
	)
	return engine.New(res,
		engine.WithCatalog(catalog),
		engine.WithPlaceholderColor(color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}),
		engine.WithSampleRate(cfg.Render.SampleRate),
		engine.WithLogger(logger),
	), nil
}

func encoderSettings(cfg *config.Config) encoder.Settings {
	return encoder.Settings{
		VideoCodec: cfg.Encoder.VideoCodec,
		AudioCodec: cfg.Encoder.AudioCodec,
		CRF:        cfg.Encoder.CRF,
		Preset:     cfg.Encoder.Preset,
	}
}

// newLocalRunner builds the in-process chunk renderer. Worker processes use
// it too.
func newLocalRunner(cfg *config.Config, logger *slog.Logger) (*render.LocalRunner, error) {
	eng, err := newEngine(cfg, logger)
	if err != nil {
		return nil, err
	}
	ffmpeg := encoder.NewExecutor(cfg.Encoder.FFmpeg, encoder.WithExecutorLogger(logger))
	sink := encoder.NewFFmpegSink(ffmpeg, cfg.Paths.WorkDir, encoderSettings(cfg), logger)
	return render.NewLocalRunner(eng, sink), nil
}

type renderOptions struct {
	workers   int
	isolation string
	finish    bool
	stderr    io.Writer
}

// renderSession owns the long-lived resources of one render command.
type renderSession struct {
	renderer *render.Renderer
	store    *jobs.Store
	recorder *metrics.Recorder
}

func (s *renderSession) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}

func newRenderSession(ctx context.Context, cmdCtx *commandContext, cfg *config.Config, logger *slog.Logger, doc []byte, opts renderOptions) (*renderSession, error) {
	var runner render.ChunkRunner
	switch opts.isolation {
	case config.IsolationInProcess:
		local, err := newLocalRunner(cfg, logger)
		if err != nil {
			return nil, err
		}
		runner = local
	case config.IsolationProcess:
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		runner = render.NewProcessRunner(render.WorkerCommand(exe, cmdCtx.workerArgs()...), opts.stderr, logger)
	default:
		return nil, services.Wrap(services.ErrConfiguration, "config", "isolation", fmt.Sprintf("unknown isolation %q", opts.isolation), nil)
	}

	ffmpeg := encoder.NewExecutor(cfg.Encoder.FFmpeg, encoder.WithExecutorLogger(logger))
	renderOpts := []render.Option{
		render.WithWorkers(opts.workers),
		render.WithOutputDir(cfg.Paths.OutputDir),
		render.WithLogger(logger),
	}
	if opts.finish {
		renderOpts = append(renderOpts, render.WithFinisher(encoder.NewFinisherFor(cfg.Encoder.Drapto, cfg.Paths.OutputDir, logger)))
	}

	session := &renderSession{recorder: metrics.NewRecorder(cfg.Metrics.Textfile, logger)}
	renderOpts = append(renderOpts, render.WithObserver(session.recorder))

	store, err := jobs.Open(cfg)
	if err != nil {
		logging.WarnWithContext(logger, "render history unavailable", "history_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check paths.log_dir permissions"),
			logging.String(logging.FieldImpact, "this render will not appear in montage history"),
		)
	} else {
		session.store = store
		renderOpts = append(renderOpts, render.WithObserver(store.Observer(ctx, doc, logger)))
	}

	session.renderer = render.New(newPlanner(cfg, logger), runner, encoder.NewStitcher(ffmpeg, logger), renderOpts...)
	return session, nil
}
