package engine

import (
	"context"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"strconv"

	"montage/internal/effects"
	"montage/internal/logging"
	"montage/internal/media"
	"montage/internal/resolver"
	"montage/internal/services"
	"montage/internal/styles"
	"montage/internal/timeline"
)

// DefaultSampleRate is used when no sample rate is configured.
const DefaultSampleRate = 48000

// DefaultPlaceholderColor fills clips whose source cannot be resolved.
var DefaultPlaceholderColor = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}

// Format describes the stream handed to a Sink.
type Format struct {
	FPS        float64 `json:"fps"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	SampleRate int     `json:"sample_rate"`
}

// Sink encodes a composed frame and audio stream into an artifact and
// returns its path.
type Sink interface {
	Write(ctx context.Context, frames []*image.RGBA, audio media.AudioBuffer, format Format) (string, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithEffects sets the per-frame filter provider. When p also implements
// effects.TextRenderer it draws text clips unless WithTextRenderer is given.
func WithEffects(p effects.EffectProvider) Option {
	return func(e *Engine) {
		if p != nil {
			e.effects = p
		}
	}
}

// WithTransitions sets the boundary transition provider.
func WithTransitions(p effects.TransitionProvider) Option {
	return func(e *Engine) {
		if p != nil {
			e.transitions = p
		}
	}
}

// WithTextRenderer sets the text clip renderer.
func WithTextRenderer(r effects.TextRenderer) Option {
	return func(e *Engine) {
		if r != nil {
			e.text = r
		}
	}
}

// WithCatalog sets the catalog used to resolve name-only artistic styles.
func WithCatalog(c *styles.Catalog) Option {
	return func(e *Engine) {
		if c != nil {
			e.catalog = c
		}
	}
}

// WithPlaceholderColor sets the placeholder fill.
func WithPlaceholderColor(c color.RGBA) Option {
	return func(e *Engine) { e.placeholder = c }
}

// WithSampleRate sets the audio mix rate.
func WithSampleRate(rate int) Option {
	return func(e *Engine) {
		if rate > 0 {
			e.sampleRate = rate
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine renders timelines. It holds no per-render state and may be shared
// by concurrent renders as long as its providers are.
type Engine struct {
	resolver    resolver.Resolver
	effects     effects.EffectProvider
	transitions effects.TransitionProvider
	text        effects.TextRenderer
	catalog     *styles.Catalog
	placeholder color.RGBA
	sampleRate  int
	logger      *slog.Logger
}

// New returns an engine resolving sources through res. A nil res resolves
// nothing, so every sourced clip renders as a placeholder.
func New(res resolver.Resolver, opts ...Option) *Engine {
	builtin := effects.NewBuiltin()
	e := &Engine{
		resolver:    res,
		effects:     builtin,
		transitions: effects.NewTransitions(),
		catalog:     styles.Builtin(),
		placeholder: DefaultPlaceholderColor,
		sampleRate:  DefaultSampleRate,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.text == nil {
		if tr, ok := e.effects.(effects.TextRenderer); ok {
			e.text = tr
		} else {
			e.text = builtin
		}
	}
	e.logger = logging.NewComponentLogger(e.logger, "engine")
	return e
}

// SampleRate returns the audio mix rate.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Render executes tl and hands the result to sink. Open media handles are
// released before Render returns on every path. The returned Result is
// populated even on failure.
func (e *Engine) Render(ctx context.Context, tl timeline.Timeline, sink Sink) (Result, error) {
	logger := logging.WithContext(ctx, e.logger)
	m := newMachine(logger)
	j := &job{
		e:       e,
		tl:      tl,
		fps:     tl.FPS,
		w:       tl.Resolution.Width,
		h:       tl.Resolution.Height,
		total:   tl.FrameCount(),
		logger:  logger,
		handles: make(map[clipKey]media.Handle),
	}
	defer j.closeHandles()

	finish := func(err error) (Result, error) {
		if err != nil {
			m.fail()
			logging.ErrorWithContext(logger, "render failed", "render_failed",
				logging.String(logging.FieldStage, string(m.history[len(m.history)-2])),
				logging.Error(err))
		}
		j.result.States = m.history
		return j.result, err
	}

	if err := timeline.Validate(tl); err != nil {
		return finish(err)
	}
	if sink == nil {
		return finish(services.Wrap(services.ErrConfiguration, "emit", "", "no encoder sink", nil))
	}

	stages := []struct {
		state State
		run   func(context.Context) error
	}{
		{StateResourcesResolving, j.resolveResources},
		{StateClipsTransforming, j.transformClips},
		{StateTrackCompositing, j.compositeTracks},
		{StateAudioMixing, j.mixAudio},
		{StateEmitting, func(ctx context.Context) error { return j.emit(ctx, sink) }},
	}
	for i, stage := range stages {
		if i > 0 {
			if err := m.advance(stage.state); err != nil {
				return finish(err)
			}
		}
		if err := stage.run(services.WithStage(ctx, string(stage.state))); err != nil {
			return finish(err)
		}
	}
	if err := m.advance(StateDone); err != nil {
		return finish(err)
	}
	logger.Info("render complete",
		logging.Int("frames", j.result.Frames),
		logging.Int("placeholders", len(j.result.Placeholders)),
		logging.Int("failures", len(j.result.Failures)),
		logging.String("artifact", j.result.Artifact))
	return finish(nil)
}

type clipKey struct {
	track int
	clip  int
}

// job is the state of one Render call.
type job struct {
	e      *Engine
	tl     timeline.Timeline
	fps    float64
	w, h   int
	total  int
	logger *slog.Logger

	handles map[clipKey]media.Handle
	layers  []layer
	frames  []*image.RGBA
	audio   media.AudioBuffer
	result  Result
}

func (j *job) closeHandles() {
	for key, h := range j.handles {
		if err := h.Close(); err != nil {
			j.logger.Debug("close media handle", logging.String("source", h.Name()), logging.Error(err))
		}
		delete(j.handles, key)
	}
}

// TrackLabel names a track in reports: its name, or "<type>#<index>".
func TrackLabel(index int, track timeline.Track) string {
	if track.Name != "" {
		return track.Name
	}
	return string(track.Type) + "#" + strconv.Itoa(index)
}

func (j *job) resolveResources(ctx context.Context) error {
	for ti, track := range j.tl.Tracks {
		if !track.Enabled || (track.Type != timeline.TrackVideo && track.Type != timeline.TrackAudio) {
			continue
		}
		for ci, clip := range track.Clips {
			h, err := j.resolve(ctx, clip.Source)
			if err == nil {
				switch {
				case track.Type == timeline.TrackVideo && !h.HasVideo():
					err = services.Wrap(services.ErrResourceMissing, "resolve", clip.Source, "source has no video stream", nil)
				case track.Type == timeline.TrackAudio && !h.HasAudio():
					err = services.Wrap(services.ErrResourceMissing, "resolve", clip.Source, "source has no audio stream", nil)
				}
				if err != nil {
					_ = h.Close()
				}
			}
			if err != nil {
				if services.SeverityOf(err) == services.SeverityFatal {
					return err
				}
				j.substitute(ti, ci, err)
				h = media.NewPlaceholder(clip.Source, j.e.placeholder, j.w, j.h)
			}
			j.handles[clipKey{ti, ci}] = h
		}
	}
	return nil
}

func (j *job) resolve(ctx context.Context, source string) (media.Handle, error) {
	if j.e.resolver == nil {
		return nil, services.Wrap(services.ErrResourceMissing, "resolve", source, "no resolver configured", nil)
	}
	h, err := j.e.resolver.Resolve(ctx, source)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrCanceled, "resolve", source, "", err)
		}
		return nil, err
	}
	return h, nil
}

// substitute records that clip (ti, ci) renders from a placeholder.
func (j *job) substitute(ti, ci int, cause error) {
	track := j.tl.Tracks[ti]
	clip := track.Clips[ci]
	p := Placeholder{
		Track:  TrackLabel(ti, track),
		Clip:   ci,
		Source: clip.Source,
		Start:  clip.Start,
		End:    clip.End,
		Reason: cause.Error(),
	}
	j.result.Placeholders = append(j.result.Placeholders, p)
	logging.WarnWithContext(j.logger, "source replaced by placeholder", "placeholder_substituted",
		logging.String("source", clip.Source),
		logging.Clip(p.Track, ci),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check paths.media_dirs and the clip source"),
		logging.String(logging.FieldImpact, "clip renders as a flat color"))
}

// skip records a recoverable effect failure on clip (ti, ci).
func (j *job) skip(ti, ci int, effect string, cause error) {
	track := j.tl.Tracks[ti]
	err := cause
	if !errors.Is(err, services.ErrEffectApplication) {
		err = services.Wrap(services.ErrEffectApplication, "transform", effect, "", cause)
	}
	f := Failure{
		Track:   TrackLabel(ti, track),
		Clip:    ci,
		Kind:    services.Kind(err),
		Effect:  effect,
		Message: err.Error(),
	}
	j.result.Failures = append(j.result.Failures, f)
	logging.WarnWithContext(j.logger, "effect skipped", "effect_skipped",
		logging.String("effect", effect),
		logging.Clip(f.Track, ci),
		logging.Error(cause),
		logging.String(logging.FieldErrorHint, "check the filter id and its parameters"),
		logging.String(logging.FieldImpact, "clip renders without this effect"))
}

func (j *job) emit(ctx context.Context, sink Sink) error {
	format := Format{FPS: j.fps, Width: j.w, Height: j.h, SampleRate: j.audio.SampleRate}
	artifact, err := sink.Write(ctx, j.frames, j.audio, format)
	j.frames = nil
	if err != nil {
		if errors.Is(err, services.ErrEncoding) {
			return err
		}
		return services.Wrap(services.ErrEncoding, "emit", "write", "encoder sink failed", err)
	}
	j.result.Artifact = artifact
	return nil
}
