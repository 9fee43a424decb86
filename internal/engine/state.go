package engine

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"montage/internal/logging"
)

// State is a step of the per-chunk render state machine.
type State string

const (
	StateResourcesResolving State = "resources_resolving"
	StateClipsTransforming  State = "clips_transforming"
	StateTrackCompositing   State = "track_compositing"
	StateAudioMixing        State = "audio_mixing"
	StateEmitting           State = "emitting"
	StateDone               State = "done"
	StateFailed             State = "failed"
)

var stateTransitions = map[State][]State{
	StateResourcesResolving: {StateClipsTransforming, StateFailed},
	StateClipsTransforming:  {StateTrackCompositing, StateFailed},
	StateTrackCompositing:   {StateAudioMixing, StateFailed},
	StateAudioMixing:        {StateEmitting, StateFailed},
	StateEmitting:           {StateDone, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether next may follow s.
func (s State) CanTransition(next State) bool {
	return slices.Contains(stateTransitions[s], next)
}

type machine struct {
	state   State
	history []State
	entered time.Time
	logger  *slog.Logger
}

func newMachine(logger *slog.Logger) *machine {
	return &machine{
		state:   StateResourcesResolving,
		history: []State{StateResourcesResolving},
		entered: time.Now(),
		logger:  logger,
	}
}

func (m *machine) advance(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("engine: invalid transition %s -> %s", m.state, next)
	}
	m.logger.Debug("render state complete",
		logging.String(logging.FieldStage, string(m.state)),
		logging.Duration("elapsed", time.Since(m.entered)))
	m.state = next
	m.history = append(m.history, next)
	m.entered = time.Now()
	return nil
}

func (m *machine) fail() {
	if m.state.Terminal() {
		return
	}
	m.state = StateFailed
	m.history = append(m.history, StateFailed)
}
