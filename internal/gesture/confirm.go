package gesture

import "time"

// DefaultSustain is how long a label must be held before it commits.
const DefaultSustain = 1500 * time.Millisecond

// ConfirmationState is the engine's tracking state. Tracking is false in the
// Idle state, in which case Label is Sentinel and Since is zero.
type ConfirmationState struct {
	Tracking bool
	Label    Label
	Since    time.Time
	Progress float64
}

// Step is what one observation produced, for observers.
type Step struct {
	Label     Label
	Display   string
	Progress  float64
	Committed string // non-empty only on the frame that completed a hold
}

// Engine debounces per-frame labels into committed characters. A label must
// be observed continuously for the sustain duration to commit, measured on
// the timestamps passed to Observe rather than on frame counts.
//
// Engine is not safe for concurrent use; the frame loop owns it.
type Engine struct {
	alphabet *Alphabet
	sustain  time.Duration
	state    ConfirmationState
}

// NewEngine creates an idle engine. A non-positive sustain uses DefaultSustain.
func NewEngine(alphabet *Alphabet, sustain time.Duration) *Engine {
	if sustain <= 0 {
		sustain = DefaultSustain
	}
	return &Engine{
		alphabet: alphabet,
		sustain:  sustain,
		state:    idleState(),
	}
}

func idleState() ConfirmationState {
	return ConfirmationState{Label: Sentinel}
}

// Sustain returns the configured hold duration.
func (e *Engine) Sustain() time.Duration {
	return e.sustain
}

// State returns a copy of the current tracking state.
func (e *Engine) State() ConfirmationState {
	return e.state
}

// Reset returns the engine to Idle.
func (e *Engine) Reset() {
	e.state = idleState()
}

// Observe feeds the winning label of the frame captured at now. Labels not in
// the alphabet are treated as Sentinel.
func (e *Engine) Observe(l Label, now time.Time) Step {
	if l == "" || !e.alphabet.Contains(l) {
		l = Sentinel
	}

	step := Step{Label: l, Display: e.alphabet.Display(l)}

	switch {
	case l == Sentinel:
		e.state = idleState()

	case !e.state.Tracking || e.state.Label != l:
		e.state = ConfirmationState{Tracking: true, Label: l, Since: now}

	default:
		elapsed := now.Sub(e.state.Since)
		if elapsed < 0 {
			elapsed = 0
		}
		p := float64(elapsed) / float64(e.sustain) * 100
		if p > 100 {
			p = 100
		}
		if p < e.state.Progress {
			p = e.state.Progress
		}

		if p >= 100 {
			step.Committed = e.alphabet.Char(l)
			e.state = idleState()
			break
		}
		e.state.Progress = p
	}

	step.Progress = e.state.Progress
	return step
}
