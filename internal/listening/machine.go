// Package listening implements hands-free turn taking: a recorder that stops
// itself when the speaker goes quiet or a time limit is hit, hands the clip
// off for processing, and optionally starts listening again afterwards.
//
// The machine is clock-driven: callers pass the current time with every
// energy sample and on every timer tick, so it can be tested without sleeping.
package listening

import (
	"errors"
	"sync"
	"time"
)

// State of the recorder
type State int

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "unknown"
	}
}

// Reason explains why a transition happened
type Reason string

const (
	ReasonStarted     Reason = "started"
	ReasonSilence     Reason = "silence_detected"
	ReasonMaxDuration Reason = "max_duration"
	ReasonNoSpeech    Reason = "no_speech"
	ReasonManual      Reason = "manual"
	ReasonFinished    Reason = "finished"
	ReasonResumed     Reason = "resumed"
)

// Transition is a state change reported to the caller
type Transition struct {
	From   State
	To     State
	Reason Reason
}

var (
	ErrBusy         = errors.New("a clip is still being processed")
	ErrNotRecording = errors.New("not recording")
)

const (
	DefaultSilenceThreshold = 0.01
	DefaultSilenceDuration  = 1500 * time.Millisecond
	DefaultMaxDuration      = 30 * time.Second
	DefaultResumeDelay      = 500 * time.Millisecond
)

// Config tunes silence detection and auto-resume
type Config struct {
	// SilenceThreshold is the RMS level (0..1 of full scale) below which a frame counts as silence.
	SilenceThreshold float64
	SilenceDuration  time.Duration
	MaxDuration      time.Duration
	ResumeDelay      time.Duration
	Continuous       bool
}

func (c Config) withDefaults() Config {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = DefaultSilenceThreshold
	}
	if c.SilenceDuration <= 0 {
		c.SilenceDuration = DefaultSilenceDuration
	}
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.ResumeDelay < 0 {
		c.ResumeDelay = 0
	} else if c.ResumeDelay == 0 {
		c.ResumeDelay = DefaultResumeDelay
	}
	return c
}

// Machine is safe for concurrent use.
type Machine struct {
	mu  sync.Mutex
	cfg Config

	state       State
	continuous  bool
	startedAt   time.Time
	lastVoiceAt time.Time
	heardSpeech bool
	resumeAt    time.Time
}

// New creates an idle machine.
func New(cfg Config) *Machine {
	cfg = cfg.withDefaults()
	return &Machine{cfg: cfg, continuous: cfg.Continuous}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Continuous reports whether the machine will resume after processing.
func (m *Machine) Continuous() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.continuous
}

// MaxDuration is the longest a recording may run.
func (m *Machine) MaxDuration() time.Duration {
	return m.cfg.MaxDuration
}

// SetContinuous switches continuous mode. Turning it off cancels a pending resume.
func (m *Machine) SetContinuous(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.continuous = on
	if !on {
		m.resumeAt = time.Time{}
	}
}

// Start begins recording. It fails with ErrBusy while a clip is processing.
func (m *Machine) Start(now time.Time) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Processing:
		return Transition{}, ErrBusy
	case Recording:
		return Transition{From: Recording, To: Recording, Reason: ReasonStarted}, nil
	}
	return m.beginRecording(now, ReasonStarted), nil
}

// Observe feeds the energy of one audio frame received at now.
func (m *Machine) Observe(now time.Time, rms float64) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Recording {
		return Transition{}, false
	}
	if rms >= m.cfg.SilenceThreshold {
		m.heardSpeech = true
		m.lastVoiceAt = now
	}
	return m.checkLimits(now)
}

// Tick advances timers: silence and max duration while recording, the resume
// delay while idle.
func (m *Machine) Tick(now time.Time) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case Recording:
		return m.checkLimits(now)
	case Idle:
		if m.continuous && !m.resumeAt.IsZero() && !now.Before(m.resumeAt) {
			return m.beginRecording(now, ReasonResumed), true
		}
	}
	return Transition{}, false
}

// Stop ends the current recording at the caller's request and leaves
// continuous mode. A recording with speech goes on to processing.
func (m *Machine) Stop(now time.Time) (Transition, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.continuous = false
	m.resumeAt = time.Time{}
	if m.state != Recording {
		return Transition{}, false
	}
	if !m.heardSpeech {
		m.state = Idle
		return Transition{From: Recording, To: Idle, Reason: ReasonNoSpeech}, true
	}
	m.state = Processing
	return Transition{From: Recording, To: Processing, Reason: ReasonManual}, true
}

// Finish marks the processed clip as done. In continuous mode recording
// resumes once ResumeDelay has passed, on a later Tick.
func (m *Machine) Finish(now time.Time) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != Processing {
		return Transition{}, ErrNotRecording
	}
	m.state = Idle
	if m.continuous {
		m.resumeAt = now.Add(m.cfg.ResumeDelay)
	}
	return Transition{From: Processing, To: Idle, Reason: ReasonFinished}, nil
}

// ResumeAt returns when recording will resume, zero if no resume is pending.
func (m *Machine) ResumeAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumeAt
}

func (m *Machine) beginRecording(now time.Time, reason Reason) Transition {
	from := m.state
	m.state = Recording
	m.startedAt = now
	m.lastVoiceAt = now
	m.heardSpeech = false
	m.resumeAt = time.Time{}
	return Transition{From: from, To: Recording, Reason: reason}
}

// checkLimits must be called with mu held and state == Recording.
func (m *Machine) checkLimits(now time.Time) (Transition, bool) {
	if m.heardSpeech && now.Sub(m.lastVoiceAt) >= m.cfg.SilenceDuration {
		m.state = Processing
		return Transition{From: Recording, To: Processing, Reason: ReasonSilence}, true
	}
	if now.Sub(m.startedAt) >= m.cfg.MaxDuration {
		if !m.heardSpeech {
			m.state = Idle
			if m.continuous {
				m.resumeAt = now.Add(m.cfg.ResumeDelay)
			}
			return Transition{From: Recording, To: Idle, Reason: ReasonNoSpeech}, true
		}
		m.state = Processing
		return Transition{From: Recording, To: Processing, Reason: ReasonMaxDuration}, true
	}
	return Transition{}, false
}
