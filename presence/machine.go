// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence models the session's availability as an explicit
// state machine reconciling three input sources: manual user intent,
// idle-based auto-away, and system sleep/wake signals.
//
// The transition function is total: an input with no valid transition
// for the current state is a silent no-op, never an error. Duplicate
// and out-of-order platform signals therefore cannot corrupt the
// machine. Manual intent always wins: a SetShow call from any
// connected state lands in StateOnline with the chosen show and
// clears any automatic override.
//
// While an automatic override is active (StateAutoAway or
// StateSleepPending), the user's real show is carried in the status
// so the machine can restore it on activity or wake. The saved show
// never survives a disconnect.
package presence

import (
	"fmt"
	"log/slog"
	"sync"
)

// State is the machine's top-level state.
type State int

const (
	// StateOffline is the initial state and the state after any
	// disconnect.
	StateOffline State = iota
	// StateConnecting is entered when a connection attempt starts.
	StateConnecting
	// StateOnline is connected with a user-chosen show.
	StateOnline
	// StateAutoAway is connected, marked away because the user went
	// idle. The pre-idle show is saved for restoration.
	StateAutoAway
	// StateSleepPending is connected, the system announced an
	// imminent sleep. The pre-sleep show is saved for restoration.
	StateSleepPending
	// StateError is entered when the connection fails.
	StateError
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateOffline:
		return "offline"
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	case StateAutoAway:
		return "auto-away"
	case StateSleepPending:
		return "sleep-pending"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is one point in the machine's state space. The zero value is
// the disconnected initial status.
//
// Show is the user's real, restorable show. In StateOnline it is the
// current show; in StateAutoAway and StateSleepPending it is the show
// that will be restored when the override lifts. Outside connected
// states it is meaningless.
type Status struct {
	State State
	Show  Show
}

// Connected reports whether the session has an established
// connection (including while an automatic override is active).
func (s Status) Connected() bool {
	switch s.State {
	case StateOnline, StateAutoAway, StateSleepPending:
		return true
	}
	return false
}

// IsAutoAway reports whether an idle-triggered override is active.
func (s Status) IsAutoAway() bool { return s.State == StateAutoAway }

// SavedShow returns the show that will be restored when the active
// automatic override lifts, and whether such an override is active.
func (s Status) SavedShow() (Show, bool) {
	if s.State == StateAutoAway || s.State == StateSleepPending {
		return s.Show, true
	}
	return "", false
}

// EffectiveShow is the availability observers should display and the
// protocol client should broadcast.
func (s Status) EffectiveShow() Show {
	switch s.State {
	case StateOnline:
		return s.Show
	case StateAutoAway:
		return ShowAway
	case StateSleepPending:
		return ShowUnavailable
	}
	return ShowOffline
}

// inputKind discriminates machine inputs.
type inputKind int

const (
	inputConnectStarted inputKind = iota
	inputConnectSucceeded
	inputConnectionFailed
	inputDisconnected
	inputSetShow
	inputIdleElapsed
	inputActivityDetected
	inputSleepDetected
	inputWakeDetected
)

func (k inputKind) String() string {
	switch k {
	case inputConnectStarted:
		return "connect-started"
	case inputConnectSucceeded:
		return "connect-succeeded"
	case inputConnectionFailed:
		return "connection-failed"
	case inputDisconnected:
		return "disconnected"
	case inputSetShow:
		return "set-show"
	case inputIdleElapsed:
		return "idle-elapsed"
	case inputActivityDetected:
		return "activity-detected"
	case inputSleepDetected:
		return "sleep-detected"
	case inputWakeDetected:
		return "wake-detected"
	}
	return fmt.Sprintf("input(%d)", int(k))
}

type input struct {
	kind inputKind
	show Show // inputSetShow only
}

// transition is the total transition function. It returns the next
// status and whether the input caused a change. It never fails: an
// input that does not apply to the current state returns unchanged.
func transition(current Status, in input) (Status, bool) {
	switch in.kind {
	case inputConnectStarted:
		if current.State == StateOffline || current.State == StateError {
			return Status{State: StateConnecting}, true
		}

	case inputConnectSucceeded:
		if !current.Connected() {
			return Status{State: StateOnline, Show: ShowOnline}, true
		}

	case inputConnectionFailed:
		if current.State != StateError {
			return Status{State: StateError}, true
		}

	case inputDisconnected:
		if current.State != StateOffline {
			return Status{State: StateOffline}, true
		}

	case inputSetShow:
		// Manual intent always wins: from any connected state this
		// lands in StateOnline and discards automatic overrides.
		if current.Connected() && in.show.Valid() {
			next := Status{State: StateOnline, Show: in.show}
			if next != current {
				return next, true
			}
		}

	case inputIdleElapsed:
		// Idle never overrides do-not-disturb.
		if current.State == StateOnline && current.Show != ShowDND {
			return Status{State: StateAutoAway, Show: current.Show}, true
		}

	case inputActivityDetected:
		if current.State == StateAutoAway {
			return Status{State: StateOnline, Show: current.Show}, true
		}

	case inputSleepDetected:
		// Sleep never overrides do-not-disturb, and an active
		// auto-away override is left in place.
		if current.State == StateOnline && current.Show != ShowDND {
			return Status{State: StateSleepPending, Show: current.Show}, true
		}

	case inputWakeDetected:
		if current.State == StateSleepPending || current.State == StateAutoAway {
			return Status{State: StateOnline, Show: current.Show}, true
		}
	}
	return current, false
}

// Machine holds the presence status and applies inputs under a
// mutex. It is the sole writer of presence state; everything else
// reads snapshots via Status.
//
// The onTransition callback fires after each effective transition,
// outside the machine's lock, with the old and new status. Inputs
// arriving concurrently are serialized, so callbacks observe
// transitions in application order when callers are on one goroutine.
type Machine struct {
	mu           sync.Mutex
	status       Status
	logger       *slog.Logger
	onTransition func(old, new Status)
}

// NewMachine returns a Machine in StateOffline. onTransition may be
// nil.
func NewMachine(logger *slog.Logger, onTransition func(old, new Status)) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		status:       Status{State: StateOffline},
		logger:       logger,
		onTransition: onTransition,
	}
}

// Status returns the current status snapshot.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ConnectStarted records that a connection attempt began.
func (m *Machine) ConnectStarted() { m.apply(input{kind: inputConnectStarted}) }

// ConnectSucceeded records an established connection. The session
// comes up as plain online.
func (m *Machine) ConnectSucceeded() { m.apply(input{kind: inputConnectSucceeded}) }

// ConnectionFailed records a failed connection attempt or a fatal
// stream error. Any saved show is discarded.
func (m *Machine) ConnectionFailed() { m.apply(input{kind: inputConnectionFailed}) }

// Disconnected records a closed connection. Any saved show is
// discarded.
func (m *Machine) Disconnected() { m.apply(input{kind: inputDisconnected}) }

// SetShow applies a manual presence choice. It wins over any active
// automatic override. Invalid show values are ignored.
func (m *Machine) SetShow(show Show) { m.apply(input{kind: inputSetShow, show: show}) }

// IdleElapsed records that the user has been idle past the
// configured threshold. Called by the idle Monitor.
func (m *Machine) IdleElapsed() { m.apply(input{kind: inputIdleElapsed}) }

// ActivityDetected records user activity, lifting auto-away.
func (m *Machine) ActivityDetected() { m.apply(input{kind: inputActivityDetected}) }

// SleepDetected records a platform sleep announcement.
func (m *Machine) SleepDetected() { m.apply(input{kind: inputSleepDetected}) }

// WakeDetected records a platform wake, lifting a pending sleep or an
// auto-away that the sleep interrupted.
func (m *Machine) WakeDetected() { m.apply(input{kind: inputWakeDetected}) }

func (m *Machine) apply(in input) {
	m.mu.Lock()
	next, changed := transition(m.status, in)
	if !changed {
		state := m.status.State
		m.mu.Unlock()
		m.logger.Debug("presence input ignored", "input", in.kind, "state", state)
		return
	}
	old := m.status
	m.status = next
	callback := m.onTransition
	m.mu.Unlock()

	m.logger.Debug("presence transition",
		"input", in.kind,
		"from", old.State, "to", next.State,
		"effective", next.EffectiveShow())
	if callback != nil {
		callback(old, next)
	}
}
