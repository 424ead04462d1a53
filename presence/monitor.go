// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/processone/fluux-messenger-sub009/lib/clock"
)

// MonitorOptions tunes idle detection. Zero fields take defaults.
type MonitorOptions struct {
	// IdleThreshold is how long without activity before IdleElapsed
	// is fed to the machine. Default: 5m.
	IdleThreshold time.Duration

	// PollInterval is how often idle time is checked. Default: 15s.
	PollInterval time.Duration
}

func (o MonitorOptions) withDefaults() MonitorOptions {
	if o.IdleThreshold <= 0 {
		o.IdleThreshold = 5 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 15 * time.Second
	}
	return o
}

// Monitor polls the time since the last activity ping and drives the
// machine's IdleElapsed/ActivityDetected inputs. The platform shell
// feeds it activity pings (keyboard, mouse, focus); the Monitor never
// reads platform state itself.
type Monitor struct {
	machine *Machine
	clk     clock.Clock
	opts    MonitorOptions
	logger  *slog.Logger

	mu           sync.Mutex
	lastActivity time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewMonitor returns a Monitor feeding machine. Start must be called
// before any idle detection happens.
func NewMonitor(machine *Machine, clk clock.Clock, logger *slog.Logger, opts MonitorOptions) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		machine: machine,
		clk:     clk,
		opts:    opts.withDefaults(),
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the polling goroutine. The activity clock begins at
// Start time, so a session idle before connecting is not immediately
// marked away. The ticker is armed before Start returns: time advanced
// after Start always reaches the poll, even on a fake clock. Start is
// idempotent.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.mu.Lock()
		m.lastActivity = m.clk.Now()
		m.mu.Unlock()
		ticker := m.clk.NewTicker(m.opts.PollInterval)
		go m.run(ticker)
	})
}

func (m *Monitor) run(ticker *clock.Ticker) {
	defer close(m.done)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.poll()
		case <-m.stop:
			return
		}
	}
}

func (m *Monitor) poll() {
	m.mu.Lock()
	idle := m.clk.Now().Sub(m.lastActivity)
	m.mu.Unlock()
	if idle >= m.opts.IdleThreshold {
		m.machine.IdleElapsed()
	}
}

// Activity records a user activity ping and lifts auto-away if it is
// active. Safe to call at any rate; the timestamp update is cheap.
func (m *Monitor) Activity() {
	m.mu.Lock()
	m.lastActivity = m.clk.Now()
	m.mu.Unlock()
	m.machine.ActivityDetected()
}

// Stop halts polling. Blocks until the polling goroutine has exited;
// after Stop returns the Monitor feeds no further inputs. Stop is
// idempotent. A stopped Monitor cannot be restarted.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	// Start may never have been called; done closes only via run.
	m.startOnce.Do(func() { close(m.done) })
	<-m.done
}
