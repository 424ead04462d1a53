// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package session owns one messaging session's reactive model: the
// event registry, the entity stores, and the presence machine, wired
// together and driven by a single loop goroutine.
//
// All protocol events and commands are posted to the loop as
// closures and applied one at a time. Within one applied input, every
// store mutation completes before the next input runs, so no handler
// ever observes a partially-applied update. Store reads and selector
// subscriptions are safe from any goroutine.
//
// There are no package-level singletons: construct a Session, pass it
// around by pointer, Close it when the account logs out.
package session

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/processone/fluux-messenger-sub009/event"
	"github.com/processone/fluux-messenger-sub009/lib/batch"
	"github.com/processone/fluux-messenger-sub009/lib/clock"
	"github.com/processone/fluux-messenger-sub009/lib/jid"
	"github.com/processone/fluux-messenger-sub009/presence"
	"github.com/processone/fluux-messenger-sub009/state"
)

// Config parameterizes a Session. Zero fields take defaults.
type Config struct {
	// User is the account's own JID, stamped on outgoing messages.
	User jid.JID

	// Logger receives diagnostics. Default: slog.Default.
	Logger *slog.Logger

	// Clock is the time source. Default: clock.Real.
	Clock clock.Clock

	// Presence tunes the idle monitor.
	Presence presence.MonitorOptions

	// BatchLimit caps concurrent operations in fan-out helpers.
	// Default: batch.DefaultLimit.
	BatchLimit int
}

// Session is the root object of one messaging session.
type Session struct {
	user       jid.JID
	logger     *slog.Logger
	clk        clock.Clock
	batchLimit int

	registry      *event.Registry
	roster        *state.Roster
	rooms         *state.Rooms
	conversations *state.Conversations
	machine       *presence.Machine
	monitor       *presence.Monitor

	inputs chan func()
	quit   chan struct{}
	done   chan struct{}
	closed atomic.Bool

	closeOnce sync.Once
}

// New constructs a Session and starts its loop and idle monitor. The
// session begins offline; the protocol client drives it by delivering
// ConnectionStatus events.
func New(cfg Config) *Session {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	s := &Session{
		user:          cfg.User,
		logger:        logger,
		clk:           clk,
		batchLimit:    cfg.BatchLimit,
		registry:      event.NewRegistry(logger),
		roster:        state.NewRoster(logger),
		rooms:         state.NewRooms(logger),
		conversations: state.NewConversations(logger),
		inputs:        make(chan func(), 256),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	// Presence transitions are re-announced through the registry.
	// The callback posts rather than dispatching inline so that
	// monitor-driven transitions (which originate on the monitor
	// goroutine) reach observers on the loop like everything else.
	s.machine = presence.NewMachine(logger, func(old, next presence.Status) {
		s.Post(func() {
			event.Dispatch(s.registry, event.PresenceChanged, event.PresenceChangedPayload{
				Old: old,
				New: next,
			})
		})
	})
	s.monitor = presence.NewMonitor(s.machine, clk, logger, cfg.Presence)

	s.bind()
	go s.loop()
	s.monitor.Start()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inputs:
			fn()
		case <-s.quit:
			return
		}
	}
}

// Post queues fn for the loop goroutine. Posting to a closed session
// is a logged no-op: a handler's in-flight async work may legally
// outlive the session.
func (s *Session) Post(fn func()) {
	if s.closed.Load() {
		s.logger.Debug("post to closed session dropped")
		return
	}
	select {
	case s.inputs <- fn:
	case <-s.quit:
		s.logger.Debug("post to closing session dropped")
	}
}

// Flush blocks until every input posted before the call has been
// applied. Mainly for tests and for collaborators that need a
// read-your-writes barrier.
func (s *Session) Flush() {
	applied := make(chan struct{})
	s.Post(func() { close(applied) })
	select {
	case <-applied:
	case <-s.done:
	}
}

// Deliver posts a protocol event for dispatch on the loop. This is
// the single entry point for the protocol client: it translates wire
// traffic into catalog payloads and delivers them here.
func Deliver[T any](s *Session, topic event.Topic[T], payload T) {
	s.Post(func() {
		event.Dispatch(s.registry, topic, payload)
	})
}

// Close stops the idle monitor and the loop. Inputs not yet applied
// are dropped. Close is idempotent and blocks until the loop exits.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.monitor.Stop()
		s.closed.Store(true)
		close(s.quit)
		<-s.done
	})
}

// Registry exposes the event registry for observers that bind to raw
// catalog events.
func (s *Session) Registry() *event.Registry { return s.registry }

// Roster returns the contact store.
func (s *Session) Roster() *state.Roster { return s.roster }

// Rooms returns the room store.
func (s *Session) Rooms() *state.Rooms { return s.rooms }

// Conversations returns the conversation store.
func (s *Session) Conversations() *state.Conversations { return s.conversations }

// Presence returns the current presence status snapshot.
func (s *Session) Presence() presence.Status { return s.machine.Status() }

// bind attaches the store-mutation handlers that turn catalog events
// into model updates. They run on the loop goroutine, in registration
// order per topic.
func (s *Session) bind() {
	event.Register(s.registry, event.ConnectionStatus, func(payload event.ConnectionStatusPayload) {
		switch payload.State {
		case event.ConnectionConnecting:
			s.machine.ConnectStarted()
		case event.ConnectionConnected:
			s.machine.ConnectSucceeded()
		case event.ConnectionDisconnected:
			s.machine.Disconnected()
			s.resetStores("disconnected")
		case event.ConnectionFailed:
			s.logger.Warn("connection failed", "address", payload.Address, "error", payload.Err)
			s.machine.ConnectionFailed()
			s.resetStores("connection failed")
		default:
			s.logger.Warn("unknown connection state ignored", "state", payload.State)
		}
	})

	event.Register(s.registry, event.ChatMessage, func(payload event.ChatMessagePayload) {
		peer := payload.From
		if payload.Outgoing {
			peer = payload.To
		}
		s.conversations.Append(peer, state.KindChat, state.Message{
			ID:        payload.ID,
			From:      payload.From,
			Body:      payload.Body,
			Timestamp: payload.Timestamp,
			Outgoing:  payload.Outgoing,
		})
		// An incoming message proves the peer stopped typing.
		if !payload.Outgoing {
			s.conversations.SetTyping(payload.From, false, payload.Timestamp)
		}
	})

	event.Register(s.registry, event.ChatState, func(payload event.ChatStatePayload) {
		s.conversations.SetTyping(payload.From, payload.Composing, s.clk.Now())
	})

	event.Register(s.registry, event.RosterLoaded, func(payload event.RosterLoadedPayload) {
		contacts := make([]state.Contact, len(payload.Contacts))
		for i, entry := range payload.Contacts {
			contacts[i] = state.Contact{
				JID:          entry.JID,
				Name:         entry.Name,
				Subscription: entry.Subscription,
			}
		}
		s.roster.Load(contacts)
	})

	event.Register(s.registry, event.ContactUpdated, func(payload event.ContactUpdatedPayload) {
		if payload.Removed {
			s.roster.Remove(payload.Contact.JID)
			return
		}
		s.roster.Upsert(state.Contact{
			JID:          payload.Contact.JID,
			Name:         payload.Contact.Name,
			Subscription: payload.Contact.Subscription,
		})
	})

	event.Register(s.registry, event.ContactPresence, func(payload event.ContactPresencePayload) {
		s.roster.SetPresence(payload.From, payload.Show, payload.Status)
	})

	event.Register(s.registry, event.RoomAdded, func(payload event.RoomAddedPayload) {
		s.rooms.Add(state.Room{JID: payload.Room, Name: payload.Name})
	})

	event.Register(s.registry, event.RoomJoined, func(payload event.RoomJoinedPayload) {
		// Joins and bookmarks race; make sure the room exists first.
		s.rooms.Add(state.Room{JID: payload.Room})
		s.rooms.SetJoined(payload.Room, payload.Nick)
	})

	event.Register(s.registry, event.RoomLeft, func(payload event.RoomLeftPayload) {
		s.rooms.SetLeft(payload.Room)
	})

	event.Register(s.registry, event.RoomSubject, func(payload event.RoomSubjectPayload) {
		s.rooms.SetSubject(payload.Room, payload.Subject)
	})

	event.Register(s.registry, event.RoomMessage, func(payload event.RoomMessagePayload) {
		s.conversations.Append(payload.Room, state.KindRoom, state.Message{
			ID:        payload.ID,
			Nick:      payload.Nick,
			Body:      payload.Body,
			Timestamp: payload.Timestamp,
			Outgoing:  payload.Outgoing,
		})
	})
}

// resetStores clears all stores and announces the reset. Saved
// presence state is already gone: the machine discarded it on the
// disconnect input that got us here.
func (s *Session) resetStores(reason string) {
	s.roster.Reset()
	s.rooms.Reset()
	s.conversations.Reset()
	event.Dispatch(s.registry, event.SessionReset, event.SessionResetPayload{Reason: reason})
}

// SetPresence applies a manual availability choice. Manual intent
// always wins over auto-away and pending sleep.
func (s *Session) SetPresence(show presence.Show) {
	s.Post(func() { s.machine.SetShow(show) })
}

// Activity records a user activity ping from the platform shell
// (keyboard, mouse, window focus). Cheap to call at input-event rate.
func (s *Session) Activity() { s.monitor.Activity() }

// SleepDetected forwards a platform sleep announcement.
func (s *Session) SleepDetected() { s.Post(s.machine.SleepDetected) }

// WakeDetected forwards a platform wake announcement.
func (s *Session) WakeDetected() {
	s.Post(func() {
		s.machine.WakeDetected()
		// Waking counts as activity; without this the first idle
		// poll after a long sleep would immediately re-trigger
		// auto-away.
		s.monitor.Activity()
	})
}

// SendMessage appends a locally-authored direct message to the model
// and announces it as a chat:message event, which the protocol client
// observes and puts on the wire. Returns the generated message ID.
func (s *Session) SendMessage(to jid.JID, body string) string {
	id := uuid.NewString()
	Deliver(s, event.ChatMessage, event.ChatMessagePayload{
		ID:        id,
		From:      s.user,
		To:        to,
		Body:      body,
		Timestamp: s.clk.Now(),
		Outgoing:  true,
	})
	return id
}

// SendRoomMessage is SendMessage for a joined room.
func (s *Session) SendRoomMessage(room jid.JID, body string) string {
	id := uuid.NewString()
	nick := ""
	if r, ok := s.rooms.Get(room); ok {
		nick = r.Nick
	}
	Deliver(s, event.RoomMessage, event.RoomMessagePayload{
		ID:        id,
		Room:      room,
		Nick:      nick,
		Body:      body,
		Timestamp: s.clk.Now(),
		Outgoing:  true,
	})
	return id
}

// MarkRead zeroes the unread count for a conversation, typically when
// the view focuses it.
func (s *Session) MarkRead(peer jid.JID) {
	s.Post(func() { s.conversations.MarkRead(peer) })
}

// FetchFunc fetches auxiliary data (vcard, avatar) for one contact.
type FetchFunc func(ctx context.Context, contact jid.JID) error

// PrefetchContacts runs fetch for every roster entry with bounded
// concurrency and returns the per-contact results. Individual
// failures never abort the batch.
func (s *Session) PrefetchContacts(ctx context.Context, fetch FetchFunc) []batch.Result {
	entries := s.roster.All()
	contacts := make([]jid.JID, 0, len(entries))
	for key := range entries {
		contacts = append(contacts, key)
	}
	return batch.Run(ctx, contacts, func(ctx context.Context, contact jid.JID) error {
		return fetch(ctx, contact)
	}, s.batchLimit)
}
