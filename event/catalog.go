// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package event routes the closed catalog of protocol-originated
// events to independently registered handlers.
//
// Each event name is a typed [Topic]: the payload type is bound at
// compile time, so a handler registered for ChatMessage receives a
// [ChatMessagePayload] and nothing else. The protocol client
// translates wire detail into these payloads before anything in the
// model sees them; nothing here depends on the wire format.
//
// The catalog is closed by convention: topics are declared in this
// file and nowhere else. Adding an event kind means adding a payload
// struct and a topic variable here.
package event

import (
	"time"

	"github.com/processone/fluux-messenger-sub009/lib/jid"
	"github.com/processone/fluux-messenger-sub009/presence"
)

// Topic names one event kind and binds its payload type. Topics are
// declared once at package level; handlers and dispatchers meet on
// the shared variable.
type Topic[T any] struct {
	name string
}

// NewTopic declares a topic. Call only from catalog declarations.
func NewTopic[T any](name string) Topic[T] {
	return Topic[T]{name: name}
}

// Name returns the event name, for logging.
func (t Topic[T]) Name() string { return t.name }

// ConnectionState is the coarse connection lifecycle phase carried by
// ConnectionStatus events.
type ConnectionState string

const (
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionFailed       ConnectionState = "failed"
)

// ConnectionStatusPayload reports a connection lifecycle change.
type ConnectionStatusPayload struct {
	State ConnectionState
	// Address is the endpoint involved, when known.
	Address string
	// Err is the failure description for ConnectionFailed, empty
	// otherwise. A string rather than an error so payloads stay
	// plain values.
	Err string
}

// ChatMessagePayload is one direct (one-to-one) message, incoming or
// locally sent.
type ChatMessagePayload struct {
	ID        string
	From      jid.JID
	To        jid.JID
	Body      string
	Timestamp time.Time
	// Outgoing marks messages authored locally.
	Outgoing bool
}

// ChatStatePayload reports a peer's typing state for a direct
// conversation.
type ChatStatePayload struct {
	From      jid.JID
	Composing bool
}

// RosterEntry is one contact as delivered by the server.
type RosterEntry struct {
	JID  jid.JID
	Name string
	// Subscription is the roster subscription state ("both", "to",
	// "from", "none").
	Subscription string
}

// RosterLoadedPayload carries the full roster at session bootstrap.
type RosterLoadedPayload struct {
	Contacts []RosterEntry
}

// ContactUpdatedPayload reports a single roster entry change (push).
type ContactUpdatedPayload struct {
	Contact RosterEntry
	// Removed marks a roster deletion rather than an upsert.
	Removed bool
}

// ContactPresencePayload reports a contact's availability change.
type ContactPresencePayload struct {
	From   jid.JID
	Show   presence.Show
	Status string
}

// RoomAddedPayload announces a room the account is a member of
// (bookmarks, invites, directory).
type RoomAddedPayload struct {
	Room jid.JID
	Name string
}

// RoomJoinedPayload reports a completed room join.
type RoomJoinedPayload struct {
	Room jid.JID
	// Nick is the occupant nickname granted by the room.
	Nick string
}

// RoomLeftPayload reports leaving a room (voluntarily or kicked).
type RoomLeftPayload struct {
	Room jid.JID
}

// RoomSubjectPayload reports a room subject change.
type RoomSubjectPayload struct {
	Room    jid.JID
	Subject string
}

// RoomMessagePayload is one group-chat message.
type RoomMessagePayload struct {
	ID   string
	Room jid.JID
	// Nick is the sending occupant's nickname within the room.
	Nick      string
	Body      string
	Timestamp time.Time
	Outgoing  bool
}

// PresenceChangedPayload reports an effective transition of the local
// presence machine.
type PresenceChangedPayload struct {
	Old presence.Status
	New presence.Status
}

// SessionResetPayload announces that the stores were cleared
// (disconnect or logout). Observers drop any cached projections.
type SessionResetPayload struct {
	Reason string
}

// The closed event catalog.
var (
	ConnectionStatus = NewTopic[ConnectionStatusPayload]("connection:status")
	ChatMessage      = NewTopic[ChatMessagePayload]("chat:message")
	ChatState        = NewTopic[ChatStatePayload]("chat:state")
	RosterLoaded     = NewTopic[RosterLoadedPayload]("roster:loaded")
	ContactUpdated   = NewTopic[ContactUpdatedPayload]("contact:updated")
	ContactPresence  = NewTopic[ContactPresencePayload]("contact:presence")
	RoomAdded        = NewTopic[RoomAddedPayload]("room:added")
	RoomJoined       = NewTopic[RoomJoinedPayload]("room:joined")
	RoomLeft         = NewTopic[RoomLeftPayload]("room:left")
	RoomSubject      = NewTopic[RoomSubjectPayload]("room:subject")
	RoomMessage      = NewTopic[RoomMessagePayload]("room:message")
	PresenceChanged  = NewTopic[PresenceChangedPayload]("presence:changed")
	SessionReset     = NewTopic[SessionResetPayload]("session:reset")
)
