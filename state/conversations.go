// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/processone/fluux-messenger-sub009/lib/jid"
)

// Kind distinguishes direct chats from room conversations.
type Kind string

const (
	// KindChat is a one-to-one conversation keyed by the peer's bare
	// JID.
	KindChat Kind = "chat"
	// KindRoom is a group conversation keyed by the room's bare JID.
	KindRoom Kind = "groupchat"
)

// Message is one message in a conversation. Messages are immutable
// once appended.
type Message struct {
	ID string
	// From is the sender for direct chats; zero for room messages.
	From jid.JID
	// Nick is the sending occupant for room messages; empty for
	// direct chats.
	Nick      string
	Body      string
	Timestamp time.Time
	Outgoing  bool
}

// Conversation is the message history and unread state for one peer
// or room. Records are immutable; mutations install a new
// *Conversation with a freshly capped message slice, so an appended
// message can never write through a slice an observer already holds.
type Conversation struct {
	Peer         jid.JID
	Kind         Kind
	Messages     []*Message
	Unread       int
	LastActivity time.Time
}

// TypingState is the ephemeral typing indicator for one conversation.
// It lives in a parallel runtime table so that typing churn never
// invalidates watchers of the persisted conversation fields.
type TypingState struct {
	Composing bool
	UpdatedAt time.Time
}

// Conversations is the conversation store. Both direct chats and room
// conversations live here, keyed by the peer/room bare JID.
//
// The total unread count is maintained incrementally alongside each
// mutation, never recomputed by scanning, so watching it stays O(1)
// per message.
type Conversations struct {
	table   *Table[jid.JID, *Conversation]
	runtime *Table[jid.JID, *TypingState]
	total   atomic.Int64
	logger  *slog.Logger
}

// NewConversations returns an empty conversation store.
func NewConversations(logger *slog.Logger) *Conversations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conversations{
		table:   NewTable[jid.JID, *Conversation]("conversations", logger),
		runtime: NewTable[jid.JID, *TypingState]("conversations-runtime", logger),
		logger:  logger,
	}
}

// Append adds a message to the conversation with peer, creating the
// conversation on first contact. Incoming messages increment the
// conversation's unread count and the total.
func (c *Conversations) Append(peer jid.JID, kind Kind, message Message) {
	key := peer.Bare()
	appended := &message
	c.table.mutate(func(entries map[jid.JID]*Conversation) (map[jid.JID]*Conversation, bool) {
		var updated Conversation
		if current, ok := entries[key]; ok {
			updated = *current
		} else {
			updated = Conversation{Peer: key, Kind: kind}
		}
		messages := updated.Messages
		updated.Messages = append(messages[:len(messages):len(messages)], appended)
		updated.LastActivity = message.Timestamp
		if !message.Outgoing {
			updated.Unread++
			c.total.Add(1)
		}
		next := clone(entries)
		next[key] = &updated
		return next, true
	})
}

// MarkRead zeroes the unread count for peer, typically when the view
// focuses the conversation. Unknown peers warn and change nothing; an
// already-read conversation notifies nobody.
func (c *Conversations) MarkRead(peer jid.JID) {
	c.table.Update(peer.Bare(), func(current *Conversation) *Conversation {
		if current.Unread == 0 {
			return current
		}
		c.total.Add(int64(-current.Unread))
		updated := *current
		updated.Unread = 0
		return &updated
	})
}

// SetTyping records the peer's typing state in the runtime table. A
// report that matches the current state notifies nobody.
func (c *Conversations) SetTyping(peer jid.JID, composing bool, at time.Time) {
	key := peer.Bare()
	c.runtime.mutate(func(entries map[jid.JID]*TypingState) (map[jid.JID]*TypingState, bool) {
		if current, ok := entries[key]; ok && current.Composing == composing {
			return entries, false
		}
		next := clone(entries)
		next[key] = &TypingState{Composing: composing, UpdatedAt: at}
		return next, true
	})
}

// Get returns the conversation for the bare form of the given JID.
func (c *Conversations) Get(peer jid.JID) (*Conversation, bool) {
	return c.table.Get(peer.Bare())
}

// Len returns the number of conversations.
func (c *Conversations) Len() int { return c.table.Len() }

// All returns the current conversation map. Read-only: the map is
// never written after being installed.
func (c *Conversations) All() map[jid.JID]*Conversation { return c.table.Snapshot() }

// TotalUnread returns the incrementally maintained sum of unread
// counts across all conversations.
func (c *Conversations) TotalUnread() int { return int(c.total.Load()) }

// Reset clears conversations, typing state, and the unread total.
func (c *Conversations) Reset() {
	c.total.Store(0)
	c.table.Reset()
	c.runtime.Reset()
}

// WatchMessages subscribes to one conversation's message list.
// onChange receives nil while the conversation is absent. Messages
// appended to other conversations never notify this watcher.
func (c *Conversations) WatchMessages(peer jid.JID, onChange func([]*Message)) Unwatch {
	key := peer.Bare()
	return WatchSlice(c.table, func(entries map[jid.JID]*Conversation) []*Message {
		if conversation, ok := entries[key]; ok {
			return conversation.Messages
		}
		return nil
	}, onChange)
}

// WatchUnread subscribes to one conversation's unread count.
func (c *Conversations) WatchUnread(peer jid.JID, onChange func(int)) Unwatch {
	key := peer.Bare()
	return Watch(c.table, func(entries map[jid.JID]*Conversation) int {
		if conversation, ok := entries[key]; ok {
			return conversation.Unread
		}
		return 0
	}, onChange)
}

// WatchTotalUnread subscribes to the total unread count across all
// conversations.
func (c *Conversations) WatchTotalUnread(onChange func(int)) Unwatch {
	return Watch(c.table, func(map[jid.JID]*Conversation) int {
		return int(c.total.Load())
	}, onChange)
}

// WatchTyping subscribes to the typing indicator of one conversation.
func (c *Conversations) WatchTyping(peer jid.JID, onChange func(bool)) Unwatch {
	key := peer.Bare()
	return Watch(c.runtime, func(entries map[jid.JID]*TypingState) bool {
		if typing, ok := entries[key]; ok {
			return typing.Composing
		}
		return false
	}, onChange)
}
