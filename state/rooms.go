// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"log/slog"

	"github.com/processone/fluux-messenger-sub009/lib/jid"
)

// Room is one multi-user room the account knows about. Records are
// immutable; mutations install a new *Room.
//
// Joined and Nick are per-session and excluded from snapshots: a
// restored session starts with every room unjoined.
type Room struct {
	JID     jid.JID `cbor:"jid"`
	Name    string  `cbor:"name,omitempty"`
	Subject string  `cbor:"-"`
	Nick    string  `cbor:"-"`
	Joined  bool    `cbor:"-"`
}

// Rooms is the room store, keyed by the room's bare JID.
type Rooms struct {
	table  *Table[jid.JID, *Room]
	logger *slog.Logger
}

// NewRooms returns an empty room store.
func NewRooms(logger *slog.Logger) *Rooms {
	if logger == nil {
		logger = slog.Default()
	}
	return &Rooms{
		table:  NewTable[jid.JID, *Room]("rooms", logger),
		logger: logger,
	}
}

// Add registers a room. Adding a room that already exists is a silent
// no-op: bookmarks and joins race, and whichever arrives first wins.
func (r *Rooms) Add(room Room) {
	room.JID = room.JID.Bare()
	if _, ok := r.table.Get(room.JID); ok {
		return
	}
	r.table.Put(room.JID, &room)
}

// SetJoined marks the room as joined under the given nick. Unknown
// rooms warn and change nothing; callers that may join unlisted rooms
// Add first.
func (r *Rooms) SetJoined(roomJID jid.JID, nick string) {
	r.table.Update(roomJID.Bare(), func(current *Room) *Room {
		if current.Joined && current.Nick == nick {
			return current
		}
		updated := *current
		updated.Joined = true
		updated.Nick = nick
		return &updated
	})
}

// SetLeft marks the room as no longer joined.
func (r *Rooms) SetLeft(roomJID jid.JID) {
	r.table.Update(roomJID.Bare(), func(current *Room) *Room {
		if !current.Joined {
			return current
		}
		updated := *current
		updated.Joined = false
		updated.Nick = ""
		return &updated
	})
}

// SetSubject records a subject change.
func (r *Rooms) SetSubject(roomJID jid.JID, subject string) {
	r.table.Update(roomJID.Bare(), func(current *Room) *Room {
		if current.Subject == subject {
			return current
		}
		updated := *current
		updated.Subject = subject
		return &updated
	})
}

// Remove deletes the room entirely (bookmark removed).
func (r *Rooms) Remove(roomJID jid.JID) {
	r.table.Delete(roomJID.Bare())
}

// Get returns the room for the bare form of the given JID.
func (r *Rooms) Get(roomJID jid.JID) (*Room, bool) {
	return r.table.Get(roomJID.Bare())
}

// Len returns the number of rooms.
func (r *Rooms) Len() int { return r.table.Len() }

// All returns the current room map. Read-only: the map is never
// written after being installed.
func (r *Rooms) All() map[jid.JID]*Room { return r.table.Snapshot() }

// Reset clears the store (disconnect or logout).
func (r *Rooms) Reset() { r.table.Reset() }

// WatchRoom subscribes to one room's record. onChange receives nil
// while the room is absent.
func (r *Rooms) WatchRoom(roomJID jid.JID, onChange func(*Room)) Unwatch {
	key := roomJID.Bare()
	return Watch(r.table, func(entries map[jid.JID]*Room) *Room {
		return entries[key]
	}, onChange)
}

// WatchAll subscribes to every room mutation with the full map.
func (r *Rooms) WatchAll(onChange func(map[jid.JID]*Room)) Unwatch {
	return r.table.WatchAll(onChange)
}
