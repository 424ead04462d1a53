// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"log/slog"

	"github.com/processone/fluux-messenger-sub009/lib/jid"
	"github.com/processone/fluux-messenger-sub009/presence"
)

// Contact is one roster entry. Records are immutable: mutations
// install a new *Contact rather than writing through an existing one.
//
// Show and StatusMessage reflect the contact's live availability and
// are excluded from snapshots; presence never survives a session.
type Contact struct {
	JID          jid.JID `cbor:"jid"`
	Name         string  `cbor:"name,omitempty"`
	Subscription string  `cbor:"subscription,omitempty"`

	Show          presence.Show `cbor:"-"`
	StatusMessage string        `cbor:"-"`
}

// Roster is the contact store, keyed by bare JID.
type Roster struct {
	table  *Table[jid.JID, *Contact]
	logger *slog.Logger
}

// NewRoster returns an empty roster.
func NewRoster(logger *slog.Logger) *Roster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Roster{
		table:  NewTable[jid.JID, *Contact]("roster", logger),
		logger: logger,
	}
}

// Load replaces the whole roster in a single mutation, as delivered
// at session bootstrap. Watchers get one notification pass no matter
// how many contacts arrive. Contacts come up with offline presence.
func (r *Roster) Load(contacts []Contact) {
	entries := make(map[jid.JID]*Contact, len(contacts))
	for _, contact := range contacts {
		contact := contact
		contact.JID = contact.JID.Bare()
		contact.Show = presence.ShowOffline
		entries[contact.JID] = &contact
	}
	r.table.Replace(entries)
}

// Upsert inserts or updates one contact (a roster push). The live
// presence of an existing entry is preserved; only the roster fields
// change.
func (r *Roster) Upsert(contact Contact) {
	contact.JID = contact.JID.Bare()
	if existing, ok := r.table.Get(contact.JID); ok {
		contact.Show = existing.Show
		contact.StatusMessage = existing.StatusMessage
	} else {
		contact.Show = presence.ShowOffline
	}
	r.table.Put(contact.JID, &contact)
}

// Remove deletes the contact. Removing an unknown contact warns and
// changes nothing.
func (r *Roster) Remove(bare jid.JID) {
	r.table.Delete(bare.Bare())
}

// SetPresence records a contact's availability change. Presence from
// a JID not on the roster warns and changes nothing. A report that
// matches the contact's current presence notifies nobody.
func (r *Roster) SetPresence(from jid.JID, show presence.Show, statusMessage string) {
	r.table.Update(from.Bare(), func(current *Contact) *Contact {
		if current.Show == show && current.StatusMessage == statusMessage {
			return current
		}
		updated := *current
		updated.Show = show
		updated.StatusMessage = statusMessage
		return &updated
	})
}

// Get returns the contact for the bare form of the given JID.
func (r *Roster) Get(bare jid.JID) (*Contact, bool) {
	return r.table.Get(bare.Bare())
}

// Len returns the number of contacts.
func (r *Roster) Len() int { return r.table.Len() }

// All returns the current contact map. Read-only: the map is never
// written after being installed.
func (r *Roster) All() map[jid.JID]*Contact { return r.table.Snapshot() }

// Reset clears the roster (disconnect or logout).
func (r *Roster) Reset() { r.table.Reset() }

// WatchContact subscribes to one contact's record. onChange receives
// nil while the contact is absent. Updates to other contacts never
// notify this watcher.
func (r *Roster) WatchContact(bare jid.JID, onChange func(*Contact)) Unwatch {
	key := bare.Bare()
	return Watch(r.table, func(entries map[jid.JID]*Contact) *Contact {
		return entries[key]
	}, onChange)
}

// WatchAll subscribes to every roster mutation with the full map.
func (r *Roster) WatchAll(onChange func(map[jid.JID]*Contact)) Unwatch {
	return r.table.WatchAll(onChange)
}
