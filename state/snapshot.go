// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"
	"sort"

	"github.com/processone/fluux-messenger-sub009/lib/codec"
	"github.com/processone/fluux-messenger-sub009/lib/jid"
)

// Snapshots serialize the persisted slice of a store to deterministic
// CBOR. Persistence itself is an external collaborator's concern: it
// calls Snapshot, writes the bytes wherever it likes, and feeds them
// back through Restore at the next bootstrap. Ephemeral fields
// (presence, join state, typing) are excluded by the record types'
// cbor tags; two sessions with the same roster produce identical
// bytes.

type rosterSnapshot struct {
	Contacts []Contact `cbor:"contacts"`
}

type roomsSnapshot struct {
	Rooms []Room `cbor:"rooms"`
}

// Snapshot encodes the roster's persisted fields.
func (r *Roster) Snapshot() ([]byte, error) {
	entries := r.table.Snapshot()
	contacts := make([]Contact, 0, len(entries))
	for _, contact := range entries {
		contacts = append(contacts, *contact)
	}
	sort.Slice(contacts, func(i, j int) bool {
		return contacts[i].JID.String() < contacts[j].JID.String()
	})
	data, err := codec.Marshal(rosterSnapshot{Contacts: contacts})
	if err != nil {
		return nil, fmt.Errorf("state: snapshot roster: %w", err)
	}
	return data, nil
}

// Restore replaces the roster with a previously snapshotted one, as a
// single mutation. Contacts come up with offline presence.
func (r *Roster) Restore(data []byte) error {
	var snapshot rosterSnapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("state: restore roster: %w", err)
	}
	r.Load(snapshot.Contacts)
	return nil
}

// Snapshot encodes the room list's persisted fields.
func (r *Rooms) Snapshot() ([]byte, error) {
	entries := r.table.Snapshot()
	rooms := make([]Room, 0, len(entries))
	for _, room := range entries {
		rooms = append(rooms, *room)
	}
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].JID.String() < rooms[j].JID.String()
	})
	data, err := codec.Marshal(roomsSnapshot{Rooms: rooms})
	if err != nil {
		return nil, fmt.Errorf("state: snapshot rooms: %w", err)
	}
	return data, nil
}

// Restore replaces the room list with a previously snapshotted one,
// as a single mutation. Every room comes up unjoined.
func (r *Rooms) Restore(data []byte) error {
	var snapshot roomsSnapshot
	if err := codec.Unmarshal(data, &snapshot); err != nil {
		return fmt.Errorf("state: restore rooms: %w", err)
	}
	entries := make(map[jid.JID]*Room, len(snapshot.Rooms))
	for _, room := range snapshot.Rooms {
		room := room
		room.JID = room.JID.Bare()
		room.Joined = false
		room.Nick = ""
		room.Subject = ""
		entries[room.JID] = &room
	}
	r.table.Replace(entries)
	return nil
}
