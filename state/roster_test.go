// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"
	"testing"

	"github.com/processone/fluux-messenger-sub009/lib/jid"
	"github.com/processone/fluux-messenger-sub009/presence"
)

func makeContacts(n int) []Contact {
	contacts := make([]Contact, n)
	for i := range contacts {
		contacts[i] = Contact{
			JID:          jid.MustParse(fmt.Sprintf("user%d@fluux.io", i)),
			Name:         fmt.Sprintf("User %d", i),
			Subscription: "both",
		}
	}
	return contacts
}

func TestRosterBulkLoadIsOneNotification(t *testing.T) {
	roster := NewRoster(nil)

	var notifications int
	roster.WatchAll(func(map[jid.JID]*Contact) { notifications++ })

	roster.Load(makeContacts(500))

	// One mount-time call, one for the load: never one per contact.
	if notifications != 2 {
		t.Errorf("loading 500 contacts notified %d times, want 2", notifications)
	}
	if roster.Len() != 500 {
		t.Errorf("roster has %d contacts, want 500", roster.Len())
	}
}

func TestRosterPresenceUpdateIsolated(t *testing.T) {
	roster := NewRoster(nil)
	roster.Load(makeContacts(10))

	alice := jid.MustParse("user1@fluux.io")
	bob := jid.MustParse("user2@fluux.io")

	var aliceNotifications, bobNotifications int
	roster.WatchContact(alice, func(*Contact) { aliceNotifications++ })
	roster.WatchContact(bob, func(*Contact) { bobNotifications++ })

	roster.SetPresence(alice.WithResource("laptop"), presence.ShowAway, "brb")

	if aliceNotifications != 2 {
		t.Errorf("alice watcher notified %d times, want 2 (mount + update)", aliceNotifications)
	}
	if bobNotifications != 1 {
		t.Errorf("bob watcher notified %d times for alice's update, want 1 (mount only)", bobNotifications)
	}

	contact, ok := roster.Get(alice)
	if !ok {
		t.Fatal("alice missing from roster")
	}
	if contact.Show != presence.ShowAway || contact.StatusMessage != "brb" {
		t.Errorf("alice presence = %q/%q, want away/brb", contact.Show, contact.StatusMessage)
	}

	// Same presence again: no new record, no notification.
	roster.SetPresence(alice, presence.ShowAway, "brb")
	if aliceNotifications != 2 {
		t.Errorf("duplicate presence notified alice watcher (%d times)", aliceNotifications)
	}
}

func TestRosterPresenceForUnknownContact(t *testing.T) {
	roster := NewRoster(nil)
	roster.Load(makeContacts(2))
	// Must warn and not crash or create an entry.
	roster.SetPresence(jid.MustParse("stranger@elsewhere.net"), presence.ShowOnline, "")
	if roster.Len() != 2 {
		t.Errorf("unknown presence created an entry (%d contacts)", roster.Len())
	}
}

func TestRosterUpsertPreservesPresence(t *testing.T) {
	roster := NewRoster(nil)
	roster.Load(makeContacts(3))

	alice := jid.MustParse("user1@fluux.io")
	roster.SetPresence(alice, presence.ShowDND, "busy")
	roster.Upsert(Contact{JID: alice, Name: "Alice Renamed", Subscription: "both"})

	contact, _ := roster.Get(alice)
	if contact.Name != "Alice Renamed" {
		t.Errorf("name = %q, want renamed", contact.Name)
	}
	if contact.Show != presence.ShowDND || contact.StatusMessage != "busy" {
		t.Errorf("upsert dropped live presence: %q/%q", contact.Show, contact.StatusMessage)
	}

	// New contact via push comes up offline.
	carol := jid.MustParse("carol@fluux.io")
	roster.Upsert(Contact{JID: carol, Name: "Carol"})
	if contact, _ := roster.Get(carol); contact.Show != presence.ShowOffline {
		t.Errorf("new contact show = %q, want offline", contact.Show)
	}
}

func TestRosterWatchContactAbsent(t *testing.T) {
	roster := NewRoster(nil)

	var last *Contact
	ghost := jid.MustParse("ghost@fluux.io")
	roster.WatchContact(ghost, func(contact *Contact) { last = contact })
	if last != nil {
		t.Error("absent contact projected non-nil at mount")
	}

	roster.Upsert(Contact{JID: ghost, Name: "Ghost"})
	if last == nil || last.Name != "Ghost" {
		t.Errorf("watcher did not observe the contact appearing: %+v", last)
	}

	roster.Remove(ghost)
	if last != nil {
		t.Error("watcher did not observe the contact disappearing")
	}
}
