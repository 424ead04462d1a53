// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/processone/fluux-messenger-sub009/event"
	"github.com/processone/fluux-messenger-sub009/lib/jid"
	"github.com/processone/fluux-messenger-sub009/presence"
	"github.com/processone/fluux-messenger-sub009/session"
)

// Script is a recorded sequence of protocol events and local commands,
// replayed through a session in order.
type Script struct {
	// User is the account JID stamped on locally sent messages.
	User string `yaml:"user"`

	Steps []Step `yaml:"steps"`
}

// Step is one script entry. Kind selects which fields are meaningful;
// unknown kinds fail the replay rather than being skipped, so a typo
// in a recorded script is caught immediately.
type Step struct {
	Kind string `yaml:"kind"`

	// Connection lifecycle (kind: connection).
	State string `yaml:"state,omitempty"`

	// Peers and rooms.
	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`
	Room string `yaml:"room,omitempty"`

	// Message content.
	ID   string `yaml:"id,omitempty"`
	Body string `yaml:"body,omitempty"`
	Nick string `yaml:"nick,omitempty"`

	// Presence and typing.
	Show      string `yaml:"show,omitempty"`
	Status    string `yaml:"status,omitempty"`
	Composing bool   `yaml:"composing,omitempty"`

	// Roster payloads (kind: roster).
	Contacts []ScriptContact `yaml:"contacts,omitempty"`

	// Room metadata.
	Name    string `yaml:"name,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// ScriptContact is one roster entry inside a roster step.
type ScriptContact struct {
	JID          string `yaml:"jid"`
	Name         string `yaml:"name,omitempty"`
	Subscription string `yaml:"subscription,omitempty"`
}

// ParseScript decodes a YAML replay script.
func ParseScript(data []byte) (Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return Script{}, fmt.Errorf("script: parse: %w", err)
	}
	if script.User == "" {
		return Script{}, fmt.Errorf("script: user is required")
	}
	if _, err := jid.Parse(script.User); err != nil {
		return Script{}, fmt.Errorf("script: user: %w", err)
	}
	return script, nil
}

// Replay applies every step to the session in order and flushes, so
// the session model reflects the full script when Replay returns.
func Replay(s *session.Session, script Script, now time.Time) error {
	for i, step := range script.Steps {
		if err := applyStep(s, step, now); err != nil {
			return fmt.Errorf("script: step %d (%s): %w", i+1, step.Kind, err)
		}
	}
	s.Flush()
	return nil
}

func applyStep(s *session.Session, step Step, now time.Time) error {
	switch step.Kind {
	case "connection":
		state := event.ConnectionState(step.State)
		switch state {
		case event.ConnectionConnecting, event.ConnectionConnected,
			event.ConnectionDisconnected, event.ConnectionFailed:
		default:
			return fmt.Errorf("unknown connection state %q", step.State)
		}
		session.Deliver(s, event.ConnectionStatus, event.ConnectionStatusPayload{State: state})

	case "roster":
		contacts := make([]event.RosterEntry, len(step.Contacts))
		for i, contact := range step.Contacts {
			parsed, err := jid.Parse(contact.JID)
			if err != nil {
				return fmt.Errorf("contact %d: %w", i+1, err)
			}
			contacts[i] = event.RosterEntry{
				JID:          parsed,
				Name:         contact.Name,
				Subscription: contact.Subscription,
			}
		}
		session.Deliver(s, event.RosterLoaded, event.RosterLoadedPayload{Contacts: contacts})

	case "presence":
		from, err := jid.Parse(step.From)
		if err != nil {
			return err
		}
		show := presence.Show(step.Show)
		if !show.Valid() && show != presence.ShowUnavailable {
			return fmt.Errorf("unknown show %q", step.Show)
		}
		session.Deliver(s, event.ContactPresence, event.ContactPresencePayload{
			From:   from,
			Show:   show,
			Status: step.Status,
		})

	case "chat":
		from, err := jid.Parse(step.From)
		if err != nil {
			return err
		}
		session.Deliver(s, event.ChatMessage, event.ChatMessagePayload{
			ID:        step.ID,
			From:      from,
			Body:      step.Body,
			Timestamp: now,
		})

	case "typing":
		from, err := jid.Parse(step.From)
		if err != nil {
			return err
		}
		session.Deliver(s, event.ChatState, event.ChatStatePayload{
			From:      from,
			Composing: step.Composing,
		})

	case "room-added":
		room, err := jid.Parse(step.Room)
		if err != nil {
			return err
		}
		session.Deliver(s, event.RoomAdded, event.RoomAddedPayload{Room: room, Name: step.Name})

	case "room-joined":
		room, err := jid.Parse(step.Room)
		if err != nil {
			return err
		}
		session.Deliver(s, event.RoomJoined, event.RoomJoinedPayload{Room: room, Nick: step.Nick})

	case "room-left":
		room, err := jid.Parse(step.Room)
		if err != nil {
			return err
		}
		session.Deliver(s, event.RoomLeft, event.RoomLeftPayload{Room: room})

	case "room-subject":
		room, err := jid.Parse(step.Room)
		if err != nil {
			return err
		}
		session.Deliver(s, event.RoomSubject, event.RoomSubjectPayload{Room: room, Subject: step.Subject})

	case "room-message":
		room, err := jid.Parse(step.Room)
		if err != nil {
			return err
		}
		session.Deliver(s, event.RoomMessage, event.RoomMessagePayload{
			ID:        step.ID,
			Room:      room,
			Nick:      step.Nick,
			Body:      step.Body,
			Timestamp: now,
		})

	case "send":
		to, err := jid.Parse(step.To)
		if err != nil {
			return err
		}
		s.SendMessage(to, step.Body)

	case "send-room":
		room, err := jid.Parse(step.Room)
		if err != nil {
			return err
		}
		s.SendRoomMessage(room, step.Body)

	case "set-show":
		show := presence.Show(step.Show)
		if !show.Valid() {
			return fmt.Errorf("unknown show %q", step.Show)
		}
		s.SetPresence(show)

	case "mark-read":
		peer, err := jid.Parse(step.From)
		if err != nil {
			return err
		}
		s.MarkRead(peer)

	case "sleep":
		s.SleepDetected()

	case "wake":
		s.WakeDetected()

	default:
		return fmt.Errorf("unknown step kind %q", step.Kind)
	}
	return nil
}
