// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Fluux-replay drives a messenger session from a recorded event script
// and prints the resulting model state. Useful for reproducing bug
// reports offline: capture the event sequence, replay it here, inspect
// what the stores and the presence machine ended up with.
//
//	fluux-replay --config messenger.yaml --script capture.yaml
//
// The script format is YAML: a user JID plus an ordered list of steps,
// each either a protocol event (connection, roster, chat, presence,
// room-*) or a local command (send, set-show, mark-read, sleep, wake).
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/spf13/pflag"

	"github.com/processone/fluux-messenger-sub009/lib/config"
	"github.com/processone/fluux-messenger-sub009/lib/jid"
	"github.com/processone/fluux-messenger-sub009/presence"
	"github.com/processone/fluux-messenger-sub009/session"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fluux-replay: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	var configPath string
	var scriptPath string

	flagSet := pflag.NewFlagSet("fluux-replay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the messenger config file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&scriptPath, "script", "", "path to the replay script")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if scriptPath == "" {
		return fmt.Errorf("--script is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	script, err := ParseScript(data)
	if err != nil {
		return err
	}

	s := session.New(session.Config{
		User:   jid.MustParse(script.User),
		Logger: logger,
		Presence: presence.MonitorOptions{
			IdleThreshold: cfg.Presence.IdleThreshold,
			PollInterval:  cfg.Presence.PollInterval,
		},
		BatchLimit: cfg.Batch.Limit,
	})
	defer s.Close()

	if err := Replay(s, script, time.Now()); err != nil {
		return err
	}
	printSummary(out, s)
	return nil
}

// logLevel maps a validated config level name to its slog level.
func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// printSummary writes the post-replay model state: presence, then each
// store sorted by JID for stable output.
func printSummary(out io.Writer, s *session.Session) {
	status := s.Presence()
	fmt.Fprintf(out, "presence: %s", status.State)
	if status.Show != "" {
		fmt.Fprintf(out, " (%s)", status.EffectiveShow())
	}
	fmt.Fprintln(out)

	contacts := s.Roster().All()
	fmt.Fprintf(out, "roster: %d contacts\n", len(contacts))
	for _, key := range sortedKeys(contacts) {
		contact := contacts[key]
		fmt.Fprintf(out, "  %s  %s  show=%s\n", contact.JID, contact.Name, contact.Show)
	}

	rooms := s.Rooms().All()
	fmt.Fprintf(out, "rooms: %d\n", len(rooms))
	for _, key := range sortedKeys(rooms) {
		room := rooms[key]
		fmt.Fprintf(out, "  %s  joined=%t subject=%q\n", room.JID, room.Joined, room.Subject)
	}

	fmt.Fprintf(out, "conversations: %d (unread %d)\n", s.Conversations().Len(), s.Conversations().TotalUnread())
	for _, key := range sortedKeys(s.Conversations().All()) {
		conversation, ok := s.Conversations().Get(key)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "  %s  %s  messages=%d unread=%d\n",
			conversation.Peer, conversation.Kind, len(conversation.Messages), conversation.Unread)
	}
}

func sortedKeys[V any](entries map[jid.JID]V) []jid.JID {
	keys := make([]jid.JID, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
