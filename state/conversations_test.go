// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"fmt"
	"testing"
	"time"

	"github.com/processone/fluux-messenger-sub009/lib/jid"
)

var conversationEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func incoming(id int, from jid.JID, body string) Message {
	return Message{
		ID:        fmt.Sprintf("msg-%d", id),
		From:      from,
		Body:      body,
		Timestamp: conversationEpoch.Add(time.Duration(id) * time.Second),
	}
}

func TestAppendCreatesConversation(t *testing.T) {
	conversations := NewConversations(nil)
	alice := jid.MustParse("alice@fluux.io")

	conversations.Append(alice, KindChat, incoming(1, alice, "hi"))

	conversation, ok := conversations.Get(alice)
	if !ok {
		t.Fatal("conversation not created on first message")
	}
	if len(conversation.Messages) != 1 || conversation.Messages[0].Body != "hi" {
		t.Errorf("messages = %+v", conversation.Messages)
	}
	if conversation.Unread != 1 {
		t.Errorf("unread = %d, want 1", conversation.Unread)
	}
	if conversations.TotalUnread() != 1 {
		t.Errorf("total unread = %d, want 1", conversations.TotalUnread())
	}
	if !conversation.LastActivity.Equal(conversationEpoch.Add(time.Second)) {
		t.Errorf("last activity = %v", conversation.LastActivity)
	}
}

func TestOutgoingDoesNotCountUnread(t *testing.T) {
	conversations := NewConversations(nil)
	alice := jid.MustParse("alice@fluux.io")

	conversations.Append(alice, KindChat, Message{ID: "m1", Body: "hello", Outgoing: true, Timestamp: conversationEpoch})
	if conversations.TotalUnread() != 0 {
		t.Errorf("outgoing message counted as unread (%d)", conversations.TotalUnread())
	}
}

func TestBackgroundRoomChurnDoesNotNotifyActiveWatcher(t *testing.T) {
	conversations := NewConversations(nil)
	active := jid.MustParse("team@muc.fluux.io")
	background := jid.MustParse("noise@muc.fluux.io")

	conversations.Append(active, KindRoom, Message{ID: "seed", Nick: "bob", Body: "hi", Timestamp: conversationEpoch})

	var activeNotifications int
	conversations.WatchMessages(active, func([]*Message) { activeNotifications++ })
	if activeNotifications != 1 {
		t.Fatalf("mount notifications = %d, want 1", activeNotifications)
	}

	for i := 0; i < 100; i++ {
		conversations.Append(background, KindRoom, Message{
			ID:        fmt.Sprintf("bg-%d", i),
			Nick:      "spammer",
			Body:      "noise",
			Timestamp: conversationEpoch.Add(time.Duration(i) * time.Second),
		})
	}

	if activeNotifications != 1 {
		t.Errorf("active-room watcher notified %d times by background churn, want 1 (mount only)", activeNotifications)
	}

	conversations.Append(active, KindRoom, Message{ID: "direct", Nick: "bob", Body: "ping", Timestamp: conversationEpoch})
	if activeNotifications != 2 {
		t.Errorf("active-room watcher notified %d times after own message, want 2", activeNotifications)
	}
}

func TestMarkReadMaintainsTotalIncrementally(t *testing.T) {
	conversations := NewConversations(nil)
	alice := jid.MustParse("alice@fluux.io")
	bob := jid.MustParse("bob@fluux.io")

	var totals []int
	conversations.WatchTotalUnread(func(total int) { totals = append(totals, total) })

	for i := 0; i < 3; i++ {
		conversations.Append(alice, KindChat, incoming(i, alice, "a"))
	}
	for i := 0; i < 2; i++ {
		conversations.Append(bob, KindChat, incoming(10+i, bob, "b"))
	}
	if conversations.TotalUnread() != 5 {
		t.Fatalf("total unread = %d, want 5", conversations.TotalUnread())
	}

	conversations.MarkRead(alice)
	if conversations.TotalUnread() != 2 {
		t.Errorf("total unread after mark read = %d, want 2", conversations.TotalUnread())
	}

	// Marking an already-read conversation notifies nobody.
	before := len(totals)
	conversations.MarkRead(alice)
	if len(totals) != before {
		t.Error("redundant MarkRead produced a notification")
	}

	// Unknown peer: warn, no crash, total unchanged.
	conversations.MarkRead(jid.MustParse("ghost@fluux.io"))
	if conversations.TotalUnread() != 2 {
		t.Errorf("unknown MarkRead changed total to %d", conversations.TotalUnread())
	}

	want := []int{0, 1, 2, 3, 4, 5, 2}
	if len(totals) != len(want) {
		t.Fatalf("total notifications %v, want %v", totals, want)
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Errorf("totals[%d] = %d, want %d", i, totals[i], want[i])
		}
	}
}

func TestTypingChurnDoesNotInvalidateMessageWatchers(t *testing.T) {
	conversations := NewConversations(nil)
	alice := jid.MustParse("alice@fluux.io")
	conversations.Append(alice, KindChat, incoming(1, alice, "hi"))

	var messageNotifications, typingNotifications int
	conversations.WatchMessages(alice, func([]*Message) { messageNotifications++ })
	conversations.WatchTyping(alice, func(bool) { typingNotifications++ })

	for i := 0; i < 50; i++ {
		conversations.SetTyping(alice, i%2 == 0, conversationEpoch.Add(time.Duration(i)*time.Second))
	}

	if messageNotifications != 1 {
		t.Errorf("typing churn notified message watcher %d times, want 1 (mount)", messageNotifications)
	}
	if typingNotifications != 1+50 {
		t.Errorf("typing watcher notified %d times, want 51", typingNotifications)
	}

	// Redundant typing state notifies nobody.
	conversations.SetTyping(alice, false, conversationEpoch)
	if typingNotifications != 51 {
		t.Errorf("redundant typing state notified (%d)", typingNotifications)
	}
}

func TestAppendDoesNotAliasObserverSlices(t *testing.T) {
	conversations := NewConversations(nil)
	alice := jid.MustParse("alice@fluux.io")

	conversations.Append(alice, KindChat, incoming(1, alice, "one"))
	first, _ := conversations.Get(alice)
	held := first.Messages

	conversations.Append(alice, KindChat, incoming(2, alice, "two"))

	if len(held) != 1 || held[0].Body != "one" {
		t.Errorf("observer-held slice changed: %+v", held)
	}
	second, _ := conversations.Get(alice)
	if len(second.Messages) != 2 {
		t.Errorf("current slice has %d messages, want 2", len(second.Messages))
	}
	if first == second {
		t.Error("append did not install a new conversation record")
	}
}

func TestConversationsReset(t *testing.T) {
	conversations := NewConversations(nil)
	alice := jid.MustParse("alice@fluux.io")
	conversations.Append(alice, KindChat, incoming(1, alice, "hi"))
	conversations.SetTyping(alice, true, conversationEpoch)

	conversations.Reset()

	if conversations.Len() != 0 {
		t.Errorf("%d conversations after reset", conversations.Len())
	}
	if conversations.TotalUnread() != 0 {
		t.Errorf("total unread %d after reset", conversations.TotalUnread())
	}
	var typing bool
	conversations.WatchTyping(alice, func(composing bool) { typing = composing })
	if typing {
		t.Error("typing state survived reset")
	}
}
