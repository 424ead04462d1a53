// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

package presence

// Show is an availability value as chosen by the user or reported for
// a contact.
type Show string

const (
	// ShowOnline is plain availability.
	ShowOnline Show = "online"
	// ShowAway marks the user as temporarily away.
	ShowAway Show = "away"
	// ShowDND is do-not-disturb. Automatic transitions (idle, sleep)
	// never override it.
	ShowDND Show = "dnd"
	// ShowExtendedAway marks a long absence (xa in the wire protocol).
	ShowExtendedAway Show = "xa"
	// ShowOffline is explicit invisibility while the connection stays
	// up.
	ShowOffline Show = "offline"
	// ShowUnavailable is never set manually: it is the effective show
	// reported while the machine awaits a system sleep, so observers
	// can render "asleep" distinctly from offline.
	ShowUnavailable Show = "unavailable"
)

// Valid reports whether s is a show value a user may set manually.
func (s Show) Valid() bool {
	switch s {
	case ShowOnline, ShowAway, ShowDND, ShowExtendedAway, ShowOffline:
		return true
	}
	return false
}
