// Copyright 2026 The Fluux Messenger Authors
// SPDX-License-Identifier: Apache-2.0

// Package jid provides the JID address type used throughout the
// client model. A JID has the form local@domain/resource, where the
// resource part is optional. The type exists to keep addresses apart
// from other string values (message bodies, event names, config
// values) at compile time.
//
// Store keys are always bare JIDs (no resource). Call [JID.Bare]
// before using a JID as a map key so that two resources of the same
// account land on the same entry.
package jid

import (
	"fmt"
	"strings"
)

// JID is a parsed messaging address. The zero value is invalid;
// construct values with Parse or New. JID is comparable and usable
// as a map key.
type JID struct {
	local    string
	domain   string
	resource string
}

// Parse parses a string of the form local@domain/resource. The
// resource is optional, the local part and domain are required.
func Parse(s string) (JID, error) {
	bare, resource, _ := strings.Cut(s, "/")
	local, domain, found := strings.Cut(bare, "@")
	if !found || local == "" || domain == "" {
		return JID{}, fmt.Errorf("jid: %q is not of the form local@domain", s)
	}
	if strings.Contains(domain, "@") {
		return JID{}, fmt.Errorf("jid: %q has more than one @", s)
	}
	return JID{local: local, domain: domain, resource: resource}, nil
}

// New builds a bare JID from its parts.
func New(local, domain string) (JID, error) {
	return Parse(local + "@" + domain)
}

// MustParse parses s and panics on error. For tests and constants.
func MustParse(s string) JID {
	parsed, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return parsed
}

// String renders the JID back to local@domain/resource form.
func (j JID) String() string {
	if j.resource == "" {
		return j.local + "@" + j.domain
	}
	return j.local + "@" + j.domain + "/" + j.resource
}

// Bare returns the JID with the resource stripped.
func (j JID) Bare() JID {
	j.resource = ""
	return j
}

// Local returns the part before the @.
func (j JID) Local() string { return j.local }

// Domain returns the part between the @ and the resource separator.
func (j JID) Domain() string { return j.domain }

// Resource returns the part after the /, or "" for a bare JID.
func (j JID) Resource() string { return j.resource }

// WithResource returns a copy of the JID with the given resource.
func (j JID) WithResource(resource string) JID {
	j.resource = resource
	return j
}

// IsZero reports whether the JID is the invalid zero value.
func (j JID) IsZero() bool { return j.domain == "" }

// MarshalText implements encoding.TextMarshaler.
func (j JID) MarshalText() ([]byte, error) {
	if j.IsZero() {
		return nil, fmt.Errorf("jid: cannot marshal zero JID")
	}
	return []byte(j.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (j *JID) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return fmt.Errorf("unmarshal JID: %w", err)
	}
	*j = parsed
	return nil
}
