// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TransmitState tracks an object's synchronization status relative to the
// server. The three sentinel values sort below TransmittedFloor; any value
// at or above it is a server-acknowledged transmission timestamp in
// milliseconds, so "has this been transmitted" and "when" share one column.
type TransmitState int64

const (
	// StateNeverTransmitted marks an object created locally that has never
	// reached the server. The next remote call for it is a create.
	StateNeverTransmitted TransmitState = 0

	// StateUpdateNotTransmitted marks an object the server already knows
	// about with local changes not yet sent. The next remote call is an
	// update.
	StateUpdateNotTransmitted TransmitState = 1

	// StateDeleted marks an object soft-deleted locally and retained until
	// the server acknowledges the deletion.
	StateDeleted TransmitState = 2

	// TransmittedFloor is the smallest value representing a transmitted
	// state. Values at or above it carry the acknowledgment timestamp.
	TransmittedFloor TransmitState = 3
)

// TransmittedAt returns the transmitted state carrying the given
// acknowledgment time.
func TransmittedAt(t time.Time) TransmitState {
	ms := t.UnixMilli()
	if ms < int64(TransmittedFloor) {
		ms = int64(TransmittedFloor)
	}
	return TransmitState(ms)
}

// Transmitted reports whether the state represents an acknowledged
// transmission.
func (s TransmitState) Transmitted() bool {
	return s >= TransmittedFloor
}

// Untransmitted reports whether the object still owes the server a call
// (create, update or delete).
func (s TransmitState) Untransmitted() bool {
	return s < TransmittedFloor
}

func (s TransmitState) String() string {
	switch s {
	case StateNeverTransmitted:
		return "never-transmitted"
	case StateUpdateNotTransmitted:
		return "update-not-transmitted"
	case StateDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("transmitted(%d)", int64(s))
	}
}

// Document is the wire envelope for one object: its identity plus the
// opaque marshalled object state.
type Document struct {
	ID   Identity        `json:"_id"`
	Data json.RawMessage `json:"data"`
}

var errMissingIdentity = errors.New("document has no identity")

// Validate rejects envelopes without an identity. Identity presence is a
// precondition for every store and wire operation.
func (d Document) Validate() error {
	if d.ID.IsZero() {
		return errMissingIdentity
	}
	return nil
}

// CachedDocument is one locally stored object: the encoded wire envelope
// plus the bookkeeping the store indexes it by.
type CachedDocument struct {
	Identity   Identity
	Collection string
	Payload    []byte
	UpdatedAt  int64 // milliseconds, local clock
	State      TransmitState
}

// Document decodes the stored payload back into its wire envelope.
func (c CachedDocument) Document() (Document, error) {
	var doc Document
	if err := json.Unmarshal(c.Payload, &doc); err != nil {
		return Document{}, fmt.Errorf("decode cached payload %s: %w", c.Identity, err)
	}
	return doc, nil
}
