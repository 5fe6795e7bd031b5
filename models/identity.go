// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The syncbox Authors

package models

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

// Identity is the globally unique key assigned to an object on first
// creation. It is a 12-byte value: a 4-byte big-endian unix timestamp,
// followed by 5 bytes of per-process entropy and a 3-byte big-endian
// counter. The layout makes identities roughly sortable by creation time
// and collision-free across devices without coordination.
type Identity [12]byte

// identityHexLen is the length of the hex form used on the wire and in
// the local store.
const identityHexLen = 24

var (
	processEntropy  [5]byte
	identityCounter atomic.Uint32
)

func init() {
	if _, err := rand.Read(processEntropy[:]); err != nil {
		panic(fmt.Sprintf("identity entropy: %v", err))
	}
	var seed [4]byte
	if _, err := rand.Read(seed[:]); err != nil {
		panic(fmt.Sprintf("identity counter seed: %v", err))
	}
	identityCounter.Store(binary.BigEndian.Uint32(seed[:]))
}

// NewIdentity generates a fresh identity for the current instant.
func NewIdentity() Identity {
	return newIdentityAt(time.Now())
}

func newIdentityAt(t time.Time) Identity {
	var id Identity
	binary.BigEndian.PutUint32(id[0:4], uint32(t.Unix()))
	copy(id[4:9], processEntropy[:])
	c := identityCounter.Add(1)
	id[9] = byte(c >> 16)
	id[10] = byte(c >> 8)
	id[11] = byte(c)
	return id
}

// IdentityFromHex parses the 24-character hex form of an identity.
func IdentityFromHex(s string) (Identity, error) {
	var id Identity
	if len(s) != identityHexLen {
		return id, fmt.Errorf("invalid identity %q: want %d hex characters, got %d", s, identityHexLen, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("invalid identity %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

// Hex returns the wire form of the identity.
func (id Identity) Hex() string {
	return hex.EncodeToString(id[:])
}

func (id Identity) String() string {
	return id.Hex()
}

// IsZero reports whether the identity has not been assigned.
func (id Identity) IsZero() bool {
	return id == Identity{}
}

// Time returns the creation timestamp embedded in the identity,
// truncated to seconds.
func (id Identity) Time() time.Time {
	return time.Unix(int64(binary.BigEndian.Uint32(id[0:4])), 0)
}

// MarshalJSON encodes the identity as its hex string.
func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.Hex())
}

// UnmarshalJSON decodes the identity from its hex string and rejects
// malformed values instead of coercing them.
func (id *Identity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode identity: %w", err)
	}
	parsed, err := IdentityFromHex(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
