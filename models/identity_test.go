package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentity_Unique(t *testing.T) {
	seen := make(map[Identity]bool)
	for i := 0; i < 10000; i++ {
		id := NewIdentity()
		require.False(t, seen[id], "identity %s generated twice", id)
		seen[id] = true
	}
}

func TestIdentity_HexRoundTrip(t *testing.T) {
	id := NewIdentity()

	parsed, err := IdentityFromHex(id.Hex())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.Len(t, id.Hex(), 24)
}

func TestIdentityFromHex_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"too short", "abcdef"},
		{"too long", "0123456789abcdef0123456789abcdef"},
		{"not hex", "zzzzzzzzzzzzzzzzzzzzzzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := IdentityFromHex(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestIdentity_IsZero(t *testing.T) {
	var zero Identity
	assert.True(t, zero.IsZero())
	assert.False(t, NewIdentity().IsZero())
}

func TestIdentity_EmbedsCreationTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewIdentity()
	after := time.Now().Add(time.Second)

	assert.True(t, id.Time().After(before))
	assert.True(t, id.Time().Before(after))
}

func TestIdentity_JSONRoundTrip(t *testing.T) {
	id := NewIdentity()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var decoded Identity
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, id, decoded)
}

func TestIdentity_JSONRejectsMalformed(t *testing.T) {
	var id Identity
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &id))
	assert.Error(t, json.Unmarshal([]byte(`42`), &id))
}
