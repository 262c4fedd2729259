package cdc_test

import (
	"encoding/hex"
	"testing"

	cdc "github.com/streamhouse/go-maxscale-cdc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha1 of the empty string, a well-known constant.
const emptySHA1 = "da39a3ee5e6b4b0d3255bfef95601890afd80709"

func TestEncodeAuth_KnownVector(t *testing.T) {
	t.Parallel()

	got := cdc.EncodeAuth("massi", "")
	want := hex.EncodeToString([]byte("massi:")) + emptySHA1
	assert.Equal(t, want, got)
}

func TestEncodeAuth_Length(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		user     string
		password string
	}{
		{name: "empty both", user: "", password: ""},
		{name: "ascii", user: "maxuser", password: "maxpwd"},
		{name: "empty password", user: "cdc", password: ""},
		{name: "utf8 user", user: "ütf8", password: "pässword"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			token := cdc.EncodeAuth(tt.user, tt.password)
			// hex doubles every byte of "<user>:", sha1 hex is always 40 chars.
			assert.Len(t, token, 2*len([]byte(tt.user+":"))+40)
		})
	}
}

func TestEncodeAuth_Deterministic(t *testing.T) {
	t.Parallel()

	first := cdc.EncodeAuth("maxuser", "maxpwd")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, cdc.EncodeAuth("maxuser", "maxpwd"))
	}
}

func TestEncodeAuth_PrefixIsHexOfUserColon(t *testing.T) {
	t.Parallel()

	token := cdc.EncodeAuth("alice", "secret")
	prefix := token[:len(token)-40]

	decoded, err := hex.DecodeString(prefix)
	require.NoError(t, err)
	assert.Equal(t, "alice:", string(decoded))
}
