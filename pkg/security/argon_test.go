package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArgon_RoundTrip(t *testing.T) {
	t.Parallel()

	a := NewArgon()

	encoded, err := a.GenerateFromPassword("correct horse battery staple")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(encoded, "$argon2id$"))
	require.NotContains(t, encoded, "correct horse battery staple")

	ok, err := a.VerifyPasswd("correct horse battery staple", encoded)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestArgon_WrongPassword(t *testing.T) {
	t.Parallel()

	a := NewArgon()

	encoded, err := a.GenerateFromPassword("hunter22hunter22")
	require.NoError(t, err)

	ok, err := a.VerifyPasswd("hunter23hunter23", encoded)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestArgon_UniqueSalts(t *testing.T) {
	t.Parallel()

	a := NewArgon()

	first, err := a.GenerateFromPassword("same-password")
	require.NoError(t, err)
	second, err := a.GenerateFromPassword("same-password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
}

func TestArgon_MalformedHash(t *testing.T) {
	t.Parallel()

	a := NewArgon()

	_, err := a.VerifyPasswd("whatever1", "not-a-phc-string")
	require.Error(t, err)
}
