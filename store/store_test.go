package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetUint64RoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ws"), false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetUint64(KeyLastBlockHeight, 12345))

	got, ok, err := s.GetUint64(KeyLastBlockHeight)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(12345), got)
}

func TestGetUint64MissingKey(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ws"), false)
	require.NoError(t, err)
	defer s.Close()

	_, ok, err := s.GetUint64("nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

type sample struct {
	A string
	B int
}

func TestSetGetJSONRoundTrip(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ws"), false)
	require.NoError(t, err)
	defer s.Close()

	in := sample{A: "hello", B: 7}
	require.NoError(t, s.SetJSON("sample", in))

	var out sample
	ok, err := s.GetJSON("sample", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, in, out)
}

func TestCleanStartWipesExistingData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ws")

	s, err := Open(dir, false)
	require.NoError(t, err)
	require.NoError(t, s.SetUint64(KeyLastBlockHeight, 999))
	require.NoError(t, s.Close())

	s2, err := Open(dir, true)
	require.NoError(t, err)
	defer s2.Close()

	_, ok, err := s2.GetUint64(KeyLastBlockHeight)
	require.NoError(t, err)
	assert.False(t, ok, "clean start must wipe prior contents")
}

func TestFlushSucceeds(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "ws"), false)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SetUint64(KeyLastBlockHeight, 1))
	require.NoError(t, s.Flush())
}
