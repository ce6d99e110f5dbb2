package secret

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUse(t *testing.T) {
	s := New([]byte("1234"))
	t.Cleanup(s.Destroy)

	var seen string
	err := s.Use(func(b []byte) error {
		seen = string(b)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "1234", seen)

	// Reusable until destroyed.
	err = s.Use(func(b []byte) error { return nil })
	require.NoError(t, err)
}

func TestNewWipesSource(t *testing.T) {
	src := []byte("sensitive")
	s := New(src)
	t.Cleanup(s.Destroy)

	assert.Equal(t, make([]byte, len("sensitive")), src, "source buffer should be wiped")
}

func TestBytesReturnsCopy(t *testing.T) {
	s := New([]byte("abcd"))
	t.Cleanup(s.Destroy)

	b1, err := s.Bytes()
	require.NoError(t, err)
	b1[0] = 'X'

	b2, err := s.Bytes()
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), b2)
}

func TestEqual(t *testing.T) {
	a := New([]byte("2345"))
	b := New([]byte("2345"))
	c := New([]byte("9999"))
	t.Cleanup(func() {
		a.Destroy()
		b.Destroy()
		c.Destroy()
	})

	match, err := a.Equal(b)
	require.NoError(t, err)
	assert.True(t, match)

	match, err = a.Equal(c)
	require.NoError(t, err)
	assert.False(t, match)
}

func TestFromStringNormalizes(t *testing.T) {
	// NFC and NFD spellings of the same passphrase must compare equal.
	nfc := FromString("café")
	nfd := FromString("café")
	t.Cleanup(func() {
		nfc.Destroy()
		nfd.Destroy()
	})

	match, err := nfc.Equal(nfd)
	require.NoError(t, err)
	assert.True(t, match)
}

func TestDestroyed(t *testing.T) {
	s := New([]byte("1234"))
	s.Destroy()

	err := s.Use(func(b []byte) error { return nil })
	require.ErrorIs(t, err, ErrDestroyed)

	_, err = s.Bytes()
	require.ErrorIs(t, err, ErrDestroyed)

	// Destroy is idempotent.
	s.Destroy()

	var nilSecret *Secret
	require.ErrorIs(t, nilSecret.Use(func([]byte) error { return nil }), ErrDestroyed)
}
