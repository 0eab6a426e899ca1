package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerLayout(t *testing.T) {
	base := filepath.Join(t.TempDir(), "out")
	m, err := NewManager(base, "aXyZ")
	require.NoError(t, err)

	assert.DirExists(t, base)
	assert.NoDirExists(t, m.AssetDir(), "asset dir is created lazily")
	assert.Equal(t, filepath.Join(base, "aXyZ"), m.AssetDir())
	assert.Equal(t, filepath.Join(base, "aXyZ", "u-1"), m.SubmissionDir("u-1"))
}

func TestNewManagerRejectsBadAsset(t *testing.T) {
	for _, uid := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := NewManager(t.TempDir(), uid)
		assert.Error(t, err, uid)
	}
}

func TestEnsureSubmissionDir(t *testing.T) {
	m, err := NewManager(t.TempDir(), "aXyZ")
	require.NoError(t, err)

	dir, err := m.EnsureSubmissionDir("u-1")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	_, err = m.EnsureSubmissionDir("u-1")
	assert.NoError(t, err, "existing directory is fine")

	_, err = m.EnsureSubmissionDir("../escape")
	assert.Error(t, err)
}

func TestSave(t *testing.T) {
	m, err := NewManager(t.TempDir(), "aXyZ")
	require.NoError(t, err)
	dir, err := m.EnsureSubmissionDir("u-1")
	require.NoError(t, err)

	path := filepath.Join(dir, "cat.jpg")
	assert.False(t, m.Exists(path))

	err = m.Save(path, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader("meow"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "meow", string(data))
	assert.True(t, m.Exists(path))
}

func TestSaveFailureLeavesNothing(t *testing.T) {
	m, err := NewManager(t.TempDir(), "aXyZ")
	require.NoError(t, err)
	dir, err := m.EnsureSubmissionDir("u-1")
	require.NoError(t, err)

	path := filepath.Join(dir, "cat.jpg")
	err = m.Save(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return errors.New("connection reset")
	})
	require.EqualError(t, err, "connection reset")

	assert.NoFileExists(t, path)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file is cleaned up")
}

func TestLock(t *testing.T) {
	base := t.TempDir()
	first, err := NewManager(base, "aXyZ")
	require.NoError(t, err)
	second, err := NewManager(base, "aXyZ")
	require.NoError(t, err)
	other, err := NewManager(base, "bQrS")
	require.NoError(t, err)

	require.NoError(t, first.Lock())
	assert.ErrorIs(t, second.Lock(), ErrRunInProgress)
	assert.NoError(t, other.Lock(), "locks are per asset")

	require.NoError(t, first.Unlock())
	require.NoError(t, second.Lock())
	require.NoError(t, second.Unlock())
	require.NoError(t, other.Unlock())
}

func TestValidFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"  my photo (1).jpg ", "my_photo_1.jpg"},
		{"john's file!.png", "johns_file.png"},
		{"a/b\\c.wav", "abc.wav"},
		{"café.jpg", "café.jpg"},
		{"cafe\u0301.jpg", "caf\u00e9.jpg"},
		{"1700000000-42.m4a", "1700000000-42.m4a"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidFilename(tt.in))
		})
	}
}
