package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
}

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	out := make(map[string]string)
	for _, f := range r.File {
		assert.Equal(t, zip.Deflate, f.Method, f.Name)
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(data)
	}
	return out
}

func TestZipFolder(t *testing.T) {
	src := filepath.Join(t.TempDir(), "aXyZ")
	files := map[string]string{
		"u-1/cat.jpg":    strings.Repeat("c", 4096),
		"u-1/meow.m4a":   "audio",
		"u-2/dog.jpg":    "woof",
		"u-3/deep/x.txt": "nested",
	}
	writeTree(t, src, files)
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0755))

	dst := filepath.Join(t.TempDir(), "archives", "aXyZ.zip")
	result, err := ZipFolder(src, dst)
	require.NoError(t, err)

	assert.Equal(t, dst, result.Path)
	assert.Equal(t, 4, result.Files)
	assert.Equal(t, int64(4096+5+4+6), result.Bytes)
	assert.Equal(t, files, readZip(t, dst))
}

func TestZipFolderMissingSourceIsEmpty(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "none.zip")
	result, err := ZipFolder(filepath.Join(t.TempDir(), "nope"), dst)
	require.NoError(t, err)

	assert.Zero(t, result.Files)
	assert.FileExists(t, dst)
	assert.Empty(t, readZip(t, dst))
}

func TestZipFolderOverwrites(t *testing.T) {
	src := t.TempDir()
	dst := filepath.Join(t.TempDir(), "a.zip")

	writeTree(t, src, map[string]string{"one.txt": "1"})
	_, err := ZipFolder(src, dst)
	require.NoError(t, err)

	writeTree(t, src, map[string]string{"two.txt": "2"})
	_, err = ZipFolder(src, dst)
	require.NoError(t, err)

	names := make([]string, 0)
	for name := range readZip(t, dst) {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"one.txt", "two.txt"}, names)
}

func TestZipFolderSourceIsFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0644))
	dstDir := t.TempDir()

	_, err := ZipFolder(src, filepath.Join(dstDir, "a.zip"))
	require.Error(t, err)

	entries, err := os.ReadDir(dstDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no partial archive is left behind")
}
