package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

// Result describes a written archive
type Result struct {
	Path  string
	Files int
	// Bytes is the total uncompressed size of the archived files
	Bytes int64
}

// ZipFolder writes every regular file under src into a Deflate-compressed
// ZIP at dst, named by its slash-separated path relative to src. A missing
// src yields an empty archive. The archive is built in a temp file next to
// dst and renamed into place.
func ZipFolder(src, dst string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary archive: %w", err)
	}
	tempName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tempName)
	}

	result := &Result{Path: dst}
	zw := newWriter(tmp)

	if err := addTree(zw, src, result); err != nil {
		zw.Close()
		cleanup()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		cleanup()
		return nil, fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tempName)
		return nil, fmt.Errorf("failed to close archive: %w", err)
	}
	if err := os.Rename(tempName, dst); err != nil {
		os.Remove(tempName)
		return nil, fmt.Errorf("failed to move archive into place: %w", err)
	}

	return result, nil
}

func newWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	return zw
}

func addTree(zw *zip.Writer, src string, result *Result) error {
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", src, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		n, err := addFile(zw, path, filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", path, err)
		}

		result.Files++
		result.Bytes += n
		return nil
	})
}

func addFile(zw *zip.Writer, path, name string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return 0, err
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, f)
}
