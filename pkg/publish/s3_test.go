package publish

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kobomedia/pkg/config"
	"kobomedia/pkg/logger"
)

type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	status  int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}, status: http.StatusOK}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	status := f.status
	if status == http.StatusOK {
		f.objects[r.URL.Path] = body
		f.types[r.URL.Path] = r.Header.Get("Content-Type")
	}
	f.mu.Unlock()

	if status != http.StatusOK {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(status)
		io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`)
		return
	}
	w.Header().Set("ETag", `"abc"`)
	w.WriteHeader(http.StatusOK)
}

func newTestPublisher(t *testing.T, endpoint, prefix string) *S3Publisher {
	t.Helper()
	t.Setenv("AWS_CONFIG_FILE", filepath.Join(t.TempDir(), "none"))
	t.Setenv("AWS_SHARED_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "none"))

	p, err := NewS3Publisher(context.Background(), config.S3Config{
		Bucket:          "archives",
		Region:          "us-east-1",
		Prefix:          prefix,
		Endpoint:        endpoint,
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		UsePathStyle:    true,
	}, 1, logger.NewTestLogger())
	require.NoError(t, err)
	return p
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aXyZ.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK fake zip"), 0644))
	return path
}

func TestObjectKey(t *testing.T) {
	assert.Equal(t, "aXyZ.zip", ObjectKey("", "aXyZ"))
	assert.Equal(t, "exports/aXyZ.zip", ObjectKey("exports/", "aXyZ"))
}

func TestNewS3PublisherRequiresBucket(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), config.S3Config{Region: "us-east-1"}, 1, nil)
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	fake := newFakeS3()
	server := httptest.NewServer(fake)
	defer server.Close()

	p := newTestPublisher(t, server.URL, "exports/")
	url, err := p.Publish(context.Background(), writeArchive(t), "aXyZ")
	require.NoError(t, err)

	assert.Equal(t, "s3://archives/exports/aXyZ.zip", url)
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, []byte("PK fake zip"), fake.objects["/archives/exports/aXyZ.zip"])
	assert.Equal(t, "application/zip", fake.types["/archives/exports/aXyZ.zip"])
}

func TestPublishServerError(t *testing.T) {
	fake := newFakeS3()
	fake.status = http.StatusForbidden
	server := httptest.NewServer(fake)
	defer server.Close()

	p := newTestPublisher(t, server.URL, "")
	_, err := p.Publish(context.Background(), writeArchive(t), "aXyZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to put object")
}

func TestPublishMissingFile(t *testing.T) {
	p := newTestPublisher(t, "http://127.0.0.1:1", "")
	_, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.zip"), "aXyZ")
	assert.Error(t, err)
}
