package kobo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "kobomedia/pkg/errors"
	"kobomedia/pkg/logger"
	"kobomedia/pkg/retry"
)

// mockRoundTripper allows us to intercept HTTP requests
type mockRoundTripper struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.handler(req)
}

func newMockHTTPClient(handler func(req *http.Request) (*http.Response, error)) *http.Client {
	return &http.Client{
		Transport: &mockRoundTripper{handler: handler},
		Timeout:   5 * time.Second,
	}
}

// failingWriter fails after accepting limit bytes
type failingWriter struct {
	limit int
	buf   bytes.Buffer
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		return 0, errors.New("disk full")
	}
	return w.buf.Write(p)
}

// countingWriter records the size of every Write call
type countingWriter struct {
	sizes []int
	bytes.Buffer
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.sizes = append(w.sizes, len(p))
	return w.Buffer.Write(p)
}

func TestNewClientSendsToken(t *testing.T) {
	var gotAuth, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		fmt.Fprint(w, `{"count": 0, "next": null, "previous": null, "results": []}`)
	}))
	defer server.Close()

	client := NewClient("s3cret", 5*time.Second, logger.NewTestLogger())
	_, err := client.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, "Token s3cret", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
}

func TestNewClientWithoutToken(t *testing.T) {
	client := NewClient("", time.Second, nil)
	_, ok := client.headers["Authorization"]
	assert.False(t, ok)
	assert.NotNil(t, client.logger)
}

func TestFetchPage(t *testing.T) {
	body := `{
		"count": 2,
		"next": "https://kf.example.org/api/v2/assets/aXyZ/data?format=json&limit=1&start=1",
		"previous": null,
		"results": [
			{"_uuid": "u-1", "photo": "cat.jpg", "_attachments": [{"filename": "me/attachments/u-1/cat.jpg"}]}
		]
	}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v2/assets/aXyZ/data", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	page, err := client.FetchPage(context.Background(), FirstPageURL(server.URL, "aXyZ", 1, ""))
	require.NoError(t, err)

	assert.Equal(t, 2, page.Count)
	assert.True(t, page.HasNext())
	require.Len(t, page.Results, 1)
	assert.Equal(t, "u-1", page.Results[0].UUID)
	assert.Equal(t, "me/attachments/u-1/cat.jpg", page.Results[0].Attachments[0].Filename)
}

func TestFetchPageStatusErrors(t *testing.T) {
	tests := []struct {
		status  int
		errType errs.ErrorType
	}{
		{http.StatusUnauthorized, errs.ErrorTypeAuth},
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusTeapot, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient("t", 5*time.Second, logger.NewTestLogger())
			page, err := client.FetchPage(context.Background(), server.URL)

			assert.Nil(t, page)
			assert.True(t, errs.IsType(err, tt.errType), "got %v", err)
			assert.Equal(t, tt.status, errs.StatusCode(err))
		})
	}
}

func TestFetchPageAuthFailureLogsHint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := NewClient("expired", 5*time.Second, log)
	_, err := client.FetchPage(context.Background(), server.URL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "token invalid or expired")
	assert.True(t, log.HasMessage("authentication failed, run `kobomedia auth login` to store a new token"))
}

func TestFetchPageInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>maintenance</html>")
	}))
	defer server.Close()

	log := logger.NewTestLogger()
	client := NewClient("t", 5*time.Second, log)
	_, err := client.FetchPage(context.Background(), server.URL)

	assert.True(t, errs.IsType(err, errs.ErrorTypeParsing))
	assert.True(t, log.HasError())
}

func TestFetchPageRetriesTransportErrorsOnly(t *testing.T) {
	calls := 0
	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	client.SetHTTPClient(newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset by peer")
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"count": 0, "results": []}`)),
			Header:     make(http.Header),
			Request:    req,
		}, nil
	}))
	client.SetRetry(&retry.Config{
		MaxAttempts: 3,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
	})

	page, err := client.FetchPage(context.Background(), "https://kf.example.org/api/v2/assets/a/data")
	require.NoError(t, err)
	assert.Equal(t, 0, page.Count)
	assert.Equal(t, 3, calls)
}

func TestFetchPageDoesNotRetryStatus(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	client.SetRetry(&retry.Config{
		MaxAttempts: 4,
		Backoff:     &retry.ConstantBackoff{Delay: time.Millisecond},
	})

	_, err := client.FetchPage(context.Background(), server.URL)
	assert.True(t, errs.IsType(err, errs.ErrorTypeServerError))
	assert.Equal(t, 1, calls)
}

func TestFetchPageCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	_, err := client.FetchPage(ctx, "http://127.0.0.1:1/never")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDownloadStreamsInChunks(t *testing.T) {
	payload := strings.Repeat("x", 2500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token t", r.Header.Get("Authorization"))
		fmt.Fprint(w, payload)
	}))
	defer server.Close()

	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	var w countingWriter
	n, err := client.Download(context.Background(), server.URL, &w, 1024)

	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.Equal(t, payload, w.String())
	for _, size := range w.sizes {
		assert.LessOrEqual(t, size, 1024)
	}
}

func TestDownloadNon200WritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, "not here")
	}))
	defer server.Close()

	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	var buf bytes.Buffer
	n, err := client.Download(context.Background(), server.URL, &buf, 0)

	assert.True(t, errs.IsType(err, errs.ErrorTypeNotFound))
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())
}

func TestDownloadWriteError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("y", 4096))
	}))
	defer server.Close()

	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	_, err := client.Download(context.Background(), server.URL, &failingWriter{limit: 100}, 64)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestDownloadNetworkError(t *testing.T) {
	client := NewClient("t", 5*time.Second, logger.NewTestLogger())
	client.SetHTTPClient(newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("no route to host")
	}))

	_, err := client.Download(context.Background(), "https://kc.example.org/media/original?media_file=a", io.Discard, 1024)
	assert.True(t, errs.IsType(err, errs.ErrorTypeNetwork))
}

func TestVerify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, AssetsEndpoint, r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		if r.Header.Get("Authorization") != "Token good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, `{"count": 7, "results": []}`)
	}))
	defer server.Close()

	count, err := NewClient("good", 5*time.Second, logger.NewTestLogger()).Verify(context.Background(), server.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, 7, count)

	_, err = NewClient("bad", 5*time.Second, logger.NewTestLogger()).Verify(context.Background(), server.URL)
	assert.Error(t, err)
}
