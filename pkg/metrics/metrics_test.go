package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordFile(t *testing.T) {
	m := New()

	m.RecordFile("successful")
	m.RecordFile("successful")
	m.RecordFile("skipped")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("successful")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("skipped")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.filesTotal.WithLabelValues("failed")))
}

func TestRecordPage(t *testing.T) {
	m := New()
	m.RecordPage()
	m.RecordPage()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pagesTotal))
}

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveDownload(250*time.Millisecond, 2048)
	m.ObserveRun("partial", 3*time.Second)

	assert.Equal(t, 1, testutil.CollectAndCount(m.downloadSeconds))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runsTotal.WithLabelValues("partial")))
	assert.Greater(t, testutil.ToFloat64(m.lastRun), 0.0)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.RecordPage()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.pagesTotal))
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordFile("failed")

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `kobomedia_files_total{outcome="failed"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
