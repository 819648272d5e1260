package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	// Init is safe to call more than once.
	Init("v1.0.0", "abc123", "2026-01-30")
	Init("v1.0.0", "abc123", "2026-01-30")

	if testutil.CollectAndCount(AppInfo) == 0 {
		t.Error("AppInfo metric should be registered")
	}
}

func TestHandler_ExposesRegistry(t *testing.T) {
	AuthAttempts.WithLabelValues("login", "success").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "agenda_auth_attempts_total"))
}

func TestRecordQuery(t *testing.T) {
	before := testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled"))

	RecordQuery("test_select", time.Now(), nil)
	if testutil.CollectAndCount(DBQueryDuration) == 0 {
		t.Error("DBQueryDuration should have recorded at least one query")
	}

	RecordQuery("test_failed", time.Now(), context.Canceled)
	after := testutil.ToFloat64(DBErrors.WithLabelValues("test_failed", "canceled"))
	assert.Equal(t, 1.0, after-before)
}

func TestPoolCollector_NilPool(t *testing.T) {
	c := NewPoolCollector(nil)
	assert.Equal(t, 0, testutil.CollectAndCount(c))
}

func TestResponseWriterBytesWritten(t *testing.T) {
	rw := &responseWriter{ResponseWriter: httptest.NewRecorder()}

	content := []byte("Hello, World!")
	_, _ = rw.Write(content)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", rw.statusCode)
	}
	if rw.bytesWritten != len(content) {
		t.Errorf("Expected %d bytes written, got %d", len(content), rw.bytesWritten)
	}
}
