package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionSeries(t *testing.T) {
	c := NewCollector(nil)

	c.ConnectionOpened("a", "127.0.0.1:1")
	c.ConnectionOpened("b", "127.0.0.1:2")
	c.ConnectionClosed("a")
	c.ConnectionRejected("127.0.0.1:3")
	c.AcceptError(errors.New("emfile"))
	c.FrameError("too_large")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connectionsRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.acceptErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.frameErrors.WithLabelValues("too_large")))
}

func TestObserveCommand(t *testing.T) {
	c := NewCollector(nil)

	c.ObserveCommand("echo", "ok", 5*time.Millisecond)
	c.ObserveCommand("echo", "ok", 5*time.Millisecond)
	c.ObserveCommand("echo", "error", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.commandsTotal.WithLabelValues("echo", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commandsTotal.WithLabelValues("echo", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.commandDuration))
}

func TestHandlerExposesSeries(t *testing.T) {
	c := NewCollector(nil)
	c.ConnectionOpened("a", "127.0.0.1:1")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "editorbridge_connections_active 1"))
}
