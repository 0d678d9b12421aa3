package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersIncrement(t *testing.T) {
	m := New()

	m.UpdatesReceived.WithLabelValues("default", "message_created").Inc()
	m.UpdatesReceived.WithLabelValues("default", "message_created").Inc()
	m.UpdatesDropped.WithLabelValues("default", "policy").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpdatesReceived.WithLabelValues("default", "message_created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpdatesDropped.WithLabelValues("default", "policy")))
}

func TestHandlerServesExposition(t *testing.T) {
	m := New()
	m.MessagesSent.WithLabelValues("default", "ok").Inc()

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "maxbridge_messages_sent_total")
}

func TestFreshRegistryPerInstance(t *testing.T) {
	// two instances must not collide on registration
	first := New()
	second := New()
	assert.NotSame(t, first.Registry(), second.Registry())
}
