package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c, err := New(reg, "test")
	require.NoError(t, err)

	c.ChannelOpened()
	c.CallSent("/user")
	c.CallSent("/user")
	c.CallCompleted("success")
	c.RequestHandled("failure")
	c.ProtocolError("unknown_id")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.callsSent.WithLabelValues("/user")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.callsCompleted.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.pending))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requestsHandled.WithLabelValues("failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.protocolErrors.WithLabelValues("unknown_id")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.channels))

	c.ChannelClosed()
	assert.Zero(t, testutil.ToFloat64(c.channels))

	n, err := testutil.GatherAndCount(reg, "test_wscall_calls_sent_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestDuplicateRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "test")
	require.NoError(t, err)

	_, err = New(reg, "test")
	assert.Error(t, err)
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ChannelOpened()
		c.CallSent("/x")
		c.CallCompleted("closed")
		c.RequestHandled("success")
		c.ProtocolError("invalid_request")
		c.ChannelClosed()
	})
}
