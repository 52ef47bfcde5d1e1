package metrics

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateMeter_Window(t *testing.T) {
	clk := clock.NewMock()
	r := NewRateMeter(clk)

	r.Add(600)
	assert.InDelta(t, 10.0, r.Rate(), 0.001)

	clk.Add(30 * time.Second)
	r.Add(600)
	assert.InDelta(t, 20.0, r.Rate(), 0.001)

	// 第一个桶滑出窗口
	clk.Add(31 * time.Second)
	assert.InDelta(t, 10.0, r.Rate(), 0.001)

	clk.Add(2 * time.Minute)
	assert.Zero(t, r.Rate())
}

func TestRateMeter_Reset(t *testing.T) {
	r := NewRateMeter(clock.NewMock())
	r.Add(60)
	r.Reset()
	assert.Zero(t, r.Rate())
}

func TestCounter_Totals(t *testing.T) {
	c := NewCounter(clock.NewMock(), nil, "")

	c.LogSentDatagram(100)
	c.LogSentDatagram(50)
	c.LogRecvDatagram(40)
	c.LogSubmessage(Sent, "DATA")
	c.LogSubmessage(Sent, "DATA")
	c.LogSubmessage(Received, "ACKNACK")
	c.LogDecodeError()
	c.LogSendError()
	c.LogRejectedSample("samples_per_instance")

	s := c.Totals()
	assert.Equal(t, int64(150), s.BytesOut)
	assert.Equal(t, int64(40), s.BytesIn)
	assert.Equal(t, int64(2), s.DatagramsOut)
	assert.Equal(t, int64(1), s.DatagramsIn)
	assert.Equal(t, int64(2), s.Submessages[Sent]["DATA"])
	assert.Equal(t, int64(1), s.Submessages[Received]["ACKNACK"])
	assert.Equal(t, int64(1), s.DecodeErrors)
	assert.Equal(t, int64(1), s.SendErrors)
	assert.Equal(t, int64(1), s.Rejections["samples_per_instance"])
	assert.InDelta(t, 2.5, s.RateOut, 0.001)
}

func TestCounter_NilSafe(t *testing.T) {
	var c *Counter
	assert.NotPanics(t, func() {
		c.LogSentDatagram(1)
		c.LogRecvDatagram(1)
		c.LogSubmessage(Sent, "GAP")
		c.LogDecodeError()
		c.LogSendError()
		c.LogRejectedSample("x")
	})
	assert.Equal(t, Stats{}, c.Totals())
}

func TestCounter_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCounter(clock.NewMock(), reg, "dds")

	c.LogSentDatagram(64)
	c.LogSubmessage(Sent, "HEARTBEAT")
	c.LogRejectedSample("samples")

	assert.InDelta(t, 64, testutil.ToFloat64(c.prom.bytes.WithLabelValues("sent")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(c.prom.submessages.WithLabelValues("sent", "HEARTBEAT")), 0.001)

	n, err := testutil.GatherAndCount(reg, "dds_rejected_samples_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
