package writer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

func newTestWriter(t *testing.T, rel qos.ReliabilityKind) (*StatefulWriter, *captureSender, *clock.Mock) {
	t.Helper()
	sender := &captureSender{}
	clk := clock.NewMock()
	w := NewStatefulWriter(Config{
		GUID:        testWriterGUID(),
		Reliability: rel,
		Timing:      DefaultTiming(),
	}, Options{Sender: sender, Clock: clk})
	return w, sender, clk
}

func write(w *StatefulWriter, n int) {
	for i := 0; i < n; i++ {
		w.NewChange(types.ChangeKindAlive, types.InstanceHandle{1}, []byte{0, 1, 0, 0, byte(i), 0, 0, 0}, nil)
	}
}

func readerCfg(b byte, port uint32) ProxyConfig {
	return ProxyConfig{RemoteReaderGUID: testReaderGUID(b), Locators: types.LocatorList{testLocator(port)}}
}

func TestStatefulWriter_MonotonicSequencing(t *testing.T) {
	w, _, _ := newTestWriter(t, qos.Reliable)
	write(w, 50)

	changes := w.Changes()
	require.Len(t, changes, 50)
	for i, c := range changes {
		assert.Equal(t, types.SequenceNumber(i+1), c.SequenceNumber)
		assert.Equal(t, testWriterGUID(), c.WriterGUID)
	}
	assert.Equal(t, types.SequenceNumber(50), w.LastSequenceNumber())
}

func TestStatefulWriter_TickSendsBatchPerReader(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.BestEffort)
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)
	write(w, 2)

	require.NoError(t, w.Tick(context.Background()))
	sent := sender.take()
	require.Len(t, sent, 1)
	assert.Equal(t, []types.Locator{testLocator(7411)}, sent[0].locators)
	assert.Equal(t, testWriterGUID().Prefix, sent[0].msg.Header.GuidPrefix)
	assert.Equal(t, []string{"INFO_DST", "DATA(1)", "DATA(2)"}, describe(sent[0].msg.Submessages))

	dst := sent[0].msg.Submessages[0].(*messages.InfoDestination)
	assert.Equal(t, testReaderGUID(2).Prefix, dst.GuidPrefix)

	// 尽力而为：没有新写入时不再发送
	require.NoError(t, w.Tick(context.Background()))
	assert.Empty(t, sender.take())
}

func TestStatefulWriter_GroupsByLocatorList(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.BestEffort)
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)
	w.MatchReader(readerCfg(3, 7411), qos.BestEffort)
	w.MatchReader(readerCfg(4, 7412), qos.BestEffort)
	write(w, 1)

	require.NoError(t, w.Tick(context.Background()))
	sent := sender.take()
	require.Len(t, sent, 2)

	assert.Equal(t, []types.Locator{testLocator(7411)}, sent[0].locators)
	assert.Equal(t, []string{"INFO_DST", "DATA(1)", "INFO_DST", "DATA(1)"}, describe(sent[0].msg.Submessages))
	assert.Equal(t, []types.Locator{testLocator(7412)}, sent[1].locators)
	assert.Equal(t, []string{"INFO_DST", "DATA(1)"}, describe(sent[1].msg.Submessages))
}

func TestStatefulWriter_InfoTimestamp(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.BestEffort)
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)

	ts := types.Time{Seconds: 42}
	w.NewChange(types.ChangeKindAlive, types.InstanceHandle{1}, []byte{0, 1, 0, 0}, &ts)
	w.NewChange(types.ChangeKindAlive, types.InstanceHandle{1}, []byte{0, 1, 0, 0}, &ts)
	w.NewChange(types.ChangeKindAlive, types.InstanceHandle{1}, []byte{0, 1, 0, 0}, nil)

	require.NoError(t, w.Tick(context.Background()))
	sent := sender.take()
	require.Len(t, sent, 1)
	assert.Equal(t,
		[]string{"INFO_DST", "INFO_TS(42)", "DATA(1)", "DATA(2)", "INFO_TS(-)", "DATA(3)"},
		describe(sent[0].msg.Submessages))
}

func TestStatefulWriter_SplitsLargeBatches(t *testing.T) {
	sender := &captureSender{}
	w := NewStatefulWriter(Config{GUID: testWriterGUID(), Reliability: qos.BestEffort},
		Options{Sender: sender, Clock: clock.NewMock(), MaxDatagramSize: 200})
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)
	for i := 0; i < 10; i++ {
		w.NewChange(types.ChangeKindAlive, types.InstanceHandle{1}, make([]byte, 40), nil)
	}

	require.NoError(t, w.Tick(context.Background()))
	sent := sender.take()
	require.Greater(t, len(sent), 1)

	var sns []types.SequenceNumber
	for _, dg := range sent {
		require.IsType(t, &messages.InfoDestination{}, dg.msg.Submessages[0])
		for _, sm := range dg.msg.Submessages {
			if d, ok := sm.(*messages.Data); ok {
				sns = append(sns, d.WriterSN)
			}
		}
	}
	assert.Equal(t, []types.SequenceNumber{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, sns)
}

func TestStatefulWriter_ReliableRoundTrip(t *testing.T) {
	w, sender, clk := newTestWriter(t, qos.Reliable)
	p := w.MatchReader(readerCfg(2, 7411), qos.Reliable)
	require.True(t, p.Reliable())
	write(w, 3)

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, []string{"INFO_DST", "DATA(1)", "DATA(2)", "DATA(3)"}, describe(sender.take()[0].msg.Submessages))

	// 读者收到 1，缺 2 和 3
	assert.True(t, w.ProcessAckNack(testReaderGUID(2).Prefix, ackNack(1, 2, 2, 3)))
	assert.False(t, w.IsAckedByAll(2))

	clk.Add(200 * time.Millisecond)
	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t,
		[]string{"INFO_DST", "DATA(2)", "DATA(3)", "HEARTBEAT(1-3#1)"},
		describe(sender.take()[0].msg.Submessages))

	assert.Equal(t, 1, w.RemoveAcknowledged())

	assert.True(t, w.ProcessAckNack(testReaderGUID(2).Prefix, ackNack(2, 4)))
	assert.True(t, w.IsAckedByAll(3))
	assert.Equal(t, 2, w.RemoveAcknowledged())
	assert.Empty(t, w.Changes())
}

func TestStatefulWriter_BestEffortReaderOnReliableWriter(t *testing.T) {
	w, _, _ := newTestWriter(t, qos.Reliable)
	p := w.MatchReader(readerCfg(2, 7411), qos.BestEffort)
	assert.False(t, p.Reliable())
}

func TestStatefulWriter_AckNackFromUnknownReader(t *testing.T) {
	w, _, _ := newTestWriter(t, qos.Reliable)
	w.MatchReader(readerCfg(2, 7411), qos.Reliable)
	assert.False(t, w.ProcessAckNack(testPrefix(9), ackNack(1, 1)))
}

func TestStatefulWriter_MatchQueuesExistingHistory(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.BestEffort)
	write(w, 2)
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, []string{"INFO_DST", "DATA(1)", "DATA(2)"}, describe(sender.take()[0].msg.Submessages))
}

func TestStatefulWriter_UnmatchDropsObligations(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.Reliable)
	w.MatchReader(readerCfg(2, 7411), qos.Reliable)
	write(w, 3)

	assert.True(t, w.UnmatchReader(testReaderGUID(2)))
	assert.False(t, w.UnmatchReader(testReaderGUID(2)))
	assert.Empty(t, w.MatchedReaders())

	require.NoError(t, w.Tick(context.Background()))
	assert.Empty(t, sender.take())
	assert.Zero(t, w.RemoveAcknowledged())
}

func TestStatefulWriter_Trigger(t *testing.T) {
	w, _, _ := newTestWriter(t, qos.Reliable)
	select {
	case <-w.Trigger():
		t.Fatal("unexpected trigger")
	default:
	}

	write(w, 3)
	select {
	case <-w.Trigger():
	default:
		t.Fatal("write did not trigger")
	}
}

func TestStatefulWriter_SendFailureNotRetried(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := transport.NewMockSender(ctrl)
	reporter := metrics.NewCounter(clock.NewMock(), nil, "")

	w := NewStatefulWriter(Config{GUID: testWriterGUID(), Reliability: qos.BestEffort},
		Options{Sender: sender, Clock: clock.NewMock(), Reporter: reporter})
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)
	write(w, 1)

	boom := errors.New("network down")
	sender.EXPECT().
		Send(gomock.Any(), gomock.Any(), []types.Locator{testLocator(7411)}).
		Return(boom).
		Times(1)

	err := w.Tick(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(1), reporter.Totals().SendErrors)

	// 尽力而为的变更不会被再次发送
	require.NoError(t, w.Tick(context.Background()))
}

func TestStatefulWriter_ReportsSubmessages(t *testing.T) {
	reporter := metrics.NewCounter(clock.NewMock(), nil, "")
	w := NewStatefulWriter(Config{GUID: testWriterGUID(), Reliability: qos.BestEffort},
		Options{Sender: &captureSender{}, Clock: clock.NewMock(), Reporter: reporter})
	w.MatchReader(readerCfg(2, 7411), qos.BestEffort)
	write(w, 2)
	w.RemoveChange(func(c *types.CacheChange) bool { return c.SequenceNumber == 2 })

	require.NoError(t, w.Tick(context.Background()))
	totals := reporter.Totals()
	assert.Equal(t, int64(1), totals.Submessages[metrics.Sent]["DATA"])
	assert.Equal(t, int64(1), totals.Submessages[metrics.Sent]["GAP"])
	assert.Equal(t, int64(1), totals.DatagramsOut)
}

func TestStatefulWriter_TickKeepsAcknowledgedChanges(t *testing.T) {
	w, sender, _ := newTestWriter(t, qos.Reliable)
	w.MatchReader(readerCfg(2, 7411), qos.Reliable)
	write(w, 2)
	require.NoError(t, w.Tick(context.Background()))
	sender.take()

	assert.True(t, w.ProcessAckNack(testReaderGUID(2).Prefix, ackNack(1, 3)))
	assert.True(t, w.IsAckedByAll(2))

	// 已确认的变更只由 RemoveAcknowledged 或历史策略移除
	require.NoError(t, w.Tick(context.Background()))
	assert.Len(t, w.Changes(), 2)
	assert.Equal(t, 2, w.RemoveAcknowledged())
	assert.Empty(t, w.Changes())
}
