package receiver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/internal/rtps/reader"
	"github.com/dep2p/go-dds/internal/rtps/writer"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

func prefix(b byte) types.GuidPrefix {
	return types.GuidPrefix{b, b, b, b, 0, 0, 0, 0, 0, 0, 0, 1}
}

var (
	writerGUID = types.NewGUID(prefix(1), types.NewEntityID(1, types.EntityKindWriterWithKey))
	readerGUID = types.NewGUID(prefix(2), types.NewEntityID(7, types.EntityKindReaderWithKey))
	from       = types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), 7400)
)

// ============================================================================
//                              测试端点
// ============================================================================

type fakeReader struct {
	guid       types.GUID
	data       []*messages.Data
	timestamps []*types.Time
	gaps       int
	heartbeats int
}

func (r *fakeReader) GUID() types.GUID { return r.guid }

func (r *fakeReader) ProcessData(_ types.GuidPrefix, d *messages.Data, ts *types.Time) (bool, error) {
	r.data = append(r.data, d)
	r.timestamps = append(r.timestamps, ts)
	return true, nil
}

func (r *fakeReader) ProcessGap(types.GuidPrefix, *messages.Gap) bool {
	r.gaps++
	return true
}

func (r *fakeReader) ProcessHeartbeat(types.GuidPrefix, *messages.Heartbeat) bool {
	r.heartbeats++
	return true
}

type fakeWriter struct {
	guid     types.GUID
	sources  []types.GuidPrefix
	ackNacks []*messages.AckNack
}

func (w *fakeWriter) GUID() types.GUID { return w.guid }

func (w *fakeWriter) ProcessAckNack(source types.GuidPrefix, an *messages.AckNack) bool {
	w.sources = append(w.sources, source)
	w.ackNacks = append(w.ackNacks, an)
	return true
}

func encode(src types.GuidPrefix, subs ...messages.Submessage) []byte {
	m := messages.Message{Header: messages.NewHeader(src), Submessages: subs}
	return m.Encode(messages.LittleEndian)
}

func data(sn types.SequenceNumber) *messages.Data {
	return &messages.Data{
		ReaderID:          types.EntityIDUnknown,
		WriterID:          writerGUID.EntityID,
		WriterSN:          sn,
		SerializedPayload: []byte{0, 1, 0, 0},
	}
}

// ============================================================================
//                              路由
// ============================================================================

func TestReceiver_RoutesWithTimestampContext(t *testing.T) {
	rcv := New(prefix(2), nil)
	rd := &fakeReader{guid: readerGUID}
	rcv.AddReader(rd)

	rcv.Handle(encode(prefix(1),
		&messages.InfoTimestamp{Timestamp: types.Time{Seconds: 5}},
		data(1),
		&messages.InfoTimestamp{Invalidate: true},
		data(2),
		&messages.Heartbeat{WriterID: writerGUID.EntityID, FirstSN: 1, LastSN: 2, Count: 1},
		messages.NewGap(types.EntityIDUnknown, writerGUID.EntityID, 3),
	), from)

	require.Len(t, rd.data, 2)
	require.NotNil(t, rd.timestamps[0])
	assert.Equal(t, int32(5), rd.timestamps[0].Seconds)
	assert.Nil(t, rd.timestamps[1])
	assert.Equal(t, 1, rd.heartbeats)
	assert.Equal(t, 1, rd.gaps)
}

func TestReceiver_InfoDestinationFiltersSubmessages(t *testing.T) {
	rcv := New(prefix(2), nil)
	rd := &fakeReader{guid: readerGUID}
	rcv.AddReader(rd)

	rcv.Handle(encode(prefix(1),
		&messages.InfoDestination{GuidPrefix: prefix(3)},
		data(1),
		&messages.InfoDestination{GuidPrefix: prefix(2)},
		data(2),
		&messages.InfoDestination{},
		data(3),
	), from)

	require.Len(t, rd.data, 2)
	assert.Equal(t, types.SequenceNumber(2), rd.data[0].WriterSN)
	assert.Equal(t, types.SequenceNumber(3), rd.data[1].WriterSN)
}

func TestReceiver_ReaderIDSelectsEndpoint(t *testing.T) {
	rcv := New(prefix(2), nil)
	a := &fakeReader{guid: readerGUID}
	b := &fakeReader{guid: types.NewGUID(prefix(2), types.NewEntityID(8, types.EntityKindReaderWithKey))}
	rcv.AddReader(a)
	rcv.AddReader(b)

	d := data(1)
	d.ReaderID = b.guid.EntityID
	rcv.Handle(encode(prefix(1), d, data(2)), from)

	assert.Len(t, a.data, 1)
	assert.Len(t, b.data, 2)

	rcv.RemoveReader(b.guid.EntityID)
	rcv.Handle(encode(prefix(1), data(3)), from)
	assert.Len(t, a.data, 2)
	assert.Len(t, b.data, 2)
}

func TestReceiver_AckNackToWriter(t *testing.T) {
	rcv := New(prefix(1), nil)
	w := &fakeWriter{guid: writerGUID}
	rcv.AddWriter(w)

	set, err := messages.NewSequenceNumberSet(3, 4)
	require.NoError(t, err)
	rcv.Handle(encode(prefix(2),
		&messages.InfoDestination{GuidPrefix: prefix(1)},
		&messages.AckNack{ReaderID: readerGUID.EntityID, WriterID: writerGUID.EntityID, ReaderSNState: set, Count: 1},
	), from)

	require.Len(t, w.ackNacks, 1)
	assert.Equal(t, prefix(2), w.sources[0])
	assert.Equal(t, []types.SequenceNumber{4}, w.ackNacks[0].ReaderSNState.Set())

	rcv.RemoveWriter(writerGUID.EntityID)
	rcv.Handle(encode(prefix(2), &messages.AckNack{WriterID: writerGUID.EntityID, ReaderSNState: set, Count: 2}), from)
	assert.Len(t, w.ackNacks, 1)
}

func TestReceiver_MalformedInputIsCounted(t *testing.T) {
	counter := metrics.NewCounter(clock.NewMock(), nil, "")
	rcv := New(prefix(2), counter)
	rd := &fakeReader{guid: readerGUID}
	rcv.AddReader(rd)

	rcv.Handle([]byte("not an rtps message at all"), from)
	assert.Equal(t, int64(1), counter.Totals().DecodeErrors)

	// 参数长度不是 4 的倍数的 Data 被丢弃，后面的 Data 照常处理
	good := encode(prefix(1), data(2))
	bad := encode(prefix(1), &messages.Data{
		WriterID:          writerGUID.EntityID,
		WriterSN:          1,
		InlineQos:         messages.ParameterList{{ID: messages.PIDKeyHash, Value: make([]byte, 16)}},
		SerializedPayload: []byte{0, 1, 0, 0},
	})
	// 第一个参数的长度字段位于 消息头 + 子消息头 + 20 字节 Data 头 之后
	lengthAt := messages.HeaderSize + 4 + 20 + 2
	bad[lengthAt] = 3
	datagram := append(bad, good[messages.HeaderSize:]...)

	rcv.Handle(datagram, from)
	assert.Equal(t, int64(2), counter.Totals().DecodeErrors)
	require.Len(t, rd.data, 1)
	assert.Equal(t, types.SequenceNumber(2), rd.data[0].WriterSN)
	assert.Equal(t, int64(2), counter.Totals().DatagramsIn)
}

// ============================================================================
//                              端到端
// ============================================================================

// link 把一方发出的数据报直接交给另一方的接收者，可选择丢弃
type link struct {
	mu   sync.Mutex
	to   *Receiver
	drop func(n int) bool
	n    int
}

func (l *link) Send(_ context.Context, datagram []byte, _ []types.Locator) error {
	l.mu.Lock()
	l.n++
	dropped := l.drop != nil && l.drop(l.n)
	l.mu.Unlock()
	if !dropped {
		l.to.Handle(datagram, from)
	}
	return nil
}

type collect struct {
	sns []types.SequenceNumber
}

func (c *collect) OnChange(ch *types.CacheChange) { c.sns = append(c.sns, ch.SequenceNumber) }

func (c *collect) OnSamplesLost(types.GUID, int) {}

func TestReceiver_ReliableRepairEndToEnd(t *testing.T) {
	clk := clock.NewMock()
	writerSide := New(writerGUID.Prefix, nil)
	readerSide := New(readerGUID.Prefix, nil)

	toReader := &link{to: readerSide, drop: func(n int) bool { return n == 1 }}
	toWriter := &link{to: writerSide}

	w := writer.NewStatefulWriter(writer.Config{
		GUID:        writerGUID,
		Reliability: qos.Reliable,
		Timing:      writer.DefaultTiming(),
	}, writer.Options{Sender: toReader, Clock: clk})
	got := &collect{}
	r := reader.NewStatefulReader(reader.Config{
		GUID:        readerGUID,
		Reliability: qos.Reliable,
		Timing:      reader.DefaultTiming(),
	}, reader.Options{Sender: toWriter, Clock: clk, Listener: got})

	writerSide.AddWriter(w)
	readerSide.AddReader(r)
	w.MatchReader(writer.ProxyConfig{RemoteReaderGUID: readerGUID, Locators: types.LocatorList{from}}, qos.Reliable)
	r.MatchWriter(reader.ProxyConfig{RemoteWriterGUID: writerGUID, Locators: types.LocatorList{from}}, qos.Reliable)

	for i := 0; i < 3; i++ {
		w.NewChange(types.ChangeKindAlive, types.InstanceHandle{1}, []byte{0, 1, 0, 0}, nil)
	}

	ctx := context.Background()
	// 第一个数据报丢失
	require.NoError(t, w.Tick(ctx))
	assert.Empty(t, got.sns)

	for i := 0; i < 10 && len(got.sns) < 3; i++ {
		clk.Add(200 * time.Millisecond)
		require.NoError(t, w.Tick(ctx))
		require.NoError(t, r.Tick(ctx))
	}
	assert.Equal(t, []types.SequenceNumber{1, 2, 3}, got.sns)

	// 读者确认之后历史可以清空
	for i := 0; i < 10 && !w.IsAckedByAll(3); i++ {
		clk.Add(200 * time.Millisecond)
		require.NoError(t, w.Tick(ctx))
		require.NoError(t, r.Tick(ctx))
	}
	assert.True(t, w.IsAckedByAll(3))
	assert.Equal(t, 3, w.RemoveAcknowledged())
}
