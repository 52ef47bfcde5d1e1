package datawriter

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/dep2p/go-dds/internal/dcps/typesupport"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/internal/rtps/writer"
	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/cdr"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

type shape struct {
	Color string
	X     int32
}

var shapeType = typesupport.New("ShapeType", typesupport.Codec[shape]{
	Marshal: func(enc *cdr.Encoder, v shape) error {
		if err := enc.String(v.Color); err != nil {
			return err
		}
		enc.Int32(v.X)
		return nil
	},
	Unmarshal: func(dec *cdr.Decoder) (shape, error) {
		var v shape
		var err error
		if v.Color, err = dec.String(); err != nil {
			return v, err
		}
		v.X, err = dec.Int32()
		return v, err
	},
	MarshalKey: func(enc *cdr.Encoder, v shape) error {
		return enc.String(v.Color)
	},
})

var (
	writerGUID = types.NewGUID(types.GuidPrefix{1}, types.NewEntityID(1, types.EntityKindWriterWithKey))
	readerGUID = types.NewGUID(types.GuidPrefix{2}, types.NewEntityID(1, types.EntityKindReaderWithKey))
)

func newWriter(t *testing.T, clk clock.Clock, mutate func(*qos.WriterQos)) *DataWriter {
	t.Helper()
	q := qos.DefaultWriterQos()
	if mutate != nil {
		mutate(&q)
	}
	sender := transport.NewMockSender(gomock.NewController(t))
	sender.EXPECT().Send(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	w, err := New(Config{GUID: writerGUID, Qos: q, TypeSupport: shapeType, Timing: writer.DefaultTiming()},
		writer.Options{Clock: clk, Sender: sender})
	require.NoError(t, err)
	return w
}

func serialize(t *testing.T, v shape) []byte {
	t.Helper()
	b, err := shapeType.Serialize(v)
	require.NoError(t, err)
	return b
}

func seqs(changes []*types.CacheChange) []types.SequenceNumber {
	out := make([]types.SequenceNumber, 0, len(changes))
	for _, c := range changes {
		out = append(out, c.SequenceNumber)
	}
	return out
}

func TestWrite_AssignsSequenceNumbers(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Unix(100, 0))
	w := newWriter(t, clk, func(q *qos.WriterQos) { q.History = qos.KeepAllHistory() })

	red, err := w.Write(serialize(t, shape{"RED", 1}))
	require.NoError(t, err)
	blue, err := w.Write(serialize(t, shape{"BLUE", 1}))
	require.NoError(t, err)
	assert.NotEqual(t, red, blue)

	changes := w.RTPS().Changes()
	assert.Equal(t, []types.SequenceNumber{1, 2}, seqs(changes))
	assert.Equal(t, red, changes[0].InstanceHandle)
	assert.Equal(t, types.ChangeKindAlive, changes[0].Kind)
	require.NotNil(t, changes[0].SourceTimestamp)
	assert.Equal(t, int32(100), changes[0].SourceTimestamp.Seconds)

	at := time.Unix(42, 0)
	_, err = w.WriteWithTimestamp(serialize(t, shape{"RED", 2}), at)
	require.NoError(t, err)
	last := w.RTPS().Changes()[2]
	assert.Equal(t, types.SequenceNumber(3), last.SequenceNumber)
	assert.Equal(t, int32(42), last.SourceTimestamp.Seconds)
}

func TestWrite_MalformedPayload(t *testing.T) {
	w := newWriter(t, clock.NewMock(), nil)
	_, err := w.Write([]byte{0, 1})
	assert.ErrorIs(t, err, ErrBadParameter)
	assert.Empty(t, w.RTPS().Changes())
}

func TestWrite_KeepLastEvictsPerInstance(t *testing.T) {
	w := newWriter(t, clock.NewMock(), func(q *qos.WriterQos) { q.History = qos.KeepLastHistory(2) })

	for i := int32(1); i <= 3; i++ {
		_, err := w.Write(serialize(t, shape{"RED", i}))
		require.NoError(t, err)
	}
	_, err := w.Write(serialize(t, shape{"BLUE", 1}))
	require.NoError(t, err)

	assert.Equal(t, []types.SequenceNumber{2, 3, 4}, seqs(w.RTPS().Changes()))
}

func TestWrite_KeepAllOutOfResources(t *testing.T) {
	w := newWriter(t, clock.NewMock(), func(q *qos.WriterQos) {
		q.History = qos.KeepAllHistory()
		q.ResourceLimits = qos.ResourceLimits{MaxSamples: 2, MaxInstances: qos.LengthUnlimited, MaxSamplesPerInstance: qos.LengthUnlimited}
	})
	w.RTPS().MatchReader(writer.ProxyConfig{
		RemoteReaderGUID: readerGUID,
		Locators:         types.LocatorList{types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), 7400)},
	}, qos.Reliable)

	_, err := w.Write(serialize(t, shape{"RED", 1}))
	require.NoError(t, err)
	_, err = w.Write(serialize(t, shape{"RED", 2}))
	require.NoError(t, err)
	_, err = w.Write(serialize(t, shape{"RED", 3}))
	assert.ErrorIs(t, err, ErrOutOfResources)
	assert.Len(t, w.RTPS().Changes(), 2)

	// 读者收到并确认 1 后空间被回收
	require.NoError(t, w.RTPS().Tick(context.Background()))
	set, err := messages.NewSequenceNumberSet(2)
	require.NoError(t, err)
	w.RTPS().ProcessAckNack(readerGUID.Prefix, &messages.AckNack{
		ReaderID:      readerGUID.EntityID,
		WriterID:      writerGUID.EntityID,
		ReaderSNState: set,
		Count:         1,
	})
	_, err = w.Write(serialize(t, shape{"RED", 3}))
	require.NoError(t, err)
	assert.Equal(t, []types.SequenceNumber{2, 3}, seqs(w.RTPS().Changes()))
}

func TestWrite_SamplesPerInstanceLimit(t *testing.T) {
	w := newWriter(t, clock.NewMock(), func(q *qos.WriterQos) {
		q.History = qos.KeepAllHistory()
		q.ResourceLimits.MaxSamplesPerInstance = 1
	})
	_, err := w.Write(serialize(t, shape{"RED", 1}))
	require.NoError(t, err)
	_, err = w.Write(serialize(t, shape{"RED", 2}))
	assert.ErrorIs(t, err, ErrOutOfResources)
	_, err = w.Write(serialize(t, shape{"BLUE", 1}))
	assert.NoError(t, err)
}

func TestLifecycle(t *testing.T) {
	w := newWriter(t, clock.NewMock(), func(q *qos.WriterQos) { q.History = qos.KeepAllHistory() })

	h, err := w.RegisterInstance(serialize(t, shape{"RED", 0}))
	require.NoError(t, err)
	assert.Empty(t, w.RTPS().Changes())

	key, err := shapeType.Key(shape{Color: "RED"})
	require.NoError(t, err)
	found, ok := w.LookupInstance(key)
	assert.True(t, ok)
	assert.Equal(t, h, found)

	require.NoError(t, w.Dispose(h))
	require.NoError(t, w.UnregisterInstance(h))

	changes := w.RTPS().Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, types.ChangeKindNotAliveDisposed, changes[0].Kind)
	assert.Equal(t, types.ChangeKindNotAliveUnregistered, changes[1].Kind)
	assert.Equal(t, h, changes[1].InstanceHandle)
	assert.Equal(t, typesupport.KeyPayload(key), changes[0].Data)

	_, ok = w.LookupInstance(key)
	assert.False(t, ok)
	assert.ErrorIs(t, w.Dispose(h), ErrUnknownInstance)
	assert.ErrorIs(t, w.UnregisterInstance(types.InstanceHandle{9}), ErrUnknownInstance)

	// 再次写入重新注册
	_, err = w.Write(serialize(t, shape{"RED", 5}))
	require.NoError(t, err)
	assert.NoError(t, w.Dispose(h))
}

func TestRegister_MaxInstances(t *testing.T) {
	w := newWriter(t, clock.NewMock(), func(q *qos.WriterQos) {
		q.History = qos.KeepLastHistory(1)
		q.ResourceLimits.MaxInstances = 1
	})
	red, err := w.Write(serialize(t, shape{"RED", 1}))
	require.NoError(t, err)
	_, err = w.Write(serialize(t, shape{"BLUE", 1}))
	assert.ErrorIs(t, err, ErrOutOfResources)

	// 注销且历史中不再引用后，实例槽位可以回收
	require.NoError(t, w.UnregisterInstance(red))
	w.RTPS().RemoveChange(func(*types.CacheChange) bool { return true })
	_, err = w.Write(serialize(t, shape{"BLUE", 1}))
	assert.NoError(t, err)
}

func TestWaitForAcknowledgments(t *testing.T) {
	clk := clock.NewMock()
	w := newWriter(t, clk, nil)

	require.NoError(t, w.WaitForAcknowledgments(context.Background()))

	w.RTPS().MatchReader(writer.ProxyConfig{RemoteReaderGUID: readerGUID}, qos.Reliable)
	_, err := w.Write(serialize(t, shape{"RED", 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.WaitForAcknowledgments(ctx) }()

	require.NoError(t, w.RTPS().Tick(context.Background()))
	set, err := messages.NewSequenceNumberSet(2)
	require.NoError(t, err)
	w.RTPS().ProcessAckNack(readerGUID.Prefix, &messages.AckNack{
		ReaderID: readerGUID.EntityID, ReaderSNState: set, Count: 1,
	})

	require.Eventually(t, func() bool {
		clk.Add(ackPollInterval)
		select {
		case err := <-done:
			assert.NoError(t, err)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	cancel()
}

func TestWaitForAcknowledgments_Cancelled(t *testing.T) {
	w := newWriter(t, clock.NewMock(), nil)
	w.RTPS().MatchReader(writer.ProxyConfig{RemoteReaderGUID: readerGUID}, qos.Reliable)
	_, err := w.Write(serialize(t, shape{"RED", 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, w.WaitForAcknowledgments(ctx), context.Canceled)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Qos: qos.DefaultWriterQos()}, writer.Options{})
	assert.ErrorIs(t, err, ErrBadParameter)

	q := qos.DefaultWriterQos()
	q.History = qos.KeepLastHistory(-1)
	_, err = New(Config{Qos: q, TypeSupport: shapeType}, writer.Options{})
	assert.ErrorIs(t, err, qos.ErrInconsistentPolicy)
}
