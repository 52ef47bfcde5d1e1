package reader

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/types"
)

var t0 = time.Unix(1000, 0)

type recordingListener struct {
	changes []*types.CacheChange
	lost    map[types.GUID]int
}

func (l *recordingListener) OnChange(c *types.CacheChange) {
	l.changes = append(l.changes, c)
}

func (l *recordingListener) OnSamplesLost(writer types.GUID, n int) {
	if l.lost == nil {
		l.lost = make(map[types.GUID]int)
	}
	l.lost[writer] += n
}

func (l *recordingListener) sns() []types.SequenceNumber {
	out := make([]types.SequenceNumber, 0, len(l.changes))
	for _, c := range l.changes {
		out = append(out, c.SequenceNumber)
	}
	return out
}

type sentDatagram struct {
	msg      *messages.Message
	locators []types.Locator
}

type captureSender struct {
	mu   sync.Mutex
	sent []sentDatagram
}

func (s *captureSender) Send(_ context.Context, data []byte, dests []types.Locator) error {
	msg, err := messages.Decode(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, sentDatagram{msg: msg, locators: append([]types.Locator(nil), dests...)})
	return nil
}

func (s *captureSender) take() []sentDatagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sent
	s.sent = nil
	return out
}

func testPrefix(b byte) types.GuidPrefix {
	return types.GuidPrefix{b, b, b, b, 0, 0, 0, 0, 0, 0, 0, 1}
}

func testWriterGUID(b byte) types.GUID {
	return types.NewGUID(testPrefix(b), types.NewEntityID(1, types.EntityKindWriterWithKey))
}

func testReaderGUID() types.GUID {
	return types.NewGUID(testPrefix(2), types.NewEntityID(7, types.EntityKindReaderWithKey))
}

func testLocator(port uint32) types.Locator {
	return types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), port)
}

func change(sn types.SequenceNumber) *types.CacheChange {
	return &types.CacheChange{
		Kind:           types.ChangeKindAlive,
		WriterGUID:     testWriterGUID(1),
		SequenceNumber: sn,
		Data:           []byte{0, 1, 0, 0, byte(sn), 0, 0, 0},
	}
}

func heartbeat(count types.Count, first, last types.SequenceNumber, final bool) *messages.Heartbeat {
	return &messages.Heartbeat{
		ReaderID: types.EntityIDUnknown,
		WriterID: testWriterGUID(1).EntityID,
		FirstSN:  first,
		LastSN:   last,
		Count:    count,
		Final:    final,
	}
}

func released(d Delivery) []types.SequenceNumber {
	out := make([]types.SequenceNumber, 0, len(d.Released))
	for _, c := range d.Released {
		out = append(out, c.SequenceNumber)
	}
	return out
}
