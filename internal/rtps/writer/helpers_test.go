package writer

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/pkg/types"
)

// 测试辅助：记录并解码发出的数据报

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

func testWriterGUID() types.GUID {
	return types.NewGUID(testPrefix(1), types.NewEntityID(1, types.EntityKindWriterWithKey))
}

func testReaderGUID(b byte) types.GUID {
	return types.NewGUID(testPrefix(b), types.NewEntityID(7, types.EntityKindReaderWithKey))
}

func testLocator(port uint32) types.Locator {
	return types.NewUDPv4Locator(net.IPv4(127, 0, 0, 1), port)
}

// describe 把子消息转换为便于断言的简短描述
func describe(subs []messages.Submessage) []string {
	out := make([]string, 0, len(subs))
	for _, sm := range subs {
		switch m := sm.(type) {
		case *messages.Data:
			out = append(out, fmt.Sprintf("DATA(%d)", m.WriterSN))
		case *messages.Gap:
			out = append(out, fmt.Sprintf("GAP(%v)", m.Irrelevant()))
		case *messages.Heartbeat:
			out = append(out, fmt.Sprintf("HEARTBEAT(%d-%d#%d)", m.FirstSN, m.LastSN, m.Count))
		case *messages.InfoTimestamp:
			if m.Invalidate {
				out = append(out, "INFO_TS(-)")
			} else {
				out = append(out, fmt.Sprintf("INFO_TS(%d)", m.Timestamp.Seconds))
			}
		default:
			out = append(out, sm.Kind().String())
		}
	}
	return out
}
