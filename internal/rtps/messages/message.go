package messages

import (
	"fmt"

	"go.uber.org/multierr"

	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              消息头
// ============================================================================

// HeaderSize 消息头长度
const HeaderSize = 20

const submessageHeaderSize = 4

var protocolMagic = [4]byte{'R', 'T', 'P', 'S'}

// Header 消息头
type Header struct {
	Version    types.ProtocolVersion
	VendorID   types.VendorID
	GuidPrefix types.GuidPrefix
}

// NewHeader 创建本实现的消息头
func NewHeader(prefix types.GuidPrefix) Header {
	return Header{
		Version:    types.ProtocolVersion24,
		VendorID:   types.VendorIDGoDDS,
		GuidPrefix: prefix,
	}
}

// ============================================================================
//                              Message
// ============================================================================

// Message 一个数据报内的完整 RTPS 消息
type Message struct {
	Header      Header
	Submessages []Submessage
}

// Encode 以指定字节序编码消息
func (m *Message) Encode(e Endianness) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, protocolMagic[:]...)
	buf = append(buf, m.Header.Version.Major, m.Header.Version.Minor)
	buf = append(buf, m.Header.VendorID[:]...)
	buf = append(buf, m.Header.GuidPrefix[:]...)

	for _, sm := range m.Submessages {
		buf = AppendSubmessage(buf, sm, e)
	}
	return buf
}

// AppendSubmessage 将子消息（含子消息头）追加到 buf
func AppendSubmessage(buf []byte, sm Submessage, e Endianness) []byte {
	body := newWriter(e, nil)
	sm.encodeBody(body)
	body.pad4()

	w := newWriter(e, buf)
	w.u8(uint8(sm.Kind()))
	w.u8(sm.flags() | e.flag())
	w.u16(uint16(len(body.buf)))
	w.bytes(body.buf)
	return w.buf
}

// Decode 解码数据报
//
// 消息头非法时返回 nil 和错误，整条消息被丢弃。
// 单个子消息解码失败只丢弃该子消息：返回的消息包含其余成功解码的
// 子消息，错误为所有被丢弃子消息错误的组合。
func Decode(data []byte) (*Message, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidHeader, len(data))
	}
	if [4]byte(data[:4]) != protocolMagic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrInvalidHeader, data[:4])
	}

	m := &Message{
		Header: Header{
			Version:    types.ProtocolVersion{Major: data[4], Minor: data[5]},
			VendorID:   types.VendorID{data[6], data[7]},
			GuidPrefix: types.GuidPrefix(data[8:20]),
		},
	}
	if m.Header.Version.Major != types.ProtocolVersion24.Major {
		return nil, fmt.Errorf("%w: unsupported protocol version %d.%d",
			ErrInvalidHeader, m.Header.Version.Major, m.Header.Version.Minor)
	}

	var errs error
	pos := HeaderSize
	for pos < len(data) {
		if len(data)-pos < submessageHeaderSize {
			errs = multierr.Append(errs, fmt.Errorf("%w: submessage header at %d", ErrTruncated, pos))
			break
		}
		kind := SubmessageKind(data[pos])
		flags := data[pos+1]
		length := int(endiannessFromFlags(flags).order().Uint16(data[pos+2:]))
		pos += submessageHeaderSize

		end := pos + length
		if length == 0 && kind != KindPad && kind != KindInfoTimestamp {
			// 长度为 0 表示延伸到消息末尾
			end = len(data)
		}
		if end > len(data) {
			errs = multierr.Append(errs, fmt.Errorf("%w: %s length %d exceeds message", ErrTruncated, kind, length))
			break
		}

		sm, err := decodeBody(kind, flags, data[pos:end])
		pos = end
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("decode %s: %w", kind, err))
			continue
		}
		if sm != nil {
			m.Submessages = append(m.Submessages, sm)
		}
	}
	return m, errs
}
