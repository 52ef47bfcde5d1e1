package messages

import (
	"fmt"

	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              ParameterList
// ============================================================================

// ParameterID 参数标识
type ParameterID uint16

// 常用参数标识
const (
	PIDPad        ParameterID = 0x0000
	PIDSentinel   ParameterID = 0x0001
	PIDKeyHash    ParameterID = 0x0070
	PIDStatusInfo ParameterID = 0x0071
)

// StatusInfo 标志位（位于 4 字节值的最后一个字节）
const (
	StatusInfoDisposed     uint8 = 0x01
	StatusInfoUnregistered uint8 = 0x02
	StatusInfoFiltered     uint8 = 0x04
)

// Parameter 单个参数
type Parameter struct {
	ID    ParameterID
	Value []byte
}

// ParameterList 参数列表（内联 QoS）
type ParameterList []Parameter

// Find 返回第一个指定标识的参数值
func (pl ParameterList) Find(id ParameterID) ([]byte, bool) {
	for _, p := range pl {
		if p.ID == id {
			return p.Value, true
		}
	}
	return nil, false
}

func (w *writer) parameterList(pl ParameterList) {
	for _, p := range pl {
		padded := (len(p.Value) + 3) &^ 3
		w.u16(uint16(p.ID))
		w.u16(uint16(padded))
		w.bytes(p.Value)
		for i := len(p.Value); i < padded; i++ {
			w.u8(0)
		}
	}
	w.u16(uint16(PIDSentinel))
	w.u16(0)
}

func (r *reader) parameterList() (ParameterList, error) {
	var pl ParameterList
	for {
		id, err := r.u16("parameter id")
		if err != nil {
			return nil, err
		}
		length, err := r.u16("parameter length")
		if err != nil {
			return nil, err
		}
		if ParameterID(id) == PIDSentinel {
			return pl, nil
		}
		if length%4 != 0 {
			return nil, fmt.Errorf("%w: pid 0x%04x length %d", ErrInvalidParameterLength, id, length)
		}
		value, err := r.bytes(int(length), "parameter value")
		if err != nil {
			return nil, err
		}
		if ParameterID(id) == PIDPad {
			continue
		}
		pl = append(pl, Parameter{ID: ParameterID(id), Value: value})
	}
}

// ============================================================================
//                              StatusInfo / KeyHash 辅助
// ============================================================================

// StatusInfoFromKind 由变更种类生成 PID_STATUS_INFO 的值
func StatusInfoFromKind(kind types.ChangeKind) [4]byte {
	var flags uint8
	switch kind {
	case types.ChangeKindNotAliveDisposed:
		flags = StatusInfoDisposed
	case types.ChangeKindNotAliveUnregistered:
		flags = StatusInfoUnregistered
	case types.ChangeKindNotAliveDisposedUnregistered:
		flags = StatusInfoDisposed | StatusInfoUnregistered
	case types.ChangeKindAliveFiltered:
		flags = StatusInfoFiltered
	}
	return [4]byte{0, 0, 0, flags}
}

// KindFromStatusInfo 由 PID_STATUS_INFO 的值还原变更种类
func KindFromStatusInfo(value []byte) (types.ChangeKind, error) {
	if len(value) < 4 {
		return 0, fmt.Errorf("%w: status info needs 4 bytes, got %d", ErrInvalidData, len(value))
	}
	flags := value[3]
	switch {
	case flags&StatusInfoDisposed != 0 && flags&StatusInfoUnregistered != 0:
		return types.ChangeKindNotAliveDisposedUnregistered, nil
	case flags&StatusInfoDisposed != 0:
		return types.ChangeKindNotAliveDisposed, nil
	case flags&StatusInfoUnregistered != 0:
		return types.ChangeKindNotAliveUnregistered, nil
	case flags&StatusInfoFiltered != 0:
		return types.ChangeKindAliveFiltered, nil
	default:
		return types.ChangeKindAlive, nil
	}
}

// InlineQosForChange 构造变更的内联 QoS（状态信息 + 键哈希）
//
// 存活变更且不需要键哈希时返回 nil。
func InlineQosForChange(c *types.CacheChange, withKeyHash bool) ParameterList {
	var pl ParameterList
	if c.Kind != types.ChangeKindAlive {
		si := StatusInfoFromKind(c.Kind)
		pl = append(pl, Parameter{ID: PIDStatusInfo, Value: si[:]})
	}
	if withKeyHash || c.Kind != types.ChangeKindAlive {
		h := c.InstanceHandle
		pl = append(pl, Parameter{ID: PIDKeyHash, Value: h[:]})
	}
	return pl
}
