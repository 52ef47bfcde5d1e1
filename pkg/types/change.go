package types

import "encoding/hex"

// ============================================================================
//                              ChangeKind - 变更种类
// ============================================================================

// ChangeKind 变更种类
type ChangeKind int

const (
	// ChangeKindAlive 存活数据
	ChangeKindAlive ChangeKind = iota
	// ChangeKindAliveFiltered 存活但已被过滤
	ChangeKindAliveFiltered
	// ChangeKindNotAliveDisposed 实例已销毁
	ChangeKindNotAliveDisposed
	// ChangeKindNotAliveUnregistered 实例已注销
	ChangeKindNotAliveUnregistered
	// ChangeKindNotAliveDisposedUnregistered 实例已销毁并注销
	ChangeKindNotAliveDisposedUnregistered
)

// String 返回变更种类字符串
func (k ChangeKind) String() string {
	switch k {
	case ChangeKindAlive:
		return "alive"
	case ChangeKindAliveFiltered:
		return "alive_filtered"
	case ChangeKindNotAliveDisposed:
		return "not_alive_disposed"
	case ChangeKindNotAliveUnregistered:
		return "not_alive_unregistered"
	case ChangeKindNotAliveDisposedUnregistered:
		return "not_alive_disposed_unregistered"
	default:
		return "unknown"
	}
}

// IsAlive 检查是否为存活种类（Alive 或 AliveFiltered）
func (k ChangeKind) IsAlive() bool {
	return k == ChangeKindAlive || k == ChangeKindAliveFiltered
}

// ============================================================================
//                              InstanceHandle - 实例句柄
// ============================================================================

// InstanceHandle 实例句柄（即 16 字节键哈希）
type InstanceHandle [16]byte

// HandleNil 空句柄
var HandleNil InstanceHandle

// IsNil 检查是否为空句柄
func (h InstanceHandle) IsNil() bool {
	return h == HandleNil
}

// String 返回十六进制表示
func (h InstanceHandle) String() string {
	return hex.EncodeToString(h[:])
}

// Less 按字节序比较（用于 next_instance 的句柄顺序）
func (h InstanceHandle) Less(o InstanceHandle) bool {
	for i := range h {
		if h[i] != o[i] {
			return h[i] < o[i]
		}
	}
	return false
}

// ============================================================================
//                              CacheChange - 变更记录
// ============================================================================

// CacheChange 某个实例上的一次写入或生命周期事件
//
// CacheChange 由创建它的 HistoryCache 拥有，
// 对仍需投递它的读者代理只读共享。创建后不可修改。
type CacheChange struct {
	// Kind 变更种类
	Kind ChangeKind

	// WriterGUID 产生该变更的写者
	WriterGUID GUID

	// SequenceNumber 写者内序列号
	SequenceNumber SequenceNumber

	// InstanceHandle 实例句柄
	InstanceHandle InstanceHandle

	// Data 序列化负载（存活数据为完整样本，生命周期事件为序列化键）
	Data []byte

	// SourceTimestamp 源时间戳（可选）
	SourceTimestamp *Time
}

// HasSourceTimestamp 检查是否携带源时间戳
func (c *CacheChange) HasSourceTimestamp() bool {
	return c.SourceTimestamp != nil
}
