package types

import "math"

// ============================================================================
//                              SequenceNumber - 序列号
// ============================================================================

// SequenceNumber 写者内单调递增的序列号，从 1 开始
type SequenceNumber int64

const (
	// SequenceNumberUnknown 未知序列号（线路表示 high=-1, low=0）
	SequenceNumberUnknown SequenceNumber = -1 << 32

	// SequenceNumberZero 尚未写入任何变更时的最大序列号
	SequenceNumberZero SequenceNumber = 0

	// SequenceNumberMax 可表示的最大序列号
	SequenceNumberMax SequenceNumber = math.MaxInt64
)

// High 返回高 32 位（有符号）
func (sn SequenceNumber) High() int32 {
	return int32(int64(sn) >> 32)
}

// Low 返回低 32 位（无符号）
func (sn SequenceNumber) Low() uint32 {
	return uint32(int64(sn))
}

// SequenceNumberFromParts 由线路上的高低两部分组装序列号
func SequenceNumberFromParts(high int32, low uint32) SequenceNumber {
	return SequenceNumber(int64(high)<<32 | int64(low))
}

// IsValid 检查序列号是否有效（有效序列号从 1 开始）
func (sn SequenceNumber) IsValid() bool {
	return sn >= 1
}

// Count 单调递增的消息计数（Heartbeat/AckNack 去重用）
type Count int32
