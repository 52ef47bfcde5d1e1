package types

import (
	"math"
	"time"
)

// ============================================================================
//                              Time - RTPS 时间戳
// ============================================================================

// Time RTPS 线路时间：秒 + 2^-32 秒为单位的小数部分
type Time struct {
	Seconds  int32
	Fraction uint32
}

var (
	// TimeZero 零时间
	TimeZero = Time{}

	// TimeInvalid 无效时间
	TimeInvalid = Time{Seconds: -1, Fraction: math.MaxUint32}

	// TimeInfinite 无穷时间
	TimeInfinite = Time{Seconds: math.MaxInt32, Fraction: math.MaxUint32 - 1}
)

// TimeFromGo 从 time.Time 转换
func TimeFromGo(t time.Time) Time {
	ns := t.UnixNano()
	sec := ns / int64(time.Second)
	rem := ns % int64(time.Second)
	return Time{
		Seconds:  int32(sec),
		Fraction: uint32((uint64(rem) << 32) / uint64(time.Second)),
	}
}

// Go 转换为 time.Time
func (t Time) Go() time.Time {
	ns := (uint64(t.Fraction) * uint64(time.Second)) >> 32
	return time.Unix(int64(t.Seconds), int64(ns))
}

// Nanos 返回自纪元起的纳秒数
func (t Time) Nanos() int64 {
	return int64(t.Seconds)*int64(time.Second) + int64((uint64(t.Fraction)*uint64(time.Second))>>32)
}

// Sub 返回 t - u
func (t Time) Sub(u Time) time.Duration {
	return time.Duration(t.Nanos() - u.Nanos())
}

// Before 检查 t 是否早于 u
func (t Time) Before(u Time) bool {
	return t.Compare(u) < 0
}

// Compare 比较两个时间：-1, 0, +1
func (t Time) Compare(u Time) int {
	switch {
	case t.Seconds < u.Seconds:
		return -1
	case t.Seconds > u.Seconds:
		return 1
	case t.Fraction < u.Fraction:
		return -1
	case t.Fraction > u.Fraction:
		return 1
	default:
		return 0
	}
}

// IsValid 检查是否为有效时间
func (t Time) IsValid() bool {
	return t != TimeInvalid
}
