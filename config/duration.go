package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Duration 是协议定时参数使用的时长
//
// JSON 中接受三种写法:
//   - 字符串: "200ms", "1.5s"
//   - 整数: 毫秒数
//   - 对象: {"sec": 1, "nanosec": 500000000}，与 RTPS Duration_t 的字段对应
//
// 负数时长在解析时即被拒绝。输出总是字符串形式。
type Duration time.Duration

// rtpsDuration 对应 RTPS Duration_t
type rtpsDuration struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty duration", ErrInvalidConfig)
	}

	var v time.Duration
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, s, err)
		}
		v = parsed
	case '{':
		var r rtpsDuration
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("%w: duration %s: %v", ErrInvalidConfig, data, err)
		}
		if r.Nanosec >= uint32(time.Second) {
			return fmt.Errorf("%w: duration nanosec %d out of range", ErrInvalidConfig, r.Nanosec)
		}
		v = time.Duration(r.Sec)*time.Second + time.Duration(r.Nanosec)
	default:
		var ms int64
		if err := json.Unmarshal(data, &ms); err != nil {
			return fmt.Errorf("%w: duration %s must be a string, milliseconds or {sec, nanosec}", ErrInvalidConfig, data)
		}
		if ms > math.MaxInt64/int64(time.Millisecond) || ms < math.MinInt64/int64(time.Millisecond) {
			return fmt.Errorf("%w: duration %dms overflows", ErrInvalidConfig, ms)
		}
		v = time.Duration(ms) * time.Millisecond
	}

	if v < 0 {
		return fmt.Errorf("%w: negative duration %s", ErrInvalidConfig, v)
	}
	*d = Duration(v)
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 返回 time.Duration 值
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// String 实现 fmt.Stringer
func (d Duration) String() string {
	return time.Duration(d).String()
}
