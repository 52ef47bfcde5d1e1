package writer

import "time"

// Timing 可靠写者的定时参数
type Timing struct {
	// HeartbeatPeriod 没有未发送变更但仍有未确认变更时发送心跳的周期
	HeartbeatPeriod time.Duration

	// NackResponseDelay 收到 AckNack 后延迟多久开始修复
	NackResponseDelay time.Duration

	// NackSuppressionDuration 该时间窗内的重复 nack 被忽略，0 表示不抑制
	NackSuppressionDuration time.Duration
}

// DefaultTiming 返回默认定时参数
func DefaultTiming() Timing {
	return Timing{
		HeartbeatPeriod:   200 * time.Millisecond,
		NackResponseDelay: 200 * time.Millisecond,
	}
}
