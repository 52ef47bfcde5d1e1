package messages

import "errors"

// 错误定义
var (
	// ErrTruncated 缓冲区长度不足
	ErrTruncated = errors.New("truncated buffer")

	// ErrInvalidData 字段取值非法（如 SequenceNumberSet.num_bits > 256）
	ErrInvalidData = errors.New("invalid data")

	// ErrInvalidParameterLength 参数长度不是 4 的倍数
	ErrInvalidParameterLength = errors.New("parameter length not a multiple of 4")

	// ErrInvalidHeader 消息头非法
	ErrInvalidHeader = errors.New("invalid message header")

	// ErrOutOfWindow 序列号不在 SequenceNumberSet 的 256 窗口内
	ErrOutOfWindow = errors.New("sequence number outside set window")
)
