package cdr

import "errors"

var (
	// ErrNonASCII char 或 string 包含非 ASCII 字符
	ErrNonASCII = errors.New("cdr: non-ASCII character")

	// ErrTooLong 长度超过 u32 上限
	ErrTooLong = errors.New("cdr: length exceeds u32 range")

	// ErrTruncated 输入不足
	ErrTruncated = errors.New("cdr: truncated input")

	// ErrInvalidString 字符串缺少结尾 NUL 或长度为 0
	ErrInvalidString = errors.New("cdr: invalid string")

	// ErrUnsupportedEncapsulation 不支持的封装标识
	ErrUnsupportedEncapsulation = errors.New("cdr: unsupported encapsulation")
)
