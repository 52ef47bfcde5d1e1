// Package types 定义 go-dds 的基础类型
//
// 本文件定义所有公共错误类型。
package types

import "errors"

// ============================================================================
//                              通用错误
// ============================================================================

var (
	// ErrInvalidGUID 无效的 GUID
	ErrInvalidGUID = errors.New("invalid GUID")

	// ErrInvalidSequenceNumber 无效的序列号
	ErrInvalidSequenceNumber = errors.New("invalid sequence number")

	// ErrInvalidLocator 无效的定位器
	ErrInvalidLocator = errors.New("invalid locator")
)
