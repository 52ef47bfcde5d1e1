package participant

import "errors"

var (
	// ErrUnknownEndpoint 本地不存在该端点
	ErrUnknownEndpoint = errors.New("participant: unknown endpoint")

	// ErrIncompatibleQos 写者提供的 QoS 不满足读者请求
	ErrIncompatibleQos = errors.New("participant: incompatible qos")

	// ErrAlreadyStarted 参与者已在运行
	ErrAlreadyStarted = errors.New("participant: already started")

	// ErrClosed 参与者已关闭
	ErrClosed = errors.New("participant: closed")
)
