package datawriter

import "errors"

var (
	// ErrBadParameter 参数非法
	ErrBadParameter = errors.New("datawriter: bad parameter")

	// ErrUnknownInstance 生命周期操作引用了未注册的实例
	ErrUnknownInstance = errors.New("datawriter: unknown instance")

	// ErrOutOfResources KeepAll 历史已达到资源上限
	ErrOutOfResources = errors.New("datawriter: out of resources")
)
