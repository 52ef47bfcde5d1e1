package dds

import (
	"errors"

	"github.com/dep2p/go-dds/internal/dcps/datareader"
	"github.com/dep2p/go-dds/internal/dcps/datawriter"
	"github.com/dep2p/go-dds/internal/participant"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 域生命周期错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 域未启动
	ErrNotStarted = errors.New("domain not started")

	// ErrAlreadyStarted 域已启动
	ErrAlreadyStarted = participant.ErrAlreadyStarted

	// ErrDomainClosed 域已关闭
	ErrDomainClosed = participant.ErrClosed

	// ────────────────────────────────────────────────────────────────────────
	// 匹配错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrIncompatibleQos 写者与读者 QoS 不兼容
	ErrIncompatibleQos = participant.ErrIncompatibleQos

	// ErrDifferentDomain 写者与读者属于不同的域
	ErrDifferentDomain = errors.New("endpoints belong to different domains")

	// ────────────────────────────────────────────────────────────────────────
	// 数据错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNoData read/take 没有满足条件的样本
	ErrNoData = datareader.ErrNoData

	// ErrOutOfResources 写者历史已达到资源上限
	ErrOutOfResources = datawriter.ErrOutOfResources

	// ErrUnknownInstance 生命周期操作引用了未注册的实例
	ErrUnknownInstance = datawriter.ErrUnknownInstance
)
