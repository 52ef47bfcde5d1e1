package dds

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"

	"github.com/dep2p/go-dds/config"
	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/participant"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("dds")

// Stats 协议统计快照
type Stats = metrics.Stats

// Domain 一个 DDS 域参与者
//
// Domain 持有传输、RTPS 端点与驱动循环。所有写者与读者都在
// 某个 Domain 上创建。
type Domain struct {
	app         *fx.App
	participant *participant.Participant
	counter     *metrics.Counter

	mu      sync.Mutex
	started bool
	closed  bool
}

// New 创建域（不启动）
//
// 通过 Start 启动接收与驱动循环。
func New(opts ...Option) (*Domain, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}

	d := &Domain{}
	app, err := buildFxApp(o, d)
	if err != nil {
		return nil, err
	}
	if err := app.Err(); err != nil {
		return nil, err
	}
	d.app = app
	return d, nil
}

// Start 创建并启动域
func Start(ctx context.Context, opts ...Option) (*Domain, error) {
	d, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Start(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Start 启动域
func (d *Domain) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDomainClosed
	}
	if d.started {
		return ErrAlreadyStarted
	}
	if err := d.app.Start(ctx); err != nil {
		return err
	}
	d.started = true
	logger.Info("域已启动",
		"domain", d.participant.Config().Participant.DomainID,
		"guidPrefix", d.participant.GuidPrefix())
	return nil
}

// Close 停止并关闭域，重复调用无副作用
func (d *Domain) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	if !d.started {
		// 未启动时生命周期钩子不会执行，直接关闭参与者
		return d.participant.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.app.Stop(ctx)
}

// DomainID 返回域编号
func (d *Domain) DomainID() int {
	return d.participant.Config().Participant.DomainID
}

// GuidPrefix 返回参与者 GUID 前缀
func (d *Domain) GuidPrefix() types.GuidPrefix {
	return d.participant.GuidPrefix()
}

// Config 返回生效的配置
func (d *Domain) Config() *config.Config {
	return d.participant.Config()
}

// Locators 返回本地单播定位器
func (d *Domain) Locators() types.LocatorList {
	return d.participant.LocalLocators()
}

// Stats 返回协议统计快照
func (d *Domain) Stats() Stats {
	return d.counter.Totals()
}

// Flush 立即驱动一轮所有端点（发送待发数据与到期的心跳/确认）
func (d *Domain) Flush(ctx context.Context) {
	d.participant.Tick(ctx)
}

// WaitIdle 等待所有可靠写者的数据被确认
func (d *Domain) WaitIdle(ctx context.Context, timeout time.Duration) error {
	return d.participant.WaitIdle(ctx, timeout)
}
