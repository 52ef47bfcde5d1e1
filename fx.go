package dds

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/participant"
	"github.com/dep2p/go-dds/pkg/lib/log"
)

var fxLogger = log.Logger("dds/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置注入（配置、时钟、Prometheus 注册表、进程内网络）
//  2. Participant 模块：传输、指标、参与者与生命周期钩子
//  3. 用户自定义 Fx 选项
//  4. Domain 组件注入
func buildFxApp(o *options, d *Domain) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := o.config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(o.config),
	}
	if o.clock != nil {
		modules = append(modules, fx.Provide(func() clock.Clock { return o.clock }))
	}
	if o.registerer != nil {
		modules = append(modules, fx.Provide(func() prometheus.Registerer { return o.registerer }))
	}
	if o.network != nil {
		modules = append(modules, fx.Supply(o.network))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 参与者
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, participant.Module())

	// ════════════════════════════════════════════════════════════════════════
	// 3. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	if len(o.userFxOptions) > 0 {
		modules = append(modules, o.userFxOptions...)
	}

	// ════════════════════════════════════════════════════════════════════════
	// 4. Domain 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(func(p *participant.Participant, c *metrics.Counter) {
		d.participant = p
		d.counter = c
	}))

	// ════════════════════════════════════════════════════════════════════════
	// 5. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	verbose := o.config.Log.FxEvents
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		if !verbose {
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		zl, err := zap.NewDevelopment()
		if err != nil {
			fxLogger.Warn("创建 zap logger 失败", "error", err)
			return &fxevent.ZapLogger{Logger: zap.NewNop()}
		}
		return &fxevent.ZapLogger{Logger: zl}
	}))

	return fx.New(modules...), nil
}
