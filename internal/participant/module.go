package participant

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-dds/config"
	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/internal/transport/memory"
	"github.com/dep2p/go-dds/internal/transport/udp"
	"github.com/dep2p/go-dds/pkg/lib/log"
)

// Params Participant 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config        `optional:"true"`
	Transport  transport.Transport   `optional:"true"`
	Network    *memory.Network       `optional:"true"`
	Clock      clock.Clock           `optional:"true"`
	Registerer prometheus.Registerer `optional:"true"`
}

// Module 返回 Participant Fx 模块
//
// 提供:
//   - *Participant: 参与者
//   - *metrics.Counter: 协议指标
//
// 生命周期:
//   - OnStart: 启动接收循环与驱动循环
//   - OnStop: 停止循环并关闭传输
func Module() fx.Option {
	return fx.Module("participant",
		fx.Provide(
			ProvideCounter,
			ProvideParticipant,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideCounter 按配置创建指标计数器，指标启用时注册到 Prometheus
func ProvideCounter(p Params) *metrics.Counter {
	cfg := unified(p.UnifiedCfg)
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	if !cfg.Metrics.Enabled {
		return metrics.NewCounter(clk, nil, "")
	}
	reg := p.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return metrics.NewCounter(clk, reg, cfg.Metrics.Namespace)
}

// ProvideParticipant 创建参与者；未注入传输时按配置创建
func ProvideParticipant(p Params, counter *metrics.Counter) (*Participant, error) {
	cfg := unified(p.UnifiedCfg)
	log.Setup(log.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})

	tr := p.Transport
	if tr == nil {
		var err error
		if tr, err = NewTransport(cfg, p.Network); err != nil {
			return nil, err
		}
	}
	return New(cfg, Options{Transport: tr, Clock: p.Clock, Reporter: counter})
}

// NewTransport 根据配置创建传输
//
// memory 传输挂在 network 上，network 为 nil 时创建独立网络。
func NewTransport(cfg *config.Config, network *memory.Network) (transport.Transport, error) {
	switch cfg.Transport.Kind {
	case config.TransportMemory:
		if network == nil {
			network = memory.NewNetwork()
		}
		return network.NewTransport(), nil
	case config.TransportUDP:
		return udp.New(udp.Config{
			Address:           cfg.Transport.Address,
			Port:              cfg.Transport.Port,
			MulticastGroup:    cfg.Transport.MulticastGroup,
			MulticastPort:     cfg.Transport.MulticastPortFor(cfg.Participant.DomainID),
			Interface:         cfg.Transport.Interface,
			MulticastTTL:      cfg.Transport.MulticastTTL,
			MulticastLoopback: cfg.Transport.MulticastLoopback,
		})
	default:
		return nil, fmt.Errorf("%w: transport kind %q", config.ErrInvalidConfig, cfg.Transport.Kind)
	}
}

func unified(cfg *config.Config) *config.Config {
	if cfg == nil {
		return config.NewConfig()
	}
	return cfg
}

// registerLifecycle 注册生命周期钩子
func registerLifecycle(lc fx.Lifecycle, p *Participant) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return p.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return p.Stop()
		},
	})
}
