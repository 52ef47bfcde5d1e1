package dds

import (
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-dds/config"
	"github.com/dep2p/go-dds/internal/transport/memory"
)

// Option 用户配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	config        *config.Config
	clock         clock.Clock
	registerer    prometheus.Registerer
	network       *memory.Network
	userFxOptions []fx.Option
}

func newOptions(opts []Option) (*options, error) {
	o := &options{config: config.NewConfig()}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithConfig 使用完整配置（覆盖此前的配置类选项）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("%w: config is nil", config.ErrInvalidConfig)
		}
		o.config = cfg.Clone()
		return nil
	}
}

// WithPreset 应用预设配置
func WithPreset(name string) Option {
	return func(o *options) error {
		return config.ApplyPreset(o.config, name)
	}
}

// WithDomainID 设置域编号
func WithDomainID(id int) Option {
	return func(o *options) error {
		o.config.Participant.DomainID = id
		return nil
	}
}

// WithLogLevel 设置日志级别
func WithLogLevel(level string) Option {
	return func(o *options) error {
		o.config.Log.Level = level
		return nil
	}
}

// WithClock 注入时钟（测试可使用 clock.NewMock）
func WithClock(clk clock.Clock) Option {
	return func(o *options) error {
		o.clock = clk
		return nil
	}
}

// WithMetrics 启用 Prometheus 协议指标，reg 为 nil 时使用默认注册表
func WithMetrics(namespace string, reg prometheus.Registerer) Option {
	return func(o *options) error {
		o.config.Metrics.Enabled = true
		if namespace != "" {
			o.config.Metrics.Namespace = namespace
		}
		o.registerer = reg
		return nil
	}
}

// WithNetwork 把域挂在进程内网络上（测试与单进程部署）
func WithNetwork(n *Network) Option {
	return func(o *options) error {
		if n == nil {
			return fmt.Errorf("%w: network is nil", config.ErrInvalidConfig)
		}
		o.config.Transport.Kind = config.TransportMemory
		o.network = n.n
		return nil
	}
}

// WithFxOptions 追加用户自定义 Fx 选项
func WithFxOptions(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}

// Network 进程内网络，同一网络上的域可以互相通信
type Network struct {
	n *memory.Network
}

// NewNetwork 创建进程内网络
func NewNetwork() *Network {
	return &Network{n: memory.NewNetwork()}
}
