package config

import (
	"fmt"
	"regexp"
)

var namespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MetricsConfig 协议指标配置
type MetricsConfig struct {
	// Enabled 是否注册 Prometheus 指标
	Enabled bool `json:"enabled"`

	// Namespace 指标命名空间
	Namespace string `json:"namespace"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enabled: false, Namespace: "dds"}
}

// Validate 验证指标配置
func (c MetricsConfig) Validate() error {
	if c.Enabled && !namespacePattern.MatchString(c.Namespace) {
		return fmt.Errorf("%w: metrics namespace %q", ErrInvalidConfig, c.Namespace)
	}
	return nil
}
