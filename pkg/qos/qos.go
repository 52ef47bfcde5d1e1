// Package qos 定义端点的 QoS 配置快照
//
// QoS 在端点创建时确定，启用后不可修改。
// 协议层与 DCPS 层只读取这些值，不做默认化处理之外的任何变换。
package qos

import (
	"errors"
	"fmt"
	"time"
)

// LengthUnlimited 表示无上限
const LengthUnlimited = -1

// ============================================================================
//                              Reliability
// ============================================================================

// ReliabilityKind 可靠性种类
type ReliabilityKind int

const (
	// BestEffort 尽力而为，不重传
	BestEffort ReliabilityKind = iota
	// Reliable 可靠投递
	Reliable
)

// String 返回可靠性种类字符串
func (k ReliabilityKind) String() string {
	switch k {
	case BestEffort:
		return "best_effort"
	case Reliable:
		return "reliable"
	default:
		return "unknown"
	}
}

// ============================================================================
//                              History
// ============================================================================

// HistoryKind 历史种类
type HistoryKind int

const (
	// KeepLast 每个实例保留最近 Depth 个样本
	KeepLast HistoryKind = iota
	// KeepAll 保留全部样本（受资源限制约束）
	KeepAll
)

// History 历史策略
type History struct {
	Kind  HistoryKind
	Depth int
}

// KeepLastHistory 创建 KeepLast(depth)
func KeepLastHistory(depth int) History {
	return History{Kind: KeepLast, Depth: depth}
}

// KeepAllHistory 创建 KeepAll
func KeepAllHistory() History {
	return History{Kind: KeepAll}
}

// ============================================================================
//                              ResourceLimits
// ============================================================================

// ResourceLimits 资源限制，LengthUnlimited 表示不限
type ResourceLimits struct {
	MaxSamples            int
	MaxInstances          int
	MaxSamplesPerInstance int
}

// UnlimitedResources 返回不限资源
func UnlimitedResources() ResourceLimits {
	return ResourceLimits{
		MaxSamples:            LengthUnlimited,
		MaxInstances:          LengthUnlimited,
		MaxSamplesPerInstance: LengthUnlimited,
	}
}

// ============================================================================
//                              Ownership / DestinationOrder / TimeBasedFilter
// ============================================================================

// OwnershipKind 所有权种类
type OwnershipKind int

const (
	// Shared 多个写者可同时更新实例
	Shared OwnershipKind = iota
	// Exclusive 仅强度最高的写者可更新实例
	Exclusive
)

// DestinationOrderKind 目的地排序种类
type DestinationOrderKind int

const (
	// ByReceptionTimestamp 按接收时间排序
	ByReceptionTimestamp DestinationOrderKind = iota
	// BySourceTimestamp 按源时间戳排序
	BySourceTimestamp
)

// TimeBasedFilter 基于时间的过滤
type TimeBasedFilter struct {
	// MinimumSeparation 同一实例相邻样本的最小源时间间隔，0 表示不过滤
	MinimumSeparation time.Duration
}

// ============================================================================
//                              Writer / Reader QoS
// ============================================================================

// WriterQos 写者 QoS
type WriterQos struct {
	Reliability       ReliabilityKind
	History           History
	ResourceLimits    ResourceLimits
	Ownership         OwnershipKind
	OwnershipStrength int32
	DestinationOrder  DestinationOrderKind
}

// ReaderQos 读者 QoS
type ReaderQos struct {
	Reliability      ReliabilityKind
	History          History
	ResourceLimits   ResourceLimits
	Ownership        OwnershipKind
	DestinationOrder DestinationOrderKind
	TimeBasedFilter  TimeBasedFilter
}

// DefaultWriterQos 返回默认写者 QoS（可靠，KeepLast(1)）
func DefaultWriterQos() WriterQos {
	return WriterQos{
		Reliability:      Reliable,
		History:          KeepLastHistory(1),
		ResourceLimits:   UnlimitedResources(),
		Ownership:        Shared,
		DestinationOrder: ByReceptionTimestamp,
	}
}

// DefaultReaderQos 返回默认读者 QoS（尽力而为，KeepLast(1)）
func DefaultReaderQos() ReaderQos {
	return ReaderQos{
		Reliability:      BestEffort,
		History:          KeepLastHistory(1),
		ResourceLimits:   UnlimitedResources(),
		Ownership:        Shared,
		DestinationOrder: ByReceptionTimestamp,
	}
}

// ============================================================================
//                              验证
// ============================================================================

// ErrInconsistentPolicy QoS 策略不一致
var ErrInconsistentPolicy = errors.New("inconsistent qos policy")

// Validate 验证读者 QoS
func (q ReaderQos) Validate() error {
	return validateCommon(q.History, q.ResourceLimits)
}

// Validate 验证写者 QoS
func (q WriterQos) Validate() error {
	return validateCommon(q.History, q.ResourceLimits)
}

func validateCommon(h History, rl ResourceLimits) error {
	if h.Kind == KeepLast && h.Depth <= 0 {
		return fmt.Errorf("%w: history depth must be positive, got %d", ErrInconsistentPolicy, h.Depth)
	}
	if h.Kind == KeepLast && rl.MaxSamplesPerInstance != LengthUnlimited && h.Depth > rl.MaxSamplesPerInstance {
		return fmt.Errorf("%w: history depth %d exceeds max_samples_per_instance %d",
			ErrInconsistentPolicy, h.Depth, rl.MaxSamplesPerInstance)
	}
	if rl.MaxSamples != LengthUnlimited && rl.MaxSamplesPerInstance != LengthUnlimited &&
		rl.MaxSamples < rl.MaxSamplesPerInstance {
		return fmt.Errorf("%w: max_samples %d below max_samples_per_instance %d",
			ErrInconsistentPolicy, rl.MaxSamples, rl.MaxSamplesPerInstance)
	}
	return nil
}

// IsCompatible 检查已提供的写者 QoS 能否满足请求的读者 QoS
//
// 返回不兼容的策略名称列表，空列表表示兼容。
func IsCompatible(offered WriterQos, requested ReaderQos) []string {
	var incompatible []string
	if offered.Reliability < requested.Reliability {
		incompatible = append(incompatible, "reliability")
	}
	if offered.Ownership != requested.Ownership {
		incompatible = append(incompatible, "ownership")
	}
	if offered.DestinationOrder < requested.DestinationOrder {
		incompatible = append(incompatible, "destination_order")
	}
	return incompatible
}
