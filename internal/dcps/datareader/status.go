package datareader

import "github.com/dep2p/go-dds/pkg/types"

// SampleRejectedReason 拒收原因
type SampleRejectedReason int

const (
	// NotRejected 未拒收
	NotRejected SampleRejectedReason = iota
	// RejectedByInstancesLimit 超过 max_instances
	RejectedByInstancesLimit
	// RejectedBySamplesLimit 超过 max_samples
	RejectedBySamplesLimit
	// RejectedBySamplesPerInstanceLimit 超过 max_samples_per_instance
	RejectedBySamplesPerInstanceLimit
)

// String 返回拒收原因字符串
func (r SampleRejectedReason) String() string {
	switch r {
	case NotRejected:
		return "not_rejected"
	case RejectedByInstancesLimit:
		return "instances_limit"
	case RejectedBySamplesLimit:
		return "samples_limit"
	case RejectedBySamplesPerInstanceLimit:
		return "samples_per_instance_limit"
	default:
		return "unknown"
	}
}

// SampleRejectedStatus 样本拒收状态
type SampleRejectedStatus struct {
	TotalCount         int32
	TotalCountChange   int32
	LastReason         SampleRejectedReason
	LastInstanceHandle types.InstanceHandle
}

// SampleLostStatus 样本丢失状态
type SampleLostStatus struct {
	TotalCount       int32
	TotalCountChange int32
}

// ============================================================================
//                              接纳结果
// ============================================================================

// AddResultKind 接纳结果种类
type AddResultKind int

const (
	// Added 样本已加入
	Added AddResultKind = iota
	// NotAdded 被所有权或时间过滤丢弃
	NotAdded
	// Rejected 被资源限制拒收
	Rejected
)

// String 返回结果种类字符串
func (k AddResultKind) String() string {
	switch k {
	case Added:
		return "added"
	case NotAdded:
		return "not_added"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// AddResult 一次接纳的结果
type AddResult struct {
	Kind   AddResultKind
	Handle types.InstanceHandle
	Reason SampleRejectedReason
}
