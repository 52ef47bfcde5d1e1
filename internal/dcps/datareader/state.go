package datareader

import "github.com/dep2p/go-dds/pkg/types"

// ============================================================================
//                              样本 / 视图 / 实例状态
// ============================================================================

// SampleState 样本状态，也用作查询掩码
type SampleState uint8

const (
	// SampleStateRead 已被 read 返回过
	SampleStateRead SampleState = 1 << iota
	// SampleStateNotRead 尚未被返回过
	SampleStateNotRead

	// AnySampleState 任意样本状态
	AnySampleState = SampleStateRead | SampleStateNotRead
)

// String 返回样本状态字符串
func (s SampleState) String() string {
	switch s {
	case SampleStateRead:
		return "read"
	case SampleStateNotRead:
		return "not_read"
	default:
		return "mask"
	}
}

// ViewState 实例视图状态，也用作查询掩码
type ViewState uint8

const (
	// ViewStateNew 实例首次出现或重新存活后尚未被访问
	ViewStateNew ViewState = 1 << iota
	// ViewStateNotNew 已被访问
	ViewStateNotNew

	// AnyViewState 任意视图状态
	AnyViewState = ViewStateNew | ViewStateNotNew
)

// String 返回视图状态字符串
func (s ViewState) String() string {
	switch s {
	case ViewStateNew:
		return "new"
	case ViewStateNotNew:
		return "not_new"
	default:
		return "mask"
	}
}

// InstanceState 实例状态，也用作查询掩码
type InstanceState uint8

const (
	// InstanceStateAlive 存活
	InstanceStateAlive InstanceState = 1 << iota
	// InstanceStateNotAliveDisposed 被销毁
	InstanceStateNotAliveDisposed
	// InstanceStateNotAliveNoWriters 没有写者
	InstanceStateNotAliveNoWriters

	// AnyInstanceState 任意实例状态
	AnyInstanceState = InstanceStateAlive | InstanceStateNotAliveDisposed | InstanceStateNotAliveNoWriters
	// NotAliveInstanceState 任意非存活状态
	NotAliveInstanceState = InstanceStateNotAliveDisposed | InstanceStateNotAliveNoWriters
)

// String 返回实例状态字符串
func (s InstanceState) String() string {
	switch s {
	case InstanceStateAlive:
		return "alive"
	case InstanceStateNotAliveDisposed:
		return "not_alive_disposed"
	case InstanceStateNotAliveNoWriters:
		return "not_alive_no_writers"
	default:
		return "mask"
	}
}

// ============================================================================
//                              实例记录
// ============================================================================

// instance 读者对一个实例的跟踪状态
type instance struct {
	view  ViewState
	state InstanceState

	disposedGeneration  int32
	noWritersGeneration int32
}

func newInstance() *instance {
	return &instance{view: ViewStateNew, state: InstanceStateAlive}
}

// update 按变更种类推进实例状态与代数计数
//
// 从非存活状态重新存活时进入新的一代，视图状态回到 New。
func (i *instance) update(kind types.ChangeKind) {
	switch i.state {
	case InstanceStateAlive:
		switch kind {
		case types.ChangeKindNotAliveDisposed, types.ChangeKindNotAliveDisposedUnregistered:
			i.state = InstanceStateNotAliveDisposed
		case types.ChangeKindNotAliveUnregistered:
			i.state = InstanceStateNotAliveNoWriters
		}
	case InstanceStateNotAliveDisposed:
		if kind.IsAlive() {
			i.state = InstanceStateAlive
			i.disposedGeneration++
			i.view = ViewStateNew
		}
	case InstanceStateNotAliveNoWriters:
		if kind.IsAlive() {
			i.state = InstanceStateAlive
			i.noWritersGeneration++
			i.view = ViewStateNew
		}
	}
}

func (i *instance) generation() int32 {
	return i.disposedGeneration + i.noWritersGeneration
}
