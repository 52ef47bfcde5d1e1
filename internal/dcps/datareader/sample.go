package datareader

import "github.com/dep2p/go-dds/pkg/types"

// SampleInfo 样本的元信息
type SampleInfo struct {
	SampleState   SampleState
	ViewState     ViewState
	InstanceState InstanceState

	// DisposedGenerationCount 样本接收时实例的 disposed 代数
	DisposedGenerationCount int32
	// NoWritersGenerationCount 样本接收时实例的 no_writers 代数
	NoWritersGenerationCount int32

	// SampleRank 结果中同一实例更晚的样本数
	SampleRank int32
	// GenerationRank 与结果中同一实例最新样本相差的代数
	GenerationRank int32
	// AbsoluteGenerationRank 与实例当前代数相差的代数
	AbsoluteGenerationRank int32

	// SourceTimestamp 源时间戳，缺失时为 types.TimeInvalid
	SourceTimestamp types.Time
	// ReceptionTimestamp 接收时间
	ReceptionTimestamp types.Time

	InstanceHandle    types.InstanceHandle
	PublicationHandle types.InstanceHandle

	// ValidData 为 false 时样本只表示实例状态变化，Data 为 nil
	ValidData bool
}

// Sample read/take 返回的样本
type Sample struct {
	// Data 序列化样本（含封装头）
	Data []byte
	Info SampleInfo
}

// stored 读者样本列表中的一项
type stored struct {
	kind      types.ChangeKind
	writer    types.GUID
	handle    types.InstanceHandle
	data      []byte
	sourceTS  *types.Time
	reception types.Time
	state     SampleState

	disposedGeneration  int32
	noWritersGeneration int32
}

func (s *stored) generation() int32 {
	return s.disposedGeneration + s.noWritersGeneration
}

// ============================================================================
//                              Query
// ============================================================================

// Query read/take 的筛选条件
//
// 掩码为 0 表示不限制该状态。MaxSamples <= 0 表示不限数量。
type Query struct {
	MaxSamples     int
	SampleStates   SampleState
	ViewStates     ViewState
	InstanceStates InstanceState
}

// AnyQuery 返回不做任何限制的查询
func AnyQuery() Query {
	return Query{
		SampleStates:   AnySampleState,
		ViewStates:     AnyViewState,
		InstanceStates: AnyInstanceState,
	}
}

func (q Query) matches(s *stored, inst *instance) bool {
	return (q.SampleStates == 0 || q.SampleStates&s.state != 0) &&
		(q.ViewStates == 0 || q.ViewStates&inst.view != 0) &&
		(q.InstanceStates == 0 || q.InstanceStates&inst.state != 0)
}
