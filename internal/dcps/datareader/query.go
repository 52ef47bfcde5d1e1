package datareader

import (
	"errors"
	"fmt"

	"github.com/dep2p/go-dds/internal/dcps/typesupport"
	"github.com/dep2p/go-dds/pkg/types"
)

// ============================================================================
//                              read / take
// ============================================================================

// Read 返回匹配的样本并把它们标记为已读
func (r *DataReader) Read(q Query) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(q, nil)
}

// Take 返回匹配的样本并把它们从读者中移除
func (r *DataReader) Take(q Query) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.take(q, nil)
}

// ReadInstance 只读取指定实例的样本
func (r *DataReader) ReadInstance(handle types.InstanceHandle, q Query) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkInstance(handle); err != nil {
		return nil, err
	}
	return r.read(q, &handle)
}

// TakeInstance 只取走指定实例的样本
func (r *DataReader) TakeInstance(handle types.InstanceHandle, q Query) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkInstance(handle); err != nil {
		return nil, err
	}
	return r.take(q, &handle)
}

// ReadNextInstance 读取句柄大于 previous 的第一个有匹配样本的实例
//
// previous 为 HandleNil 时从最小的句柄开始。
func (r *DataReader) ReadNextInstance(previous types.InstanceHandle, q Query) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextInstance(previous, q, r.read)
}

// TakeNextInstance 取走句柄大于 previous 的第一个有匹配样本的实例
func (r *DataReader) TakeNextInstance(previous types.InstanceHandle, q Query) ([]Sample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nextInstance(previous, q, r.take)
}

func (r *DataReader) nextInstance(previous types.InstanceHandle, q Query,
	op func(Query, *types.InstanceHandle) ([]Sample, error)) ([]Sample, error) {
	h := previous
	first := previous.IsNil()
	for {
		next, ok := r.successor(h, first)
		if !ok {
			return nil, ErrNoData
		}
		samples, err := op(q, &next)
		if !errors.Is(err, ErrNoData) {
			return samples, err
		}
		h, first = next, false
	}
}

// successor 返回大于 h 的最小实例句柄；inclusive 为 true 时允许等于 h
func (r *DataReader) successor(h types.InstanceHandle, inclusive bool) (types.InstanceHandle, bool) {
	var best types.InstanceHandle
	found := false
	for cand := range r.instances {
		if cand.Less(h) || (cand == h && !inclusive) {
			continue
		}
		if !found || cand.Less(best) {
			best, found = cand, true
		}
	}
	return best, found
}

func (r *DataReader) checkInstance(handle types.InstanceHandle) error {
	if _, ok := r.instances[handle]; !ok {
		return fmt.Errorf("%w: unknown instance %s", ErrBadParameter, handle)
	}
	return nil
}

func (r *DataReader) read(q Query, handle *types.InstanceHandle) ([]Sample, error) {
	idx, out, err := r.collect(q, handle)
	if err != nil {
		return nil, err
	}
	for _, i := range idx {
		r.samples[i].state = SampleStateRead
	}
	return out, nil
}

func (r *DataReader) take(q Query, handle *types.InstanceHandle) ([]Sample, error) {
	idx, out, err := r.collect(q, handle)
	if err != nil {
		return nil, err
	}
	// 逆序删除保持前面的下标有效
	for k := len(idx) - 1; k >= 0; k-- {
		i := idx[k]
		r.samples = append(r.samples[:i], r.samples[i+1:]...)
	}
	return out, nil
}

// collect 构造结果集合并计算排名，返回样本在列表中的下标
//
// 结果中出现的实例被标记为 NotNew。
func (r *DataReader) collect(q Query, handle *types.InstanceHandle) ([]int, []Sample, error) {
	if q.MaxSamples < -1 {
		return nil, nil, fmt.Errorf("%w: max_samples %d", ErrBadParameter, q.MaxSamples)
	}

	var idx []int
	var out []Sample
	for i, s := range r.samples {
		if q.MaxSamples > 0 && len(out) == q.MaxSamples {
			break
		}
		if handle != nil && s.handle != *handle {
			continue
		}
		inst := r.instances[s.handle]
		if !q.matches(s, inst) {
			continue
		}
		sourceTS := types.TimeInvalid
		if s.sourceTS != nil {
			sourceTS = *s.sourceTS
		}
		idx = append(idx, i)
		out = append(out, Sample{
			Data: s.data,
			Info: SampleInfo{
				SampleState:              s.state,
				ViewState:                inst.view,
				InstanceState:            inst.state,
				DisposedGenerationCount:  s.disposedGeneration,
				NoWritersGenerationCount: s.noWritersGeneration,
				AbsoluteGenerationRank:   inst.generation() - s.generation(),
				SourceTimestamp:          sourceTS,
				ReceptionTimestamp:       s.reception,
				InstanceHandle:           s.handle,
				PublicationHandle:        s.writer.InstanceHandle(),
				ValidData:                s.kind.IsAlive(),
			},
		})
	}
	if len(out) == 0 {
		return nil, nil, ErrNoData
	}

	// 同一实例：以结果中最新样本为基准计算 generation_rank，sample_rank 为其后同实例样本数
	latest := make(map[types.InstanceHandle]int32)
	after := make(map[types.InstanceHandle]int32)
	for k := len(out) - 1; k >= 0; k-- {
		info := &out[k].Info
		h := info.InstanceHandle
		if _, ok := latest[h]; !ok {
			latest[h] = info.AbsoluteGenerationRank
		}
		info.GenerationRank = info.AbsoluteGenerationRank - latest[h]
		info.SampleRank = after[h]
		after[h]++
	}
	for h := range latest {
		r.instances[h].view = ViewStateNotNew
	}
	return idx, out, nil
}

// ============================================================================
//                              实例查找
// ============================================================================

// LookupInstance 由大端序列化键查找实例句柄
func (r *DataReader) LookupInstance(serializedKey []byte) (types.InstanceHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := types.HandleNil
	if r.resolver.TypeSupport().HasKey() {
		h = typesupport.KeyHash(serializedKey)
	}
	_, ok := r.instances[h]
	return h, ok
}

// Instances 返回已知实例句柄（升序）
func (r *DataReader) Instances() []types.InstanceHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.InstanceHandle, 0, len(r.instances))
	h, first := types.HandleNil, true
	for {
		next, ok := r.successor(h, first)
		if !ok {
			return out
		}
		out = append(out, next)
		h, first = next, false
	}
}

// InstanceState 返回实例的视图状态与实例状态
func (r *DataReader) InstanceState(handle types.InstanceHandle) (ViewState, InstanceState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[handle]
	if !ok {
		return 0, 0, false
	}
	return inst.view, inst.state, true
}
