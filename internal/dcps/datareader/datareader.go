package datareader

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dds/internal/dcps/typesupport"
	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("dcps/datareader")

// Config 数据读者配置
type Config struct {
	// GUID 读者 GUID
	GUID types.GUID

	// Qos 读者 QoS 快照
	Qos qos.ReaderQos

	// TypeSupport 主题类型
	TypeSupport typesupport.TypeSupport

	// ResolverCacheSize 实例句柄记忆化条目数，<= 0 表示默认值
	ResolverCacheSize int
}

// Options 数据读者的公共依赖
type Options struct {
	// Clock 时钟，nil 表示系统时钟
	Clock clock.Clock

	// Reporter 指标，nil 表示不记录
	Reporter metrics.Reporter
}

// owner EXCLUSIVE 所有权记录
type owner struct {
	writer   types.GUID
	strength int32
}

// DataReader 读者侧的样本接纳与视图
type DataReader struct {
	mu sync.Mutex

	guid     types.GUID
	qos      qos.ReaderQos
	resolver *typesupport.Resolver
	clock    clock.Clock
	reporter metrics.Reporter

	samples      []*stored
	instances    map[types.InstanceHandle]*instance
	lastReceived map[types.InstanceHandle]time.Time

	strengths map[types.GUID]int32
	owners    map[types.InstanceHandle]owner

	rejected SampleRejectedStatus
	lost     SampleLostStatus

	available chan struct{}
}

// New 创建数据读者
func New(cfg Config, opts Options) (*DataReader, error) {
	if cfg.TypeSupport == nil {
		return nil, fmt.Errorf("%w: type support is required", ErrBadParameter)
	}
	if err := cfg.Qos.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Reporter == nil {
		opts.Reporter = (*metrics.Counter)(nil)
	}
	return &DataReader{
		guid:         cfg.GUID,
		qos:          cfg.Qos,
		resolver:     typesupport.NewResolver(cfg.TypeSupport, cfg.ResolverCacheSize),
		clock:        opts.Clock,
		reporter:     opts.Reporter,
		instances:    make(map[types.InstanceHandle]*instance),
		lastReceived: make(map[types.InstanceHandle]time.Time),
		strengths:    make(map[types.GUID]int32),
		owners:       make(map[types.InstanceHandle]owner),
		available:    make(chan struct{}, 1),
	}, nil
}

// GUID 返回读者 GUID
func (r *DataReader) GUID() types.GUID {
	return r.guid
}

// Qos 返回读者 QoS
func (r *DataReader) Qos() qos.ReaderQos {
	return r.qos
}

// TypeSupport 返回主题类型
func (r *DataReader) TypeSupport() typesupport.TypeSupport {
	return r.resolver.TypeSupport()
}

// DataAvailable 返回新样本到达的通知通道
func (r *DataReader) DataAvailable() <-chan struct{} {
	return r.available
}

// ============================================================================
//                              匹配写者
// ============================================================================

// AddMatchedWriter 记录匹配写者及其所有权强度
func (r *DataReader) AddMatchedWriter(writer types.GUID, strength int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strengths[writer] = strength
}

// RemoveMatchedWriter 移除匹配写者，释放它持有的实例所有权
func (r *DataReader) RemoveMatchedWriter(writer types.GUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.strengths, writer)
	for h, o := range r.owners {
		if o.writer == writer {
			delete(r.owners, h)
		}
	}
}

// ============================================================================
//                              接纳
// ============================================================================

// AddChange 接纳一个变更
//
// 拒收与丢弃不是错误，通过 AddResult 返回。实例句柄无法解析、
// 生命周期事件引用未知实例、按源时间戳排序时缺少时间戳会返回错误，
// 读者状态不变。
func (r *DataReader) AddChange(c *types.CacheChange) (AddResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, err := r.resolveHandle(c)
	if err != nil {
		return AddResult{}, err
	}
	inst, known := r.instances[handle]
	if !c.Kind.IsAlive() && !known {
		return AddResult{}, fmt.Errorf("%w: %s for %s", ErrUnknownInstance, c.Kind, handle)
	}
	if r.qos.DestinationOrder == qos.BySourceTimestamp && c.SourceTimestamp == nil {
		return AddResult{}, fmt.Errorf("%w: change %d from %s", ErrMissingSourceTimestamp, c.SequenceNumber, c.WriterGUID)
	}

	if r.qos.Ownership == qos.Exclusive && !r.arbitrate(handle, c.WriterGUID) {
		logger.Debug("所有权仲裁丢弃样本", "reader", r.guid.String(), "writer", c.WriterGUID.String(), "instance", handle.String())
		return AddResult{Kind: NotAdded, Handle: handle}, nil
	}
	if !c.Kind.IsAlive() {
		delete(r.owners, handle)
	}

	if !r.passesTimeFilter(handle, c.SourceTimestamp) {
		return AddResult{Kind: NotAdded, Handle: handle}, nil
	}

	if reason := r.checkLimits(handle); reason != NotRejected {
		r.rejected.TotalCount++
		r.rejected.TotalCountChange++
		r.rejected.LastReason = reason
		r.rejected.LastInstanceHandle = handle
		r.reporter.LogRejectedSample(reason.String())
		logger.Debug("拒收样本", "reader", r.guid.String(), "instance", handle.String(), "reason", reason.String())
		return AddResult{Kind: Rejected, Handle: handle, Reason: reason}, nil
	}

	if r.qos.History.Kind == qos.KeepLast {
		r.evictOldest(handle)
	}

	if !known {
		inst = newInstance()
		r.instances[handle] = inst
	}
	inst.update(c.Kind)

	now := r.clock.Now()
	var data []byte
	if c.Kind.IsAlive() {
		data = c.Data
	}
	r.samples = append(r.samples, &stored{
		kind:                c.Kind,
		writer:              c.WriterGUID,
		handle:              handle,
		data:                data,
		sourceTS:            c.SourceTimestamp,
		reception:           types.TimeFromGo(now),
		state:               SampleStateNotRead,
		disposedGeneration:  inst.disposedGeneration,
		noWritersGeneration: inst.noWritersGeneration,
	})
	r.sortSamples()
	r.lastReceived[handle] = now

	select {
	case r.available <- struct{}{}:
	default:
	}
	return AddResult{Kind: Added, Handle: handle}, nil
}

// resolveHandle 解析实例句柄
func (r *DataReader) resolveHandle(c *types.CacheChange) (types.InstanceHandle, error) {
	var (
		h   types.InstanceHandle
		err error
	)
	switch {
	case c.Kind.IsAlive():
		h, err = r.resolver.FromPayload(c.Data)
	case !c.InstanceHandle.IsNil():
		h = c.InstanceHandle
	default:
		h, err = r.resolver.FromKeyPayload(c.Data)
	}
	if err != nil {
		return types.HandleNil, fmt.Errorf("resolve instance of change %d from %s: %w", c.SequenceNumber, c.WriterGUID, err)
	}
	return h, nil
}

// arbitrate EXCLUSIVE 所有权仲裁，返回是否接受该写者的样本
//
// 当前所有者以外的写者只有强度严格更高时才能接管。
func (r *DataReader) arbitrate(handle types.InstanceHandle, writer types.GUID) bool {
	strength := r.strengths[writer]
	if cur, ok := r.owners[handle]; ok && cur.writer != writer && strength <= cur.strength {
		return false
	}
	r.owners[handle] = owner{writer: writer, strength: strength}
	return true
}

// passesTimeFilter 与同一实例中不晚于 ts 的最近样本比较源时间间隔
func (r *DataReader) passesTimeFilter(handle types.InstanceHandle, ts *types.Time) bool {
	sep := r.qos.TimeBasedFilter.MinimumSeparation
	if sep <= 0 || ts == nil {
		return true
	}
	var closest *types.Time
	for _, s := range r.samples {
		if s.handle != handle || s.sourceTS == nil || s.sourceTS.Compare(*ts) > 0 {
			continue
		}
		if closest == nil || s.sourceTS.Compare(*closest) > 0 {
			closest = s.sourceTS
		}
	}
	return closest == nil || ts.Sub(*closest) >= sep
}

// checkLimits 按 max_samples、max_instances、max_samples_per_instance 的顺序检查资源限制
func (r *DataReader) checkLimits(handle types.InstanceHandle) SampleRejectedReason {
	limits := r.qos.ResourceLimits

	alive, ofInstance := 0, 0
	present := make(map[types.InstanceHandle]struct{})
	for _, s := range r.samples {
		if s.kind.IsAlive() {
			alive++
		}
		if s.handle == handle {
			ofInstance++
		}
		present[s.handle] = struct{}{}
	}
	_, isPresent := present[handle]

	switch {
	case limits.MaxSamples != qos.LengthUnlimited && alive >= limits.MaxSamples:
		return RejectedBySamplesLimit
	case limits.MaxInstances != qos.LengthUnlimited && !isPresent && len(present) >= limits.MaxInstances:
		return RejectedByInstancesLimit
	case limits.MaxSamplesPerInstance != qos.LengthUnlimited && ofInstance >= limits.MaxSamplesPerInstance:
		return RejectedBySamplesPerInstanceLimit
	default:
		return NotRejected
	}
}

// evictOldest 实例已有 depth 个存活样本时移除列表中第一个
func (r *DataReader) evictOldest(handle types.InstanceHandle) {
	first, count := -1, 0
	for i, s := range r.samples {
		if s.handle != handle || !s.kind.IsAlive() {
			continue
		}
		if first < 0 {
			first = i
		}
		count++
	}
	if first >= 0 && count >= r.qos.History.Depth {
		r.samples = slices.Delete(r.samples, first, first+1)
	}
}

// sortSamples 按 DestinationOrder 稳定排序
func (r *DataReader) sortSamples() {
	if r.qos.DestinationOrder == qos.BySourceTimestamp {
		slices.SortStableFunc(r.samples, func(a, b *stored) int {
			return a.sourceTS.Compare(*b.sourceTS)
		})
		return
	}
	slices.SortStableFunc(r.samples, func(a, b *stored) int {
		return a.reception.Compare(b.reception)
	})
}

// ============================================================================
//                              状态
// ============================================================================

// SampleRejectedStatus 返回拒收状态并清零变化量
func (r *DataReader) SampleRejectedStatus() SampleRejectedStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.rejected
	r.rejected.TotalCountChange = 0
	return s
}

// SampleLostStatus 返回丢失状态并清零变化量
func (r *DataReader) SampleLostStatus() SampleLostStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lost
	r.lost.TotalCountChange = 0
	return s
}

// LastReceived 返回实例最近一次接纳样本的时间，供外部截止期监控使用
func (r *DataReader) LastReceived(handle types.InstanceHandle) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.lastReceived[handle]
	return t, ok
}

// Len 返回样本列表长度
func (r *DataReader) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

// ============================================================================
//                              RTPS 读者回调
// ============================================================================

// OnChange 接收 RTPS 读者释放的变更
func (r *DataReader) OnChange(c *types.CacheChange) {
	if _, err := r.AddChange(c); err != nil {
		logger.Debug("变更未被接纳", "reader", r.guid.String(), "writer", c.WriterGUID.String(),
			"seq", int64(c.SequenceNumber), "error", err)
	}
}

// OnSamplesLost 记录确认丢失的样本
func (r *DataReader) OnSamplesLost(writer types.GUID, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 {
		return
	}
	// 计数器饱和而不回绕
	r.lost.TotalCount = saturatingAdd(r.lost.TotalCount, n)
	r.lost.TotalCountChange = saturatingAdd(r.lost.TotalCountChange, n)
	logger.Debug("样本丢失", "reader", r.guid.String(), "writer", writer.String(), "count", n)
}

func saturatingAdd(total int32, n int) int32 {
	if sum := int64(total) + int64(n); sum < math.MaxInt32 {
		return int32(sum)
	}
	return math.MaxInt32
}
