package datawriter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-dds/internal/dcps/typesupport"
	"github.com/dep2p/go-dds/internal/rtps/writer"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("dcps/datawriter")

// ackPollInterval WaitForAcknowledgments 的检查周期
const ackPollInterval = 10 * time.Millisecond

// Config 数据写者配置
type Config struct {
	// GUID 写者 GUID
	GUID types.GUID

	// Qos 写者 QoS 快照
	Qos qos.WriterQos

	// TypeSupport 主题类型
	TypeSupport typesupport.TypeSupport

	// Timing 可靠协议定时参数
	Timing writer.Timing

	// ResolverCacheSize 实例句柄记忆化条目数，<= 0 表示默认值
	ResolverCacheSize int
}

// instanceInfo 写者对一个实例的记录
type instanceInfo struct {
	key        []byte
	registered bool
}

// DataWriter 写者侧的样本发布
type DataWriter struct {
	mu sync.Mutex

	qos      qos.WriterQos
	ts       typesupport.TypeSupport
	resolver *typesupport.Resolver
	clock    clock.Clock
	rtps     *writer.StatefulWriter

	instances map[types.InstanceHandle]*instanceInfo
}

// New 创建数据写者
func New(cfg Config, opts writer.Options) (*DataWriter, error) {
	if cfg.TypeSupport == nil {
		return nil, fmt.Errorf("%w: type support is required", ErrBadParameter)
	}
	if err := cfg.Qos.Validate(); err != nil {
		return nil, err
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &DataWriter{
		qos:      cfg.Qos,
		ts:       cfg.TypeSupport,
		resolver: typesupport.NewResolver(cfg.TypeSupport, cfg.ResolverCacheSize),
		clock:    opts.Clock,
		rtps: writer.NewStatefulWriter(writer.Config{
			GUID:        cfg.GUID,
			Reliability: cfg.Qos.Reliability,
			Timing:      cfg.Timing,
		}, opts),
		instances: make(map[types.InstanceHandle]*instanceInfo),
	}, nil
}

// GUID 返回写者 GUID
func (w *DataWriter) GUID() types.GUID {
	return w.rtps.GUID()
}

// Qos 返回写者 QoS
func (w *DataWriter) Qos() qos.WriterQos {
	return w.qos
}

// TypeSupport 返回主题类型
func (w *DataWriter) TypeSupport() typesupport.TypeSupport {
	return w.ts
}

// RTPS 返回底层 RTPS 写者，供参与者匹配读者与驱动协议
func (w *DataWriter) RTPS() *writer.StatefulWriter {
	return w.rtps
}

// ============================================================================
//                              写入
// ============================================================================

// Write 以当前时间为源时间戳写入序列化样本
func (w *DataWriter) Write(payload []byte) (types.InstanceHandle, error) {
	return w.WriteWithTimestamp(payload, w.clock.Now())
}

// WriteWithTimestamp 以指定源时间戳写入序列化样本，未注册的实例被隐式注册
func (w *DataWriter) WriteWithTimestamp(payload []byte, at time.Time) (types.InstanceHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	handle, err := w.resolver.FromPayload(payload)
	if err != nil {
		return types.HandleNil, fmt.Errorf("%w: %v", ErrBadParameter, err)
	}
	if err := w.register(handle, payload); err != nil {
		return handle, err
	}
	if err := w.publish(types.ChangeKindAlive, handle, payload, at); err != nil {
		return handle, err
	}
	return handle, nil
}

// RegisterInstance 注册样本所属实例并返回句柄，不产生变更
func (w *DataWriter) RegisterInstance(payload []byte) (types.InstanceHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	handle, err := w.resolver.FromPayload(payload)
	if err != nil {
		return types.HandleNil, fmt.Errorf("%w: %v", ErrBadParameter, err)
	}
	return handle, w.register(handle, payload)
}

// Dispose 销毁实例
func (w *DataWriter) Dispose(handle types.InstanceHandle) error {
	return w.lifecycle(types.ChangeKindNotAliveDisposed, handle, false)
}

// UnregisterInstance 注销实例，此后写入会重新注册
func (w *DataWriter) UnregisterInstance(handle types.InstanceHandle) error {
	return w.lifecycle(types.ChangeKindNotAliveUnregistered, handle, true)
}

// LookupInstance 由大端序列化键查找已注册实例
func (w *DataWriter) LookupInstance(serializedKey []byte) (types.InstanceHandle, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	h := types.HandleNil
	if w.ts.HasKey() {
		h = typesupport.KeyHash(serializedKey)
	}
	info, ok := w.instances[h]
	return h, ok && info.registered
}

func (w *DataWriter) lifecycle(kind types.ChangeKind, handle types.InstanceHandle, unregister bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	info, ok := w.instances[handle]
	if !ok || !info.registered {
		return fmt.Errorf("%w: %s %s", ErrUnknownInstance, kind, handle)
	}
	if err := w.publish(kind, handle, typesupport.KeyPayload(info.key), w.clock.Now()); err != nil {
		return err
	}
	if unregister {
		info.registered = false
	}
	return nil
}

// register 记录实例，必要时检查 max_instances
func (w *DataWriter) register(handle types.InstanceHandle, payload []byte) error {
	if info, ok := w.instances[handle]; ok {
		info.registered = true
		return nil
	}
	limit := w.qos.ResourceLimits.MaxInstances
	if limit != qos.LengthUnlimited && len(w.instances) >= limit {
		w.reclaim()
		if len(w.instances) >= limit {
			return fmt.Errorf("%w: max_instances %d", ErrOutOfResources, limit)
		}
	}
	key, err := w.ts.SerializedKey(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadParameter, err)
	}
	w.instances[handle] = &instanceInfo{key: key, registered: true}
	return nil
}

// reclaim 回收已注销且历史中不再有变更的实例
func (w *DataWriter) reclaim() {
	inHistory := make(map[types.InstanceHandle]struct{})
	for _, c := range w.rtps.Changes() {
		inHistory[c.InstanceHandle] = struct{}{}
	}
	for h, info := range w.instances {
		if _, ok := inHistory[h]; !ok && !info.registered {
			delete(w.instances, h)
		}
	}
}

// ============================================================================
//                              写者侧历史
// ============================================================================

// publish 执行写者侧历史策略后交给 RTPS 写者
func (w *DataWriter) publish(kind types.ChangeKind, handle types.InstanceHandle, data []byte, at time.Time) error {
	if w.qos.History.Kind == qos.KeepLast {
		w.evict(handle)
	} else if err := w.reserve(handle); err != nil {
		return err
	}
	ts := types.TimeFromGo(at)
	c := w.rtps.NewChange(kind, handle, data, &ts)
	logger.Debug("发布变更", "writer", w.rtps.GUID().String(), "seq", int64(c.SequenceNumber),
		"kind", kind.String(), "instance", handle.String())
	return nil
}

// evict KeepLast：实例已有 depth 个变更时移除最旧的
func (w *DataWriter) evict(handle types.InstanceHandle) {
	var ofInstance []types.SequenceNumber
	for _, c := range w.rtps.Changes() {
		if c.InstanceHandle == handle {
			ofInstance = append(ofInstance, c.SequenceNumber)
		}
	}
	excess := len(ofInstance) - w.qos.History.Depth + 1
	if excess <= 0 {
		return
	}
	drop := make(map[types.SequenceNumber]struct{}, excess)
	for _, sn := range ofInstance[:excess] {
		drop[sn] = struct{}{}
	}
	w.rtps.RemoveChange(func(c *types.CacheChange) bool {
		_, ok := drop[c.SequenceNumber]
		return ok
	})
}

// reserve KeepAll：检查 max_samples 与 max_samples_per_instance
//
// 超限时先移除所有读者都已确认的变更再重新检查。
func (w *DataWriter) reserve(handle types.InstanceHandle) error {
	reason := w.overLimit(handle)
	if reason == "" {
		return nil
	}
	if n := w.rtps.RemoveAcknowledged(); n > 0 {
		logger.Debug("回收已确认变更", "writer", w.rtps.GUID().String(), "count", n)
		reason = w.overLimit(handle)
	}
	if reason != "" {
		return fmt.Errorf("%w: %s", ErrOutOfResources, reason)
	}
	return nil
}

func (w *DataWriter) overLimit(handle types.InstanceHandle) string {
	limits := w.qos.ResourceLimits
	changes := w.rtps.Changes()
	if limits.MaxSamples != qos.LengthUnlimited && len(changes) >= limits.MaxSamples {
		return fmt.Sprintf("max_samples %d", limits.MaxSamples)
	}
	if limits.MaxSamplesPerInstance == qos.LengthUnlimited {
		return ""
	}
	n := 0
	for _, c := range changes {
		if c.InstanceHandle == handle {
			n++
		}
	}
	if n >= limits.MaxSamplesPerInstance {
		return fmt.Sprintf("max_samples_per_instance %d", limits.MaxSamplesPerInstance)
	}
	return ""
}

// ============================================================================
//                              确认
// ============================================================================

// WaitForAcknowledgments 等待当前所有变更被所有可靠读者确认
func (w *DataWriter) WaitForAcknowledgments(ctx context.Context) error {
	last := w.rtps.LastSequenceNumber()
	if w.rtps.IsAckedByAll(last) {
		return nil
	}
	ticker := w.clock.Ticker(ackPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if w.rtps.IsAckedByAll(last) {
				return nil
			}
		}
	}
}
