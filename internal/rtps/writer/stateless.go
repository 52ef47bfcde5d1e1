package writer

import (
	"context"

	"github.com/dep2p/go-dds/pkg/types"
)

// StatelessWriter 面向裸定位器的尽力而为写者
//
// 不知道远端读者身份，子消息的读者 ID 为 ENTITYID_UNKNOWN，
// 也不携带 InfoDestination。
type StatelessWriter struct {
	core

	locators map[types.Locator]*BestEffortProxy
	order    []types.Locator
}

// NewStatelessWriter 创建无状态写者
func NewStatelessWriter(guid types.GUID, opts Options) *StatelessWriter {
	return &StatelessWriter{
		core:     newCore(guid, opts),
		locators: make(map[types.Locator]*BestEffortProxy),
	}
}

// AddReaderLocator 添加定位器，历史中已有的变更全部标记为未发送
func (w *StatelessWriter) AddReaderLocator(loc types.Locator, expectsInlineQos bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.locators[loc]; ok {
		return
	}
	rl := NewBestEffortProxy(w.guid.EntityID, ProxyConfig{
		RemoteReaderGUID: types.GUID{EntityID: types.EntityIDUnknown},
		Locators:         types.LocatorList{loc},
		ExpectsInlineQos: expectsInlineQos,
	})
	w.history.Range(func(c *types.CacheChange) bool {
		rl.NotifyChange(c.SequenceNumber)
		return true
	})
	w.locators[loc] = rl
	w.order = append(w.order, loc)
	w.notify()
}

// RemoveReaderLocator 移除定位器
func (w *StatelessWriter) RemoveReaderLocator(loc types.Locator) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.locators[loc]; !ok {
		return
	}
	delete(w.locators, loc)
	for i, l := range w.order {
		if l == loc {
			w.order = append(w.order[:i], w.order[i+1:]...)
			break
		}
	}
}

// ReaderLocators 返回定位器（按添加顺序）
func (w *StatelessWriter) ReaderLocators() []types.Locator {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]types.Locator(nil), w.order...)
}

// NewChange 分配序列号、写入历史并标记为对所有定位器未发送
func (w *StatelessWriter) NewChange(kind types.ChangeKind, handle types.InstanceHandle, data []byte, ts *types.Time) *types.CacheChange {
	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.newChange(kind, handle, data, ts)
	for _, rl := range w.locators {
		rl.NotifyChange(c.SequenceNumber)
	}
	w.notify()
	return c
}

// Resend 把历史中的全部变更重新标记为对所有定位器未发送（周期广播）
func (w *StatelessWriter) Resend() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.history.Range(func(c *types.CacheChange) bool {
		for _, rl := range w.locators {
			rl.NotifyChange(c.SequenceNumber)
		}
		return true
	})
	w.notify()
}

// Tick 驱动所有定位器一次并发送产出
func (w *StatelessWriter) Tick(ctx context.Context) error {
	w.mu.Lock()
	now := w.clock.Now()
	var outs []outbound
	for _, loc := range w.order {
		rl := w.locators[loc]
		subs := rl.Produce(now, w.history, w.lastSN)
		if len(subs) == 0 {
			continue
		}
		outs = append(outs, outbound{locators: rl.Locators(), subs: subs})
	}
	dgs := w.build(outs)
	w.mu.Unlock()

	return w.send(ctx, dgs)
}
