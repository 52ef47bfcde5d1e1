package participant

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-dds/config"
	"github.com/dep2p/go-dds/internal/dcps/datareader"
	"github.com/dep2p/go-dds/internal/dcps/datawriter"
	"github.com/dep2p/go-dds/internal/dcps/typesupport"
	"github.com/dep2p/go-dds/internal/metrics"
	"github.com/dep2p/go-dds/internal/rtps/messages"
	"github.com/dep2p/go-dds/internal/rtps/reader"
	"github.com/dep2p/go-dds/internal/rtps/receiver"
	"github.com/dep2p/go-dds/internal/rtps/writer"
	"github.com/dep2p/go-dds/internal/transport"
	"github.com/dep2p/go-dds/pkg/lib/log"
	"github.com/dep2p/go-dds/pkg/qos"
	"github.com/dep2p/go-dds/pkg/types"
)

var logger = log.Logger("participant")

// Options 参与者的外部依赖
type Options struct {
	// Transport 数据报传输（必需）
	Transport transport.Transport

	// Clock 时钟，nil 表示系统时钟
	Clock clock.Clock

	// Reporter 指标，nil 表示不记录
	Reporter metrics.Reporter
}

// endpoint 可被驱动循环执行的 RTPS 端点
type endpoint interface {
	Tick(ctx context.Context) error
	Trigger() <-chan struct{}
}

// localReader 本地读者：RTPS 协议层与接纳层
type localReader struct {
	rtps *reader.StatefulReader
	dcps *datareader.DataReader
}

// Participant 一个 DDS 参与者
type Participant struct {
	cfg       *config.Config
	prefix    types.GuidPrefix
	endian    messages.Endianness
	transport transport.Transport
	receiver  *receiver.Receiver
	clock     clock.Clock
	reporter  metrics.Reporter

	mu        sync.Mutex
	nextKey   uint32
	writers   map[types.GUID]*datawriter.DataWriter
	readers   map[types.GUID]*localReader
	stateless map[types.GUID]*writer.StatelessWriter
	removed   map[types.GUID]chan struct{}

	kick      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	runMu   sync.Mutex
	cancel  context.CancelFunc
	running *errgroup.Group
}

// New 创建参与者
func New(cfg *config.Config, opts Options) (*Participant, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	if opts.Transport == nil {
		return nil, errors.New("participant: transport is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Reporter == nil {
		opts.Reporter = (*metrics.Counter)(nil)
	}

	prefix := types.NewGuidPrefix(types.VendorIDGoDDS)
	if cfg.Participant.GuidPrefix != "" {
		p, err := cfg.Participant.ParseGuidPrefix()
		if err != nil {
			return nil, err
		}
		prefix = p
	}
	endian := messages.BigEndian
	if cfg.Participant.LittleEndian() {
		endian = messages.LittleEndian
	}

	p := &Participant{
		cfg:       cfg,
		prefix:    prefix,
		endian:    endian,
		transport: opts.Transport,
		receiver:  receiver.New(prefix, opts.Reporter),
		clock:     opts.Clock,
		reporter:  opts.Reporter,
		writers:   make(map[types.GUID]*datawriter.DataWriter),
		readers:   make(map[types.GUID]*localReader),
		stateless: make(map[types.GUID]*writer.StatelessWriter),
		removed:   make(map[types.GUID]chan struct{}),
		kick:      make(chan struct{}, 1),
		closed:    make(chan struct{}),
	}
	logger.Info("创建参与者", "prefix", prefix.String(), "domain", cfg.Participant.DomainID,
		"locators", opts.Transport.LocalLocators().Key())
	return p, nil
}

// GuidPrefix 返回参与者 GUID 前缀
func (p *Participant) GuidPrefix() types.GuidPrefix {
	return p.prefix
}

// Config 返回参与者配置
func (p *Participant) Config() *config.Config {
	return p.cfg
}

// LocalLocators 返回本地单播/组播定位器
func (p *Participant) LocalLocators() types.LocatorList {
	return p.transport.LocalLocators()
}

// Reporter 返回指标记录者
func (p *Participant) Reporter() metrics.Reporter {
	return p.reporter
}

func (p *Participant) writerOptions() writer.Options {
	return writer.Options{
		Sender:          p.transport,
		Clock:           p.clock,
		Reporter:        p.reporter,
		MaxDatagramSize: p.cfg.Participant.MaxDatagramSize,
		Endianness:      p.endian,
	}
}

func (p *Participant) writerTiming() writer.Timing {
	return writer.Timing{
		HeartbeatPeriod:         p.cfg.Writer.HeartbeatPeriod.Duration(),
		NackResponseDelay:       p.cfg.Writer.NackResponseDelay.Duration(),
		NackSuppressionDuration: p.cfg.Writer.NackSuppressionDuration.Duration(),
	}
}

// newEntityID 分配实体标识，调用方持有锁
func (p *Participant) newEntityID(kind types.EntityKind) types.EntityID {
	p.nextKey++
	return types.NewEntityID(p.nextKey, kind)
}

// ============================================================================
//                              端点
// ============================================================================

// CreateWriter 创建数据写者
func (p *Participant) CreateWriter(q qos.WriterQos, ts typesupport.TypeSupport) (*datawriter.DataWriter, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	kind := types.EntityKindWriterNoKey
	if ts != nil && ts.HasKey() {
		kind = types.EntityKindWriterWithKey
	}
	guid := types.NewGUID(p.prefix, p.newEntityID(kind))
	dw, err := datawriter.New(datawriter.Config{
		GUID:        guid,
		Qos:         q,
		TypeSupport: ts,
		Timing:      p.writerTiming(),
	}, p.writerOptions())
	if err != nil {
		return nil, err
	}

	p.writers[guid] = dw
	p.receiver.AddWriter(dw.RTPS())
	p.watch(guid, dw.RTPS())
	logger.Debug("创建写者", "guid", guid.String(), "type", ts.TypeName(), "reliability", q.Reliability.String())
	return dw, nil
}

// CreateReader 创建数据读者
func (p *Participant) CreateReader(q qos.ReaderQos, ts typesupport.TypeSupport) (*datareader.DataReader, error) {
	if p.isClosed() {
		return nil, ErrClosed
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	kind := types.EntityKindReaderNoKey
	if ts != nil && ts.HasKey() {
		kind = types.EntityKindReaderWithKey
	}
	guid := types.NewGUID(p.prefix, p.newEntityID(kind))
	dr, err := datareader.New(datareader.Config{GUID: guid, Qos: q, TypeSupport: ts},
		datareader.Options{Clock: p.clock, Reporter: p.reporter})
	if err != nil {
		return nil, err
	}
	rr := reader.NewStatefulReader(reader.Config{
		GUID:        guid,
		Reliability: q.Reliability,
		Timing:      reader.Timing{HeartbeatResponseDelay: p.cfg.Reader.HeartbeatResponseDelay.Duration()},
	}, reader.Options{
		Sender:     p.transport,
		Clock:      p.clock,
		Reporter:   p.reporter,
		Endianness: p.endian,
		Listener:   dr,
	})

	p.readers[guid] = &localReader{rtps: rr, dcps: dr}
	p.receiver.AddReader(rr)
	p.watch(guid, rr)
	logger.Debug("创建读者", "guid", guid.String(), "type", ts.TypeName(), "reliability", q.Reliability.String())
	return dr, nil
}

// CreateStatelessWriter 创建向固定定位器尽力推送的无状态写者
func (p *Participant) CreateStatelessWriter() *writer.StatelessWriter {
	p.mu.Lock()
	defer p.mu.Unlock()

	guid := types.NewGUID(p.prefix, p.newEntityID(types.EntityKindWriterWithKey))
	sw := writer.NewStatelessWriter(guid, p.writerOptions())
	p.stateless[guid] = sw
	p.watch(guid, sw)
	return sw
}

// DeleteWriter 删除写者
func (p *Participant) DeleteWriter(guid types.GUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, isWriter := p.writers[guid]
	_, isStateless := p.stateless[guid]
	if !isWriter && !isStateless {
		return fmt.Errorf("%w: writer %s", ErrUnknownEndpoint, guid)
	}
	delete(p.writers, guid)
	delete(p.stateless, guid)
	p.receiver.RemoveWriter(guid.EntityID)
	p.unwatch(guid)
	return nil
}

// DeleteReader 删除读者
func (p *Participant) DeleteReader(guid types.GUID) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.readers[guid]; !ok {
		return fmt.Errorf("%w: reader %s", ErrUnknownEndpoint, guid)
	}
	delete(p.readers, guid)
	p.receiver.RemoveReader(guid.EntityID)
	p.unwatch(guid)
	return nil
}

// watch 把端点的立即驱动通知转发到参与者，调用方持有锁
func (p *Participant) watch(guid types.GUID, ep endpoint) {
	stop := make(chan struct{})
	p.removed[guid] = stop
	go func() {
		for {
			select {
			case <-ep.Trigger():
				select {
				case p.kick <- struct{}{}:
				default:
				}
			case <-stop:
				return
			case <-p.closed:
				return
			}
		}
	}()
}

func (p *Participant) unwatch(guid types.GUID) {
	if stop, ok := p.removed[guid]; ok {
		close(stop)
		delete(p.removed, guid)
	}
}

// ============================================================================
//                              匹配
// ============================================================================

// WriterInfo 写者的匹配描述
type WriterInfo struct {
	GUID     types.GUID
	Locators types.LocatorList
	Qos      qos.WriterQos
}

// ReaderInfo 读者的匹配描述
type ReaderInfo struct {
	GUID             types.GUID
	Locators         types.LocatorList
	Qos              qos.ReaderQos
	ExpectsInlineQos bool
}

// DescribeWriter 返回本地写者的匹配描述
func (p *Participant) DescribeWriter(dw *datawriter.DataWriter) WriterInfo {
	return WriterInfo{GUID: dw.GUID(), Locators: p.LocalLocators(), Qos: dw.Qos()}
}

// DescribeReader 返回本地读者的匹配描述
func (p *Participant) DescribeReader(dr *datareader.DataReader) ReaderInfo {
	return ReaderInfo{GUID: dr.GUID(), Locators: p.LocalLocators(), Qos: dr.Qos()}
}

// MatchReader 让本地写者匹配一个（远端或本地）读者
func (p *Participant) MatchReader(writerGUID types.GUID, remote ReaderInfo) error {
	p.mu.Lock()
	dw, ok := p.writers[writerGUID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: writer %s", ErrUnknownEndpoint, writerGUID)
	}
	if bad := qos.IsCompatible(dw.Qos(), remote.Qos); len(bad) > 0 {
		return fmt.Errorf("%w: %v", ErrIncompatibleQos, bad)
	}
	dw.RTPS().MatchReader(writer.ProxyConfig{
		RemoteReaderGUID: remote.GUID,
		Locators:         remote.Locators,
		ExpectsInlineQos: remote.ExpectsInlineQos,
	}, remote.Qos.Reliability)
	return nil
}

// UnmatchReader 解除本地写者与读者的匹配
func (p *Participant) UnmatchReader(writerGUID, readerGUID types.GUID) error {
	p.mu.Lock()
	dw, ok := p.writers[writerGUID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: writer %s", ErrUnknownEndpoint, writerGUID)
	}
	dw.RTPS().UnmatchReader(readerGUID)
	return nil
}

// MatchWriter 让本地读者匹配一个（远端或本地）写者
func (p *Participant) MatchWriter(readerGUID types.GUID, remote WriterInfo) error {
	p.mu.Lock()
	lr, ok := p.readers[readerGUID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: reader %s", ErrUnknownEndpoint, readerGUID)
	}
	if bad := qos.IsCompatible(remote.Qos, lr.dcps.Qos()); len(bad) > 0 {
		return fmt.Errorf("%w: %v", ErrIncompatibleQos, bad)
	}
	lr.dcps.AddMatchedWriter(remote.GUID, remote.Qos.OwnershipStrength)
	lr.rtps.MatchWriter(reader.ProxyConfig{
		RemoteWriterGUID: remote.GUID,
		Locators:         remote.Locators,
	}, remote.Qos.Reliability)
	return nil
}

// UnmatchWriter 解除本地读者与写者的匹配
func (p *Participant) UnmatchWriter(readerGUID, writerGUID types.GUID) error {
	p.mu.Lock()
	lr, ok := p.readers[readerGUID]
	p.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: reader %s", ErrUnknownEndpoint, readerGUID)
	}
	lr.rtps.UnmatchWriter(writerGUID)
	lr.dcps.RemoveMatchedWriter(writerGUID)
	return nil
}

// ============================================================================
//                              运行
// ============================================================================

// Start 启动接收循环与驱动循环
//
// 循环在 Stop 之前一直运行，与 ctx 的生命周期无关。
func (p *Participant) Start(_ context.Context) error {
	if p.isClosed() {
		return ErrClosed
	}
	p.runMu.Lock()
	defer p.runMu.Unlock()
	if p.running != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.serve(gctx) })
	g.Go(func() error { return p.tickLoop(gctx) })

	p.cancel = cancel
	p.running = g
	logger.Info("参与者已启动", "prefix", p.prefix.String())
	return nil
}

// Stop 停止循环并关闭传输
func (p *Participant) Stop() error {
	var err error
	p.closeOnce.Do(func() {
		close(p.closed)

		p.runMu.Lock()
		cancel, g := p.cancel, p.running
		p.runMu.Unlock()

		err = p.transport.Close()
		if g != nil {
			cancel()
			err = multierr.Append(err, g.Wait())
		}
		if err != nil {
			logger.Warn("参与者关闭出错", "error", err)
		} else {
			logger.Info("参与者已关闭", "prefix", p.prefix.String())
		}
	})
	return err
}

func (p *Participant) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *Participant) serve(ctx context.Context) error {
	err := p.transport.Serve(ctx, p.receiver.Handle)
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, transport.ErrClosed) {
		return nil
	}
	return fmt.Errorf("receive loop: %w", err)
}

func (p *Participant) tickLoop(ctx context.Context) error {
	ticker := p.clock.Ticker(p.cfg.Participant.TickInterval.Duration())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-p.kick:
		}
		p.Tick(ctx)
	}
}

// Tick 并发驱动所有端点一次
//
// 发送失败只记录日志，下一次驱动会按协议状态重试。
func (p *Participant) Tick(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range p.endpoints() {
		ep := ep
		g.Go(func() error {
			if err := ep.Tick(gctx); err != nil {
				logger.Debug("端点驱动出错", "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// endpoints 按 GUID 排序的端点快照
func (p *Participant) endpoints() []endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	type entry struct {
		guid types.GUID
		ep   endpoint
	}
	entries := make([]entry, 0, len(p.writers)+len(p.readers)+len(p.stateless))
	for g, w := range p.writers {
		entries = append(entries, entry{g, w.RTPS()})
	}
	for g, r := range p.readers {
		entries = append(entries, entry{g, r.rtps})
	}
	for g, w := range p.stateless {
		entries = append(entries, entry{g, w})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		ab, bb := a.guid.Bytes(), b.guid.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})
	out := make([]endpoint, len(entries))
	for i, e := range entries {
		out[i] = e.ep
	}
	return out
}

// WaitIdle 在 timeout 内等待所有写者的变更被确认
func (p *Participant) WaitIdle(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p.mu.Lock()
	writers := make([]*datawriter.DataWriter, 0, len(p.writers))
	for _, w := range p.writers {
		writers = append(writers, w)
	}
	p.mu.Unlock()

	var err error
	for _, w := range writers {
		err = multierr.Append(err, w.WaitForAcknowledgments(ctx))
	}
	return err
}
