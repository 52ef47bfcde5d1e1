package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Direction 收发方向
type Direction string

const (
	// Sent 发送
	Sent Direction = "sent"
	// Received 接收
	Received Direction = "received"
)

// Reporter 协议指标记录接口
type Reporter interface {
	// LogSentDatagram 记录一个发出的数据报
	LogSentDatagram(bytes int64)

	// LogRecvDatagram 记录一个收到的数据报
	LogRecvDatagram(bytes int64)

	// LogSubmessage 记录一个收发的子消息
	LogSubmessage(dir Direction, kind string)

	// LogDecodeError 记录一次解码失败（被丢弃的子消息或数据报）
	LogDecodeError()

	// LogSendError 记录一次发送失败
	LogSendError()

	// LogRejectedSample 记录一次样本拒收
	LogRejectedSample(reason string)

	// Totals 返回当前统计快照
	Totals() Stats
}

var _ Reporter = (*Counter)(nil)

// Stats 统计快照
type Stats struct {
	BytesIn      int64
	BytesOut     int64
	RateIn       float64 // 入站速率（字节/秒）
	RateOut      float64 // 出站速率（字节/秒）
	DatagramsIn  int64
	DatagramsOut int64
	DecodeErrors int64
	SendErrors   int64
	Submessages  map[Direction]map[string]int64
	Rejections   map[string]int64
}

// Counter Reporter 的实现
type Counter struct {
	bytesIn      atomic.Int64
	bytesOut     atomic.Int64
	datagramsIn  atomic.Int64
	datagramsOut atomic.Int64
	decodeErrors atomic.Int64
	sendErrors   atomic.Int64

	rateIn  *RateMeter
	rateOut *RateMeter

	mu          sync.Mutex
	submessages map[Direction]map[string]int64
	rejections  map[string]int64

	prom *promCollectors
}

type promCollectors struct {
	bytes        *prometheus.CounterVec
	datagrams    *prometheus.CounterVec
	submessages  *prometheus.CounterVec
	decodeErrors prometheus.Counter
	sendErrors   prometheus.Counter
	rejections   *prometheus.CounterVec
}

// NewCounter 创建计数器
//
// reg 非 nil 时同时注册 Prometheus 指标（命名空间 namespace）。
func NewCounter(clk clock.Clock, reg prometheus.Registerer, namespace string) *Counter {
	c := &Counter{
		rateIn:      NewRateMeter(clk),
		rateOut:     NewRateMeter(clk),
		submessages: map[Direction]map[string]int64{Sent: {}, Received: {}},
		rejections:  make(map[string]int64),
	}
	if reg != nil {
		c.prom = newPromCollectors(reg, namespace)
	}
	return c
}

func newPromCollectors(reg prometheus.Registerer, namespace string) *promCollectors {
	f := promauto.With(reg)
	return &promCollectors{
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagram_bytes_total",
			Help:      "Datagram bytes by direction",
		}, []string{"direction"}),
		datagrams: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datagrams_total",
			Help:      "Datagrams by direction",
		}, []string{"direction"}),
		submessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submessages_total",
			Help:      "Submessages by direction and kind",
		}, []string{"direction", "kind"}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Dropped malformed datagrams and submessages",
		}),
		sendErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_errors_total",
			Help:      "Failed datagram sends",
		}),
		rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_samples_total",
			Help:      "Samples rejected by reader resource limits",
		}, []string{"reason"}),
	}
}

// LogSentDatagram 实现 Reporter
func (c *Counter) LogSentDatagram(bytes int64) {
	if c == nil {
		return
	}
	c.bytesOut.Add(bytes)
	c.datagramsOut.Add(1)
	c.rateOut.Add(bytes)
	if c.prom != nil {
		c.prom.bytes.WithLabelValues(string(Sent)).Add(float64(bytes))
		c.prom.datagrams.WithLabelValues(string(Sent)).Inc()
	}
}

// LogRecvDatagram 实现 Reporter
func (c *Counter) LogRecvDatagram(bytes int64) {
	if c == nil {
		return
	}
	c.bytesIn.Add(bytes)
	c.datagramsIn.Add(1)
	c.rateIn.Add(bytes)
	if c.prom != nil {
		c.prom.bytes.WithLabelValues(string(Received)).Add(float64(bytes))
		c.prom.datagrams.WithLabelValues(string(Received)).Inc()
	}
}

// LogSubmessage 实现 Reporter
func (c *Counter) LogSubmessage(dir Direction, kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.submessages[dir][kind]++
	c.mu.Unlock()
	if c.prom != nil {
		c.prom.submessages.WithLabelValues(string(dir), kind).Inc()
	}
}

// LogDecodeError 实现 Reporter
func (c *Counter) LogDecodeError() {
	if c == nil {
		return
	}
	c.decodeErrors.Add(1)
	if c.prom != nil {
		c.prom.decodeErrors.Inc()
	}
}

// LogSendError 实现 Reporter
func (c *Counter) LogSendError() {
	if c == nil {
		return
	}
	c.sendErrors.Add(1)
	if c.prom != nil {
		c.prom.sendErrors.Inc()
	}
}

// LogRejectedSample 实现 Reporter
func (c *Counter) LogRejectedSample(reason string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.rejections[reason]++
	c.mu.Unlock()
	if c.prom != nil {
		c.prom.rejections.WithLabelValues(reason).Inc()
	}
}

// Totals 实现 Reporter
func (c *Counter) Totals() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		BytesIn:      c.bytesIn.Load(),
		BytesOut:     c.bytesOut.Load(),
		RateIn:       c.rateIn.Rate(),
		RateOut:      c.rateOut.Rate(),
		DatagramsIn:  c.datagramsIn.Load(),
		DatagramsOut: c.datagramsOut.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		SendErrors:   c.sendErrors.Load(),
		Submessages:  make(map[Direction]map[string]int64, 2),
		Rejections:   make(map[string]int64),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for dir, kinds := range c.submessages {
		m := make(map[string]int64, len(kinds))
		for k, v := range kinds {
			m[k] = v
		}
		s.Submessages[dir] = m
	}
	for k, v := range c.rejections {
		s.Rejections[k] = v
	}
	return s
}
