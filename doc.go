// Package dds 提供基于 RTPS 的数据分发引擎
//
// go-dds 实现以数据为中心的发布/订阅：写者把带键的样本写入主题，
// 读者按 QoS 接纳样本并以 read/take 访问。协议层实现 RTPS 的
// 尽力而为与可靠投递（Heartbeat/AckNack/Gap 修复）。
//
// # 快速开始
//
//	import dds "github.com/dep2p/go-dds"
//
//	// 1. 创建并启动域
//	domain, err := dds.Start(ctx, dds.WithPreset(config.PresetLAN))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer domain.Close()
//
//	// 2. 描述主题类型
//	shapes := dds.NewType("ShapeType", dds.Codec[Shape]{...})
//
//	// 3. 创建写者与读者并匹配
//	w, _ := dds.CreateWriter(domain, shapes, qos.DefaultWriterQos())
//	r, _ := dds.CreateReader(domain, shapes, reliableReaderQos)
//	_ = dds.Match(w, r)
//
//	// 4. 发布与读取
//	_, _ = w.Write(Shape{Color: "RED", X: 1})
//	<-r.DataAvailable()
//	samples, _ := r.Take(dds.AnyQuery())
//
// # API 层次结构
//
//	┌─────────────────────────────────────────────────────────────────┐
//	│  入口层      Domain          dds.New() / dds.Start()            │
//	├─────────────────────────────────────────────────────────────────┤
//	│  DCPS 层     Writer[T] / Reader[T]                              │
//	│              写者侧历史、读者侧接纳与视图（internal/dcps）       │
//	├─────────────────────────────────────────────────────────────────┤
//	│  RTPS 层     有状态/无状态写者、有状态读者、消息接收者           │
//	│              （internal/rtps）                                  │
//	├─────────────────────────────────────────────────────────────────┤
//	│  传输层      UDP 单播 + 组播、进程内网络（internal/transport）    │
//	└─────────────────────────────────────────────────────────────────┘
//
// 端点发现不在本库范围内：远端端点通过 MatchRemoteReader /
// MatchRemoteWriter 显式匹配。
package dds
