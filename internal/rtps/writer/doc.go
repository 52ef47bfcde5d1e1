// Package writer 实现写者侧的 RTPS 投递协议
//
// # 读者代理
//
// 每个匹配的读者对应一个 ReaderProxy：
//
//   - BestEffortProxy: 只维护未发送集合，每次驱动把未发送的变更
//     推出（不在历史中的发 Gap），从不重传
//   - ReliableProxy: 完整的 ack/nack/heartbeat 状态机，
//     推送与修复两条轨道互不阻塞
//
// 代理只产出 Data/Gap/Heartbeat 子消息，不接触传输层。
//
// # 驱动
//
// StatefulWriter 持有历史缓存与所有代理，每个 Tick 依次驱动代理，
// 把产出的子消息按目标定位器列表分组、编码成数据报并发送。
// 发送失败不重试：可靠代理会在后续 Tick 中根据确认状态重新推导。
//
// StatelessWriter 面向裸定位器（ReaderLocator）做尽力而为推送，
// 用于发现类的周期广播。
//
// 所有定时行为都以注入的 clock.Clock 为准，不做阻塞等待。
package writer
