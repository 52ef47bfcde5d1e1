// Package participant 组装一个 DDS 参与者
//
// Participant 持有传输、消息接收者与本地端点，并驱动两个并发循环：
//
//   - 接收循环：把数据报交给 receiver，按实体标识路由子消息
//   - 驱动循环：按 tick_interval 或端点的立即驱动通知执行所有端点的 Tick
//
// 端点匹配由调用方显式完成（MatchReader / MatchWriter），
// 匹配前检查 QoS 兼容性。
package participant
