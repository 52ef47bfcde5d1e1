// Package datawriter 实现写者侧的 write/dispose/unregister 路径
//
// DataWriter 把序列化样本转换为带单调序列号的 CacheChange，写入
// RTPS 有状态写者的历史缓存。写者侧 History QoS：
//
//   - KeepLast(depth)：同一实例在历史中超过 depth 个变更时移除最旧的
//   - KeepAll：历史受 ResourceLimits 约束，先回收所有可靠读者都已确认的
//     变更，仍然超限时返回 ErrOutOfResources
//
// 生命周期事件（dispose、unregister）以键载荷发送，并携带实例句柄。
package datawriter
