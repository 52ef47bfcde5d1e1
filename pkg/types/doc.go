// Package types 定义 go-dds 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 go-dds 内部包。
// 所有类型都是纯值类型，用于在各模块间传递数据。
//
// # 职能
//
// pkg/types 定义协议层与 DCPS 层共享的 **Go 内部数据结构**：
//   - 实体标识（GuidPrefix, EntityId, GUID）
//   - 序列号（SequenceNumber）与计数器（Count）
//   - 定位器（Locator）与时间戳（Time）
//   - 变更记录（CacheChange, ChangeKind, InstanceHandle）
//
// # 与 internal/rtps/messages 的区别
//
// pkg/types 定义内存结构，
// internal/rtps/messages 负责这些结构在线路上的二进制编码。
//
// # 文件组织
//
//   - ids.go       - GuidPrefix, EntityId, GUID 及内置实体常量
//   - sequence.go  - SequenceNumber, Count
//   - locator.go   - Locator
//   - time.go      - Time（RTPS 时间戳）
//   - change.go    - ChangeKind, InstanceHandle, CacheChange
//   - errors.go    - 公共错误定义
package types
