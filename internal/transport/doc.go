// Package transport 定义数据报传输契约
//
// RTPS 运行在不可靠的数据报之上：传输层只负责把整条消息发往
// 一组定位器，并把收到的数据报交给处理函数。重传、排序与去重
// 全部由协议层负责，传输层不做任何重试。
//
// 实现：
//   - memory: 进程内网络，用于测试，支持丢包注入
//   - udp:    UDPv4 单播 + 组播（golang.org/x/net/ipv4 管理组成员）
//
// Sender 的 mock 位于 mock_transport.go（mockgen 生成）。
package transport
