// Package messages 实现 RTPS 消息的线路编解码
//
// # 消息结构
//
//	Message    = Header Submessage*
//	Header     = "RTPS" version(2) vendorId(2) guidPrefix(12)
//	Submessage = id(1) flags(1) octetsToNextHeader(2) body
//
// flags 的最低位（E）表示子消息体的字节序：1 为小端，0 为大端。
//
// # 支持的子消息
//
//   - AckNack:         读者确认/请求重传
//   - Heartbeat:       写者宣告可用范围
//   - Gap:             写者告知不再可用的序列号
//   - Data:            携带负载（或键）与内联 QoS
//   - InfoTimestamp:   为后续子消息设置源时间戳
//   - InfoDestination: 为后续子消息设置目标参与者
//
// 未知子消息按长度跳过。
//
// # 错误处理
//
// 对端不可信：任何截断、越界或非法字段都只导致当前子消息被丢弃，
// 已成功解析的子消息仍然返回，解码过程从不 panic。
package messages
