// Package reader 实现读者侧的 RTPS 投递协议
//
// 每个匹配的写者对应一个 WriterProxy：
//
//   - BestEffortProxy: 接受比已收到的最大序列号更新的变更，
//     跳过的序列号计为丢失
//   - ReliableProxy: 缓冲乱序到达的变更并按序列号顺序释放，
//     根据 Heartbeat 推导缺失集合，在 heartbeat_response_delay 之后
//     以 AckNack 请求重传；Gap 把序列号标记为无关
//
// StatefulReader 持有所有写者代理，把释放的变更按序交给 Listener，
// 并在每个 Tick 发送到期的 AckNack。
package reader
