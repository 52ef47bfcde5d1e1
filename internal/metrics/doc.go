// Package metrics 记录协议层指标
//
// Counter 统计数据报字节数（含 60 秒滑动窗口速率）、
// 按种类统计收发的子消息数、解码失败数与样本拒收原因，
// 并可选地导出为 Prometheus 指标。
//
// 所有方法对 nil *Counter 安全，指标关闭时调用方无需判断。
package metrics
