// Package history 实现端点的变更存储（HistoryCache）
//
// HistoryCache 按序列号保存 CacheChange，序列号唯一。
// 写者侧由本地 write/dispose/unregister 填充，
// 在被所有可靠读者确认或被历史/资源策略淘汰后移除；
// 读者侧用作乱序到达变更的重排缓冲。
//
// HistoryCache 不是并发安全的：它由所属端点独占，
// 端点负责串行化所有访问。读者代理在一次驱动周期内
// 通过只读的 View 访问写者的缓存。
package history
