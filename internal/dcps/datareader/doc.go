// Package datareader 实现读者侧的样本接纳与视图
//
// DataReader 从 RTPS 读者接收按序释放的变更，依次执行：
//
//  1. 解析实例句柄（存活数据取自载荷键，生命周期事件优先使用显式句柄）
//  2. EXCLUSIVE 所有权仲裁
//  3. 基于时间的过滤
//  4. 资源限制（max_samples、max_instances、max_samples_per_instance，先命中者生效）
//  5. KeepLast 淘汰
//  6. 更新实例状态并按 DestinationOrder 排序
//
// 拒收不是错误，只计入 SampleRejectedStatus。read/take 按样本状态、
// 视图状态与实例状态过滤，计算 sample_rank 与 generation_rank，
// 并把涉及的实例标记为 NotNew。没有匹配样本时返回 ErrNoData。
package datareader
