// Package typesupport 描述主题数据类型并计算实例句柄
//
// 实例句柄即 RTPS 键哈希：键字段以 CDR 大端序列化，
// 不超过 16 字节时零填充到 16 字节，否则取 MD5 摘要。
// 无键类型的所有样本属于同一个实例（全零句柄）。
package typesupport
