// Package cdr 实现用户数据的 CDR 序列化
//
// 编码规则：
//   - 基本类型按自身大小对齐到 1/2/4/8 字节边界（相对封装头之后的起点）
//   - char 与 string 只允许 ASCII，否则返回 ErrNonASCII
//   - string 为 u32 长度（含结尾 NUL）+ 字节 + NUL
//   - sequence 为 u32 元素个数 + 元素
//   - 定长数组没有长度前缀
//   - 长度超过 u32 上限返回 ErrTooLong
//
// 完整载荷以 4 字节封装头开头（CDR_BE / CDR_LE + 2 字节选项），
// 见 Serialize 与 Deserialize。
package cdr
