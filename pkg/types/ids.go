// Package types 定义 go-dds 的基础类型
package types

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// ============================================================================
//                              GuidPrefix - 参与者前缀
// ============================================================================

// GuidPrefix 参与者级别的 12 字节前缀
//
// 同一参与者内的所有实体共享同一个前缀。
type GuidPrefix [12]byte

// GuidPrefixUnknown 未知前缀
var GuidPrefixUnknown GuidPrefix

// NewGuidPrefix 生成随机前缀
//
// 前两个字节保留为厂商标识，其余字节取自随机 UUID。
func NewGuidPrefix(vendor VendorID) GuidPrefix {
	var p GuidPrefix
	u := uuid.New()
	p[0], p[1] = vendor[0], vendor[1]
	copy(p[2:], u[:10])
	return p
}

// String 返回十六进制表示
func (p GuidPrefix) String() string {
	return hex.EncodeToString(p[:])
}

// IsUnknown 检查是否为未知前缀
func (p GuidPrefix) IsUnknown() bool {
	return p == GuidPrefixUnknown
}

// VendorID 厂商标识
type VendorID [2]byte

// VendorIDGoDDS 本实现的厂商标识
var VendorIDGoDDS = VendorID{0x01, 0x20}

// ProtocolVersion 协议版本
type ProtocolVersion struct {
	Major uint8
	Minor uint8
}

// ProtocolVersion24 当前实现的协议版本
var ProtocolVersion24 = ProtocolVersion{Major: 2, Minor: 4}

// ============================================================================
//                              EntityId - 实体标识
// ============================================================================

// EntityKind 实体种类（EntityId 的最后一个字节）
type EntityKind uint8

const (
	// EntityKindUserUnknown 用户定义的未知实体
	EntityKindUserUnknown EntityKind = 0x00
	// EntityKindWriterWithKey 带键写者
	EntityKindWriterWithKey EntityKind = 0x02
	// EntityKindWriterNoKey 无键写者
	EntityKindWriterNoKey EntityKind = 0x03
	// EntityKindReaderNoKey 无键读者
	EntityKindReaderNoKey EntityKind = 0x04
	// EntityKindReaderWithKey 带键读者
	EntityKindReaderWithKey EntityKind = 0x07
	// EntityKindBuiltinParticipant 内置参与者
	EntityKindBuiltinParticipant EntityKind = 0xc1
	// EntityKindBuiltinWriterWithKey 内置带键写者
	EntityKindBuiltinWriterWithKey EntityKind = 0xc2
	// EntityKindBuiltinReaderWithKey 内置带键读者
	EntityKindBuiltinReaderWithKey EntityKind = 0xc7
)

// EntityID 参与者内的实体标识
type EntityID struct {
	Key  [3]byte
	Kind EntityKind
}

// 常用实体标识
var (
	// EntityIDUnknown 未知实体，作为目标时表示"所有匹配的实体"
	EntityIDUnknown = EntityID{}

	// EntityIDParticipant 参与者自身
	EntityIDParticipant = EntityID{Key: [3]byte{0, 0, 1}, Kind: EntityKindBuiltinParticipant}

	// EntityIDSPDPWriter 参与者发现写者
	EntityIDSPDPWriter = EntityID{Key: [3]byte{0, 1, 0}, Kind: EntityKindBuiltinWriterWithKey}

	// EntityIDSPDPReader 参与者发现读者
	EntityIDSPDPReader = EntityID{Key: [3]byte{0, 1, 0}, Kind: EntityKindBuiltinReaderWithKey}
)

// NewEntityID 从 24 位键和种类创建实体标识
func NewEntityID(key uint32, kind EntityKind) EntityID {
	return EntityID{
		Key:  [3]byte{byte(key >> 16), byte(key >> 8), byte(key)},
		Kind: kind,
	}
}

// Bytes 返回 4 字节线路表示
func (e EntityID) Bytes() [4]byte {
	return [4]byte{e.Key[0], e.Key[1], e.Key[2], byte(e.Kind)}
}

// EntityIDFromBytes 从 4 字节线路表示解析
func EntityIDFromBytes(b [4]byte) EntityID {
	return EntityID{Key: [3]byte{b[0], b[1], b[2]}, Kind: EntityKind(b[3])}
}

// IsWriter 检查是否为写者实体
func (e EntityID) IsWriter() bool {
	switch e.Kind {
	case EntityKindWriterWithKey, EntityKindWriterNoKey, EntityKindBuiltinWriterWithKey:
		return true
	}
	return false
}

// IsReader 检查是否为读者实体
func (e EntityID) IsReader() bool {
	switch e.Kind {
	case EntityKindReaderWithKey, EntityKindReaderNoKey, EntityKindBuiltinReaderWithKey:
		return true
	}
	return false
}

// String 返回十六进制表示
func (e EntityID) String() string {
	b := e.Bytes()
	return hex.EncodeToString(b[:])
}

// ============================================================================
//                              GUID - 全局唯一标识
// ============================================================================

// GUID 全局唯一实体标识
type GUID struct {
	Prefix   GuidPrefix
	EntityID EntityID
}

// GUIDUnknown 未知 GUID
var GUIDUnknown GUID

// NewGUID 创建 GUID
func NewGUID(prefix GuidPrefix, entityID EntityID) GUID {
	return GUID{Prefix: prefix, EntityID: entityID}
}

// Bytes 返回 16 字节表示
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	copy(b[:12], g.Prefix[:])
	e := g.EntityID.Bytes()
	copy(b[12:], e[:])
	return b
}

// InstanceHandle 返回代表该实体的实例句柄（用作 publication_handle）
func (g GUID) InstanceHandle() InstanceHandle {
	return InstanceHandle(g.Bytes())
}

// String 返回 prefix:entity 格式
func (g GUID) String() string {
	return fmt.Sprintf("%s:%s", g.Prefix, g.EntityID)
}
