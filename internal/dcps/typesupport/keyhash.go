package typesupport

import (
	"crypto/md5"

	"github.com/dep2p/go-dds/pkg/types"
)

// KeyHash 由大端序列化键计算实例句柄
func KeyHash(serializedKey []byte) types.InstanceHandle {
	var h types.InstanceHandle
	if len(serializedKey) <= len(h) {
		copy(h[:], serializedKey)
		return h
	}
	return md5.Sum(serializedKey)
}
