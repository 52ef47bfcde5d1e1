package typesupport

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dep2p/go-dds/pkg/types"
)

// DefaultResolverCacheSize 默认记忆化条目数
const DefaultResolverCacheSize = 1024

// 超过该长度的载荷不做记忆化
const maxMemoPayload = 512

// Resolver 由载荷计算实例句柄，并记忆化近期结果
//
// 同一实例的样本通常反复出现，记忆化省去了反序列化与 MD5。
type Resolver struct {
	ts    TypeSupport
	cache *lru.Cache[string, types.InstanceHandle]
}

// NewResolver 创建解析器，size <= 0 时使用默认大小
func NewResolver(ts TypeSupport, size int) *Resolver {
	if size <= 0 {
		size = DefaultResolverCacheSize
	}
	cache, err := lru.New[string, types.InstanceHandle](size)
	if err != nil {
		// 只有 size <= 0 时才会失败
		panic(err)
	}
	return &Resolver{ts: ts, cache: cache}
}

// TypeSupport 返回类型描述
func (r *Resolver) TypeSupport() TypeSupport {
	return r.ts
}

// FromPayload 由完整样本载荷计算实例句柄
func (r *Resolver) FromPayload(payload []byte) (types.InstanceHandle, error) {
	if !r.ts.HasKey() {
		return types.HandleNil, nil
	}
	memo := len(payload) <= maxMemoPayload
	if memo {
		if h, ok := r.cache.Get(string(payload)); ok {
			return h, nil
		}
	}
	key, err := r.ts.SerializedKey(payload)
	if err != nil {
		return types.HandleNil, err
	}
	h := KeyHash(key)
	if memo {
		r.cache.Add(string(payload), h)
	}
	return h, nil
}

// FromKeyPayload 由键载荷计算实例句柄
func (r *Resolver) FromKeyPayload(payload []byte) (types.InstanceHandle, error) {
	if !r.ts.HasKey() {
		return types.HandleNil, nil
	}
	key, err := KeyFromKeyPayload(payload)
	if err != nil {
		return types.HandleNil, err
	}
	return KeyHash(key), nil
}

// CacheLen 返回记忆化条目数
func (r *Resolver) CacheLen() int {
	return r.cache.Len()
}
