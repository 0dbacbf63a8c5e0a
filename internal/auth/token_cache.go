package auth

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"sort"
	"strconv"
	"sync"
	"time"

	radix "github.com/mediocregopher/radix/v3"
)

// Ring 一致性哈希环，用于把 token 缓存分摊到多个鉴权缓存节点
type Ring struct {
	mu       sync.RWMutex
	replicas int
	keys     []uint32 // 已排序的虚拟节点哈希
	nodes    map[uint32]string
}

// NewRing 创建哈希环，nodes 为空时退化为单节点
func NewRing(nodes []string, replicas int) *Ring {
	if replicas <= 0 {
		replicas = 50
	}
	if len(nodes) == 0 {
		nodes = []string{"auth-node-default"}
	}
	r := &Ring{
		replicas: replicas,
		nodes:    make(map[uint32]string),
	}
	for _, node := range nodes {
		for i := 0; i < replicas; i++ {
			h := fnv.New32a()
			_, _ = h.Write([]byte(node + "#" + strconv.Itoa(i)))
			sum := h.Sum32()
			r.keys = append(r.keys, sum)
			r.nodes[sum] = node
		}
	}
	sort.Slice(r.keys, func(i, j int) bool { return r.keys[i] < r.keys[j] })
	return r
}

// Node 返回 key 归属的节点
func (r *Ring) Node(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.keys) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	sum := h.Sum32()
	idx := sort.Search(len(r.keys), func(i int) bool { return r.keys[i] >= sum })
	if idx == len(r.keys) {
		idx = 0
	}
	return r.nodes[r.keys[idx]]
}

// TokenCache JWT 解析结果缓存，避免每个请求都做签名校验
type TokenCache struct {
	redis radix.Client
	ring  *Ring
	ttl   time.Duration
}

// NewTokenCache 构建缓存器
func NewTokenCache(redis radix.Client, ring *Ring, ttl time.Duration) *TokenCache {
	if ring == nil {
		ring = NewRing(nil, 0)
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &TokenCache{
		redis: redis,
		ring:  ring,
		ttl:   ttl,
	}
}

func (c *TokenCache) cacheKey(token string) string {
	sum := sha1.Sum([]byte(token))
	return fmt.Sprintf("mobilepoint:auth:%s:%s", c.ring.Node(token), hex.EncodeToString(sum[:]))
}

// Get 尝试命中缓存的 claims
func (c *TokenCache) Get(ctx context.Context, token string) (*Claims, bool, error) {
	if c.redis == nil {
		return nil, false, nil
	}
	key := c.cacheKey(token)
	var raw string
	if err := c.redis.Do(radix.Cmd(&raw, "GET", key)); err != nil {
		return nil, false, err
	}
	if raw == "" {
		return nil, false, nil
	}
	var claims Claims
	if err := json.Unmarshal([]byte(raw), &claims); err != nil {
		// 数据损坏，清理后走正常解析
		_ = c.redis.Do(radix.Cmd(nil, "DEL", key))
		return nil, false, nil
	}
	// 缓存里可能存着已过期的 token
	if claims.ExpiresAt != nil && time.Now().After(claims.ExpiresAt.Time) {
		_ = c.redis.Do(radix.Cmd(nil, "DEL", key))
		return nil, false, nil
	}
	return &claims, true, nil
}

// Set 缓存解析结果
func (c *TokenCache) Set(ctx context.Context, token string, claims *Claims) error {
	if c.redis == nil || claims == nil {
		return nil
	}
	body, _ := json.Marshal(claims)
	return c.redis.Do(radix.FlatCmd(nil, "SETEX", c.cacheKey(token), int64(c.ttl/time.Second), body))
}
