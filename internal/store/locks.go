package store

import "sync"

const defaultShardCount = 32

// lockTable 按 (symbol, unit) 分片加锁，同一对文件的写入串行化。
type lockTable struct {
	shards []sync.Mutex
}

func newLockTable(n int) *lockTable {
	if n <= 0 {
		n = 1
	}
	return &lockTable{shards: make([]sync.Mutex, n)}
}

func (t *lockTable) lock(key string) func() {
	mu := &t.shards[hashKey(key)%uint32(len(t.shards))]
	mu.Lock()
	return mu.Unlock
}

func lockKey(symbol, code string) string { return symbol + "@" + code }

func hashKey(s string) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	var h uint32 = offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
