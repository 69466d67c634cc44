package session

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// stripedLock serializes operations per participant id. Pair operations
// acquire both shards in index order so concurrent session creation and
// termination cannot deadlock.
type stripedLock struct {
	shards [lockShards]sync.Mutex
}

func (l *stripedLock) index(id string) int {
	h := fnv.New32a()
	h.Write([]byte(id))
	return int(h.Sum32() % lockShards)
}

// Lock locks the shard for a single participant and returns the unlock func.
func (l *stripedLock) Lock(id string) func() {
	i := l.index(id)
	l.shards[i].Lock()
	return l.shards[i].Unlock
}

// LockPair locks the shards for both participants and returns the unlock
// func. When both ids hash to the same shard only one lock is taken.
func (l *stripedLock) LockPair(a, b string) func() {
	i, j := l.index(a), l.index(b)
	if i == j {
		l.shards[i].Lock()
		return l.shards[i].Unlock
	}
	if i > j {
		i, j = j, i
	}
	l.shards[i].Lock()
	l.shards[j].Lock()
	first, second := &l.shards[i], &l.shards[j]
	return func() {
		second.Unlock()
		first.Unlock()
	}
}
