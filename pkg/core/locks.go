package core

import (
	"hash/fnv"
	"sync"
)

// lockShards is the number of stripes in the per-pair lock table.
// Power of two so the hash maps onto a stripe with a mask.
const lockShards = 64

// pairLocks serializes grading events per (learner, question) pair.
//
// Concurrent ratings for the same pair must read-modify-write the
// memory record one at a time; ratings for different pairs should not
// contend. A fixed stripe table gives both without growing state per
// pair.
type pairLocks struct {
	shards [lockShards]sync.Mutex
}

// lock acquires the stripe covering the pair and returns its unlock.
func (l *pairLocks) lock(learnerID string, questionID int64) func() {
	m := &l.shards[l.shard(learnerID, questionID)]
	m.Lock()
	return m.Unlock
}

func (l *pairLocks) shard(learnerID string, questionID int64) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(learnerID))
	_, _ = h.Write([]byte{'|'})
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(questionID >> (8 * (7 - i)))
	}
	_, _ = h.Write(buf[:])
	return h.Sum32() & (lockShards - 1)
}
