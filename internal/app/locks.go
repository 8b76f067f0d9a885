package app

import "sync"

const lockStripes = 64

// userLocks serializes operations on the same user key. Different users may share a stripe.
type userLocks struct {
	stripes [lockStripes]sync.Mutex
}

func (l *userLocks) lock(userID int64) func() {
	m := &l.stripes[uint64(userID)%lockStripes]
	m.Lock()
	return m.Unlock
}
