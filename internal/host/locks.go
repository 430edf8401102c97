package host

import "sync"

// poolLocks hands out one mutex per pool ID.
type poolLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newPoolLocks() *poolLocks {
	return &poolLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *poolLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
