package realtime

import "sync"

// DefaultMaxConnsPerAddress is the per-process ceiling on simultaneous
// connections from one source address.
const DefaultMaxConnsPerAddress = 10

// ConnectionLimiter tracks open-connection counts per source address and
// rejects new connections once the ceiling is reached. Counters are
// per-process: the ceiling is a soft local guard, not a global quota.
type ConnectionLimiter struct {
	ceiling int

	mu     sync.Mutex
	counts map[string]int
}

// NewConnectionLimiter creates a limiter. ceiling <= 0 selects the default.
func NewConnectionLimiter(ceiling int) *ConnectionLimiter {
	if ceiling <= 0 {
		ceiling = DefaultMaxConnsPerAddress
	}
	return &ConnectionLimiter{
		ceiling: ceiling,
		counts:  make(map[string]int),
	}
}

// Admit accounts for a new connection attempt from addr. It returns false,
// without incrementing, when the address is already at the ceiling.
func (l *ConnectionLimiter) Admit(addr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts[addr] >= l.ceiling {
		return false
	}
	l.counts[addr]++
	return true
}

// Release returns an admitted slot. Zero entries are deleted to bound the
// map; releasing an unknown address is a no-op.
func (l *ConnectionLimiter) Release(addr string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	count, ok := l.counts[addr]
	if !ok {
		return
	}
	if count <= 1 {
		delete(l.counts, addr)
		return
	}
	l.counts[addr] = count - 1
}

// Count reports the live count for addr. Used by tests.
func (l *ConnectionLimiter) Count(addr string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[addr]
}
