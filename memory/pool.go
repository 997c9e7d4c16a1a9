package memory

import "sync"

// Pool hands out fixed-size blocks. An empty pool doubles its capacity,
// adding at most maxGrowth blocks at a time.
type Pool struct {
	mu    sync.Mutex
	size  int
	free  [][]byte
	total int
}

const maxGrowth = 1024

type PoolStats struct {
	BlockSize int `json:"blockSize"`
	Total     int `json:"total"`
	Free      int `json:"free"`
}

func NewPool(size, initial int) *Pool {
	p := &Pool{size: size}
	p.grow(initial)
	return p
}

func (p *Pool) grow(n int) {
	if n < 1 {
		n = 1
	}
	for i := 0; i < n; i++ {
		p.free = append(p.free, make([]byte, p.size))
	}
	p.total += n
}

func (p *Pool) Size() int { return p.size }

// Get returns a zeroed block of exactly Size bytes.
func (p *Pool) Get() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.free) == 0 {
		p.grow(min(p.total, maxGrowth))
	}
	b := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	clear(b)
	return b
}

// Put returns b to the pool. Blocks of a foreign size are dropped.
func (p *Pool) Put(b []byte) {
	if cap(b) != p.size {
		return
	}
	p.mu.Lock()
	p.free = append(p.free, b[:p.size])
	p.mu.Unlock()
}

// Trim releases every free block and reports how many were dropped.
func (p *Pool) Trim() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.free)
	p.free = nil
	p.total -= n
	return n
}

func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PoolStats{BlockSize: p.size, Total: p.total, Free: len(p.free)}
}
