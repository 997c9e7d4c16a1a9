// Package memory is the engine's block allocator module.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/skekre98/galaxy/core"
)

const Name = "memory"

const EventTrim = "memory.trim"

var (
	ErrUnknownBlock = errors.New("unknown memory block")
	ErrInvalidSize  = errors.New("invalid allocation size")
)

type Config struct {
	BlockSizes    []int
	InitialBlocks int
	// MaxAllocation caps a single Allocate request in bytes.
	MaxAllocation int
}

const defaultMaxAllocation = 1 << 20

// Block is a live allocation. Data stays valid until Free.
type Block struct {
	ID   uuid.UUID
	Data []byte
}

type Stats struct {
	Pools []PoolStats `json:"pools"`
	Live  int         `json:"live"`
}

type allocation struct {
	pool *Pool // nil for oversized blocks
	data []byte
}

type Module struct {
	core.Lifecycle

	cfg    Config
	logger *slog.Logger

	mu    sync.Mutex
	pools []*Pool
	live  map[uuid.UUID]allocation
}

func New(cfg Config, logger *slog.Logger) *Module {
	if len(cfg.BlockSizes) == 0 {
		cfg.BlockSizes = []int{64, 256, 1024}
	}
	if cfg.InitialBlocks <= 0 {
		cfg.InitialBlocks = 16
	}
	if cfg.MaxAllocation <= 0 {
		cfg.MaxAllocation = defaultMaxAllocation
	}
	return &Module{cfg: cfg, logger: logger.With("module", Name)}
}

func (m *Module) Initialize(ctx context.Context) error {
	sizes := slices.Clone(m.cfg.BlockSizes)
	slices.Sort(sizes)
	sizes = slices.Compact(sizes)
	if sizes[0] <= 0 {
		return fmt.Errorf("memory: block size %d: %w", sizes[0], ErrInvalidSize)
	}

	if err := m.Begin(); err != nil {
		m.logger.Warn("initialize ignored", "error", err)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.live = make(map[uuid.UUID]allocation)
	m.pools = m.pools[:0]
	for _, s := range sizes {
		m.pools = append(m.pools, NewPool(s, m.cfg.InitialBlocks))
	}
	m.logger.Info("memory pools ready", "sizes", sizes, "initial", m.cfg.InitialBlocks, "maxAllocation", m.cfg.MaxAllocation)
	return nil
}

func (m *Module) Shutdown(ctx context.Context) error {
	if err := m.End(); err != nil {
		m.logger.Warn("shutdown ignored", "error", err)
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.live); n > 0 {
		m.logger.Warn("blocks still allocated at shutdown", "count", n)
	}
	m.pools, m.live = nil, nil
	return nil
}

// Allocate returns a block of size bytes from the smallest pool that fits,
// or a fresh slice when no pool is large enough. Sizes above
// Config.MaxAllocation are rejected with ErrInvalidSize.
func (m *Module) Allocate(size int) (Block, error) {
	if !m.Initialized() {
		return Block{}, core.ErrNotInitialized
	}
	if size <= 0 || size > m.cfg.MaxAllocation {
		return Block{}, fmt.Errorf("memory: allocate %d: %w", size, ErrInvalidSize)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		return Block{}, core.ErrNotInitialized
	}
	var a allocation
	for _, p := range m.pools {
		if p.Size() >= size {
			a = allocation{pool: p, data: p.Get()}
			break
		}
	}
	if a.data == nil {
		a.data = make([]byte, size)
	}
	id := uuid.New()
	m.live[id] = a
	return Block{ID: id, Data: a.data[:size]}, nil
}

func (m *Module) Free(id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.live[id]
	if !ok {
		return fmt.Errorf("memory: free %s: %w", id, ErrUnknownBlock)
	}
	delete(m.live, id)
	if a.pool != nil {
		a.pool.Put(a.data)
	}
	return nil
}

func (m *Module) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Stats{Live: len(m.live)}
	for _, p := range m.pools {
		s.Pools = append(s.Pools, p.Stats())
	}
	return s
}

func (m *Module) trim() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.pools {
		n += p.Trim()
	}
	return n
}

func (m *Module) Update(ctx context.Context) error { return nil }

func (m *Module) OnEvent(ctx context.Context, event string) error {
	if err := m.Check(); err != nil {
		return nil
	}
	if event == EventTrim {
		m.logger.Info("memory trimmed", "blocks", m.trim())
	}
	return nil
}

// ProcessTask handles Memory tasks:
//
//	{"op": "allocate", "size": n}
//	{"op": "free", "id": "<uuid>"}
func (m *Module) ProcessTask(ctx context.Context, task core.Task) error {
	if err := m.Check(); err != nil {
		m.logger.Debug("task ignored", "task", task.ID(), "error", err)
		return nil
	}
	if task.Kind() != core.KindMemory {
		return nil
	}

	payload := gjson.ParseBytes(task.Payload())
	switch op := payload.Get("op").String(); op {
	case "allocate":
		b, err := m.Allocate(int(payload.Get("size").Int()))
		if err != nil {
			return err
		}
		m.logger.Debug("block allocated", "task", task.ID(), "block", b.ID, "size", len(b.Data))
		return nil
	case "free":
		id, err := uuid.Parse(payload.Get("id").String())
		if err != nil {
			return fmt.Errorf("memory: free: %w", err)
		}
		return m.Free(id)
	default:
		return fmt.Errorf("memory: unknown op %q", op)
	}
}
