package memory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skekre98/galaxy/core"
)

func newModule(t *testing.T, cfg Config) *Module {
	t.Helper()
	m := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, m.Initialize(context.Background()))
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })
	return m
}

func TestPool_GrowsByDoubling(t *testing.T) {
	p := NewPool(8, 2)
	var held [][]byte
	for i := 0; i < 3; i++ {
		held = append(held, p.Get())
	}
	assert.Equal(t, PoolStats{BlockSize: 8, Total: 4, Free: 1}, p.Stats())

	for i := 0; i < 2; i++ {
		held = append(held, p.Get())
	}
	assert.Equal(t, 8, p.Stats().Total)

	for _, b := range held {
		p.Put(b)
	}
	p.Put(make([]byte, 3))
	assert.Equal(t, 8, p.Stats().Free)
	assert.Equal(t, 8, p.Trim())
	assert.Equal(t, PoolStats{BlockSize: 8}, p.Stats())
}

func TestPool_GetReturnsZeroedBlocks(t *testing.T) {
	p := NewPool(4, 1)
	b := p.Get()
	copy(b, "abcd")
	p.Put(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, p.Get())
}

func TestMemory_AllocatePicksSmallestFittingPool(t *testing.T) {
	m := newModule(t, Config{BlockSizes: []int{256, 64, 1024}, InitialBlocks: 1})

	tests := []struct {
		size     int
		poolSize int
	}{
		{1, 64},
		{64, 64},
		{65, 256},
		{1024, 1024},
		{4096, 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.size), func(t *testing.T) {
			b, err := m.Allocate(tt.size)
			require.NoError(t, err)
			assert.Len(t, b.Data, tt.size)
			assert.NotEqual(t, uuid.Nil, b.ID)
			if tt.poolSize > 0 {
				assert.Equal(t, tt.poolSize, cap(b.Data))
			}
		})
	}
	assert.Equal(t, len(tests), m.Stats().Live)
}

func TestMemory_FreeReturnsBlock(t *testing.T) {
	m := newModule(t, Config{BlockSizes: []int{64}, InitialBlocks: 1})
	b, err := m.Allocate(10)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Stats().Pools[0].Free)

	require.NoError(t, m.Free(b.ID))
	assert.Equal(t, 1, m.Stats().Pools[0].Free)
	assert.ErrorIs(t, m.Free(b.ID), ErrUnknownBlock)
}

func TestMemory_AllocateErrors(t *testing.T) {
	m := New(Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := m.Allocate(8)
	assert.ErrorIs(t, err, core.ErrNotInitialized)

	m = newModule(t, Config{})
	_, err = m.Allocate(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestMemory_InvalidBlockSize(t *testing.T) {
	m := New(Config{BlockSizes: []int{-1, 64}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorIs(t, m.Initialize(context.Background()), ErrInvalidSize)
	assert.False(t, m.Initialized())

	_, err := m.Allocate(32)
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestMemory_FailedThroughManager(t *testing.T) {
	ctx := context.Background()
	mgr := core.NewManager(core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	m := New(Config{BlockSizes: []int{-1, 64}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, mgr.RegisterModule(Name, m))

	assert.ErrorIs(t, mgr.InitializeModules(ctx), ErrInvalidSize)
	st, _ := mgr.State(Name)
	assert.Equal(t, core.StateFailed, st)
	assert.False(t, m.Initialized())
	assert.NotPanics(t, func() {
		_, err := m.Allocate(32)
		assert.ErrorIs(t, err, core.ErrNotInitialized)
	})
}

func TestMemory_MaxAllocation(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, Config{BlockSizes: []int{64}, InitialBlocks: 1, MaxAllocation: 128})

	_, err := m.Allocate(128)
	require.NoError(t, err)
	_, err = m.Allocate(129)
	assert.ErrorIs(t, err, ErrInvalidSize)

	huge := core.NewTask(core.KindMemory, []byte(`{"op":"allocate","size":1099511627776}`))
	assert.ErrorIs(t, m.ProcessTask(ctx, huge), ErrInvalidSize)
	assert.Equal(t, 1, m.Stats().Live)
}

func TestMemory_DefaultMaxAllocation(t *testing.T) {
	m := newModule(t, Config{})
	_, err := m.Allocate(defaultMaxAllocation + 1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestPool_GrowthIsCapped(t *testing.T) {
	p := NewPool(1, maxGrowth*2)
	for i := 0; i < maxGrowth*2+1; i++ {
		p.Get()
	}
	assert.Equal(t, maxGrowth*3, p.Stats().Total)
}

func TestMemory_Tasks(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, Config{BlockSizes: []int{64}, InitialBlocks: 2})

	require.NoError(t, m.ProcessTask(ctx, core.NewTask(core.KindMemory, []byte(`{"op":"allocate","size":32}`))))
	assert.Equal(t, 1, m.Stats().Live)

	b, err := m.Allocate(8)
	require.NoError(t, err)
	free := fmt.Sprintf(`{"op":"free","id":%q}`, b.ID)
	require.NoError(t, m.ProcessTask(ctx, core.NewTask(core.KindMemory, []byte(free))))
	assert.Equal(t, 1, m.Stats().Live)

	assert.Error(t, m.ProcessTask(ctx, core.NewTask(core.KindMemory, []byte(`{"op":"free","id":"nope"}`))))
	assert.ErrorContains(t, m.ProcessTask(ctx, core.NewTask(core.KindMemory, []byte(`{"op":"defrag"}`))), "unknown op")
	assert.NoError(t, m.ProcessTask(ctx, core.NewTask(core.KindCompute, nil)))
}

func TestMemory_TrimEvent(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, Config{BlockSizes: []int{64, 256}, InitialBlocks: 4})

	require.NoError(t, m.OnEvent(ctx, EventTrim))
	for _, p := range m.Stats().Pools {
		assert.Zero(t, p.Total)
	}

	// trimmed pools still serve allocations
	b, err := m.Allocate(64)
	require.NoError(t, err)
	assert.Equal(t, 64, cap(b.Data))
}
