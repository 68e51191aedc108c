package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "alumnus/pkg/domain-errors"
)

type counterStore struct {
	gate   *Gate
	mu     sync.Mutex
	values map[string]int
}

func newCounterStore() *counterStore {
	return &counterStore{values: make(map[string]int)}
}

func (c *counterStore) JoinTx(g *Gate) { c.gate = g }

func (c *counterStore) Set(ctx context.Context, key string, v int) {
	defer c.gate.Enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, existed := c.values[key]
	c.values[key] = v
	OnRollback(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if existed {
			c.values[key] = prev
		} else {
			delete(c.values, key)
		}
	})
}

func (c *counterStore) Get(ctx context.Context, key string) (int, bool) {
	defer c.gate.Enter(ctx)()
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	return v, ok
}

func TestMemoryRunInTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemory(store)

		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			store.Set(txCtx, "a", 3)
			return nil
		})

		require.NoError(t, err)
		v, _ := store.Get(ctx, "a")
		assert.Equal(t, 3, v)
	})

	t.Run("undoes every participant's writes on failure", func(t *testing.T) {
		first := newCounterStore()
		second := newCounterStore()
		runner := NewMemory(first, second)
		first.Set(ctx, "a", 1)

		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			first.Set(txCtx, "a", 2)
			first.Set(txCtx, "a", 5)
			second.Set(txCtx, "b", 20)
			return errors.New("second insert failed")
		})

		require.Error(t, err)
		v, _ := first.Get(ctx, "a")
		assert.Equal(t, 1, v)
		_, ok := second.Get(ctx, "b")
		assert.False(t, ok)
	})

	t.Run("rollback keeps writes made outside the transaction", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemory(store)

		var wg sync.WaitGroup
		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			store.Set(txCtx, "claim", 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				store.Set(ctx, "bystander", 7)
			}()
			return errors.New("claim rejected")
		})
		wg.Wait()

		require.Error(t, err)
		_, ok := store.Get(ctx, "claim")
		assert.False(t, ok)
		v, ok := store.Get(ctx, "bystander")
		require.True(t, ok)
		assert.Equal(t, 7, v)
	})

	t.Run("work outside waits for the transaction to finish", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemory(store)

		seen := make(chan bool, 1)
		var wg sync.WaitGroup
		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			store.Set(txCtx, "claim", 1)
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, ok := store.Get(ctx, "claim")
				seen <- ok
			}()
			select {
			case <-seen:
				t.Error("read outside the transaction completed before it ended")
			default:
			}
			return errors.New("claim rejected")
		})
		wg.Wait()

		require.Error(t, err)
		assert.False(t, <-seen, "uncommitted write was visible outside the transaction")
	})

	t.Run("nested call joins the enclosing transaction", func(t *testing.T) {
		store := newCounterStore()
		runner := NewMemory(store)

		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			if err := runner.RunInTx(txCtx, func(inner context.Context) error {
				store.Set(inner, "a", 1)
				return nil
			}); err != nil {
				return err
			}
			return errors.New("outer failed")
		})

		require.Error(t, err)
		_, ok := store.Get(ctx, "a")
		assert.False(t, ok)
	})

	t.Run("cancelled context never runs the callback", func(t *testing.T) {
		runner := NewMemory()
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := runner.RunInTx(cancelled, func(context.Context) error {
			called = true
			return nil
		})

		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
		assert.False(t, called)
	})
}
