package tx

import (
	"context"
	"sync"
	"time"

	dErrors "alumnus/pkg/domain-errors"
)

// DefaultTimeout bounds a transaction whose context has no deadline.
const DefaultTimeout = 5 * time.Second

// Participant is implemented by in-memory stores that take part in a Memory
// transaction. The runner hands each participant the gate it must enter
// before touching its state.
type Participant interface {
	JoinTx(g *Gate)
}

// Gate isolates a Memory transaction from work outside it. A transaction
// holds the gate exclusively; any other store call shares it, so nothing
// outside the transaction observes its writes before it commits or rolls
// back. A store call made inside a transaction callback must carry the
// callback's context. A nil Gate admits everything.
type Gate struct {
	mu sync.RWMutex
}

// Enter admits one store call and returns the matching release. Calls made
// with the context of the transaction holding g pass straight through.
func (g *Gate) Enter(ctx context.Context) (release func()) {
	if g == nil {
		return func() {}
	}
	if j, ok := journalFrom(ctx); ok && j.gate == g {
		return func() {}
	}
	g.mu.RLock()
	return g.mu.RUnlock
}

// journal collects the undo steps of the writes made inside one transaction.
type journal struct {
	gate *Gate
	undo []func()
}

type journalKey struct{}

func journalFrom(ctx context.Context) (*journal, bool) {
	j, ok := ctx.Value(journalKey{}).(*journal)
	return j, ok
}

// OnRollback registers undo to run if the Memory transaction on ctx fails.
// Outside a transaction the write is already committed and undo is dropped.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := journalFrom(ctx); ok {
		j.undo = append(j.undo, undo)
	}
}

// Memory serialises transactions behind a gate shared with its participants
// and, when the callback fails, undoes only the writes the callback made.
type Memory struct {
	gate    *Gate
	timeout time.Duration
}

// NewMemory builds an in-memory transaction runner over the given stores.
func NewMemory(participants ...Participant) *Memory {
	g := &Gate{}
	for _, p := range participants {
		p.JoinTx(g)
	}
	return &Memory{gate: g, timeout: DefaultTimeout}
}

func (m *Memory) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	// A nested call joins the enclosing transaction.
	if j, ok := journalFrom(ctx); ok && j.gate == m.gate {
		return fn(ctx)
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.gate.mu.Lock()
	defer m.gate.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	j := &journal{gate: m.gate}
	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		for i := len(j.undo) - 1; i >= 0; i-- {
			j.undo[i]()
		}
		return err
	}
	return nil
}
