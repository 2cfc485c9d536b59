package async

import "sync"

// Tracker keeps a Cell in step with an Operation's events. A Started
// event replaces the cell. A terminal event is applied only when the cell
// is still keyed by the same params, so late results of superseded
// requests are dropped.
type Tracker[P Params, R any] struct {
	mu       sync.Mutex
	cell     Cell[P, R]
	onChange func(Cell[P, R])
	unsub    func()
}

// Track subscribes a new Tracker to op. onChange, if non-nil, is called
// with the new cell after every applied transition, outside the lock.
func Track[P Params, R any](op *Operation[P, R], onChange func(Cell[P, R])) *Tracker[P, R] {
	t := &Tracker[P, R]{onChange: onChange}
	t.unsub = op.Subscribe(t.handle)

	return t
}

// Cell returns the current snapshot.
func (t *Tracker[P, R]) Cell() Cell[P, R] {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.cell
}

// Reset returns the cell to NotStarted. Completions still in flight for
// the previous params are then ignored.
func (t *Tracker[P, R]) Reset() {
	t.Update(func(c Cell[P, R]) (Cell[P, R], bool) {
		if c.Status == NotStarted {
			return c, false
		}

		return c.Reset(), true
	})
}

// Close stops following the operation.
func (t *Tracker[P, R]) Close() {
	if t.unsub != nil {
		t.unsub()
	}
}

func (t *Tracker[P, R]) handle(ev Event[P, R]) {
	t.Update(func(c Cell[P, R]) (Cell[P, R], bool) {
		switch ev.Phase {
		case Started:
			return c.Start(ev.Params), true
		case Done:
			if !c.Matches(ev.Params) {
				return c, false
			}

			return c.Finish(ev.Params, ev.Result), true
		case FailedPhase:
			if !c.Matches(ev.Params) {
				return c, false
			}

			return c.Fail(ev.Params, ev.Err), true
		}

		return c, false
	})
}

// Update applies next to the current cell under the tracker's lock. next
// reports whether it changed anything; only then is onChange called.
// next must not mutate data shared with the previous cell.
func (t *Tracker[P, R]) Update(next func(Cell[P, R]) (Cell[P, R], bool)) {
	t.mu.Lock()
	c, changed := next(t.cell)
	t.cell = c
	t.mu.Unlock()

	if changed && t.onChange != nil {
		t.onChange(c)
	}
}
