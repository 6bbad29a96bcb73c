package resolver

import (
	"sync"
	"sync/atomic"
)

// readyToken runs fn on the first Fire only.
type readyToken struct {
	once  sync.Once
	fired atomic.Bool
	fn    func()
}

func newReadyToken(fn func()) *readyToken {
	return &readyToken{fn: fn}
}

func (t *readyToken) Fire() {
	t.once.Do(func() {
		t.fired.Store(true)
		t.fn()
	})
}

func (t *readyToken) Fired() bool {
	return t.fired.Load()
}
