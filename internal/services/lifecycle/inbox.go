package lifecycle

import (
	"sync"

	"tgstate/internal/domain"
)

type decision struct {
	id     domain.SecretChatID
	answer domain.Decision
}

// item is either an engine event or the answer to a pending prompt.
type item struct {
	ev       *domain.Event
	decision *decision
}

// inbox is an unbounded FIFO. Pushing never blocks, so an engine call made
// while draining can enqueue its own follow-up events.
type inbox struct {
	mu    sync.Mutex
	items []item
	ready chan struct{}
}

func newInbox() *inbox {
	return &inbox{ready: make(chan struct{}, 1)}
}

func (q *inbox) push(it item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *inbox) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items[0] = item{}
	q.items = q.items[1:]
	return it, true
}
