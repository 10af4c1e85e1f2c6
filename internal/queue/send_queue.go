package queue

import (
	"sync"

	"github.com/arloliu/go-zwave/transaction"
)

// SendQueue holds transactions that have not been sent yet, ordered by
// priority and, within a priority, by submission order.
//
// A transaction whose frame bytes are identical to a transaction already in
// the queue is suppressed. SendQueue is safe for concurrent use.
type SendQueue struct {
	mu     sync.Mutex
	tiers  [transaction.NumPriorities]*tier
	frames map[string]int // frame bytes -> number of queued transactions
	length int
}

// NewSendQueue creates an empty SendQueue, preallocating room for prealloc
// transactions per priority.
func NewSendQueue(prealloc int) *SendQueue {
	q := &SendQueue{frames: make(map[string]int)}
	for i := range q.tiers {
		q.tiers[i] = newTier(prealloc)
	}

	return q
}

// Enqueue adds tx behind every queued transaction of the same or higher
// priority.
//
// It returns false, leaving the queue unchanged, when a queued transaction
// carries the same frame bytes.
func (q *SendQueue) Enqueue(tx *transaction.Transaction) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	key := string(tx.Frame())
	if q.frames[key] > 0 {
		return false
	}

	q.tiers[tx.Priority().Tier()].pushBack(tx)
	q.add(key)

	return true
}

// Requeue puts tx ahead of every queued transaction of the same priority.
// It is used for retries and skips duplicate suppression.
func (q *SendQueue) Requeue(tx *transaction.Transaction) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.tiers[tx.Priority().Tier()].pushFront(tx)
	q.add(string(tx.Frame()))
}

// DequeueHighest removes and returns the oldest transaction of the highest
// priority. It returns false if the queue is empty.
func (q *SendQueue) DequeueHighest() (*transaction.Transaction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range q.tiers {
		tx := t.popFront()
		if tx == nil {
			continue
		}

		q.remove(string(tx.Frame()))

		return tx, true
	}

	return nil, false
}

// Contains reports whether a queued transaction carries the frame bytes data.
func (q *SendQueue) Contains(data []byte) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.frames[string(data)] > 0
}

// Length returns the number of queued transactions.
func (q *SendQueue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return q.length
}

// IsEmpty returns true if no transaction is queued.
func (q *SendQueue) IsEmpty() bool {
	return q.Length() == 0
}

// Clear discards every queued transaction and returns how many were dropped.
func (q *SendQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.length
	for _, t := range q.tiers {
		t.reset()
	}
	clear(q.frames)
	q.length = 0

	return n
}

func (q *SendQueue) add(key string) {
	q.frames[key]++
	q.length++
}

func (q *SendQueue) remove(key string) {
	if q.frames[key] <= 1 {
		delete(q.frames, key)
	} else {
		q.frames[key]--
	}
	q.length--
}
