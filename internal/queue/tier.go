package queue

import "github.com/arloliu/go-zwave/transaction"

// tier is a FIFO of transactions sharing one priority. It supports pushing
// to the front so retried transactions go out before newer ones.
type tier struct {
	items []*transaction.Transaction
}

func newTier(prealloc int) *tier {
	return &tier{items: make([]*transaction.Transaction, 0, prealloc)}
}

// pushBack adds tx to the tail.
func (t *tier) pushBack(tx *transaction.Transaction) {
	t.items = append(t.items, tx)
}

// pushFront adds tx to the head.
func (t *tier) pushFront(tx *transaction.Transaction) {
	t.items = append(t.items, nil)
	copy(t.items[1:], t.items)
	t.items[0] = tx
}

// popFront removes and returns the head, or nil if the tier is empty.
func (t *tier) popFront() *transaction.Transaction {
	if len(t.items) == 0 {
		return nil
	}
	tx := t.items[0]
	t.items[0] = nil
	t.items = t.items[1:]

	return tx
}

// reset empties the tier, reusing the underlying array.
func (t *tier) reset() {
	clear(t.items)
	t.items = t.items[:0]
}
