package queue

import (
	"sync"
	"testing"

	"github.com/arloliu/go-zwave/frame"
	"github.com/arloliu/go-zwave/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTx(t testing.TB, seq byte, prio transaction.Priority) *transaction.Transaction {
	t.Helper()

	data := frame.New(frame.Request, frame.ClassSendData, 0x04, seq).MustPack()
	tx, err := transaction.New(data, transaction.WithPriority(prio))
	require.NoError(t, err)

	return tx
}

func TestSendQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSendQueue(1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		tx, ok := q.DequeueHighest()
		assert.False(ok)
		assert.Nil(tx)
	})

	t.Run("Duplicate Suppression", func(t *testing.T) {
		q := NewSendQueue(1)

		queued := newTx(t, 1, transaction.PriorityGet)
		assert.False(q.Contains(queued.Frame()))
		assert.True(q.Enqueue(queued))
		assert.True(q.Contains(queued.Frame()))
		assert.False(q.Contains(newTx(t, 2, transaction.PriorityGet).Frame()))
		assert.Equal(1, q.Length())

		// Same bytes, different transaction and priority.
		assert.False(q.Enqueue(newTx(t, 1, transaction.PriorityGet)))
		assert.False(q.Enqueue(newTx(t, 1, transaction.PriorityImmediate)))
		assert.Equal(1, q.Length())

		// Once sent the frame may be queued again.
		_, ok := q.DequeueHighest()
		assert.True(ok)
		assert.False(q.Contains(queued.Frame()))
		assert.True(q.Enqueue(newTx(t, 1, transaction.PriorityGet)))
		assert.Equal(1, q.Length())
	})

	t.Run("Priority Order", func(t *testing.T) {
		q := NewSendQueue(1)

		q.Enqueue(newTx(t, 1, transaction.PriorityPoll))
		q.Enqueue(newTx(t, 2, transaction.PriorityGet))
		q.Enqueue(newTx(t, 3, transaction.PriorityImmediate))
		q.Enqueue(newTx(t, 4, transaction.PrioritySet))
		assert.Equal(4, q.Length())

		want := []transaction.Priority{
			transaction.PriorityImmediate,
			transaction.PrioritySet,
			transaction.PriorityGet,
			transaction.PriorityPoll,
		}
		for _, prio := range want {
			tx, ok := q.DequeueHighest()
			assert.True(ok)
			assert.Equal(prio, tx.Priority())
		}
		assert.True(q.IsEmpty())
	})

	t.Run("FIFO Within Priority", func(t *testing.T) {
		q := NewSendQueue(1)

		txs := make([]*transaction.Transaction, 0, 5)
		for i := byte(0); i < 5; i++ {
			tx := newTx(t, i, transaction.PrioritySet)
			txs = append(txs, tx)
			q.Enqueue(tx)
		}

		for _, want := range txs {
			got, ok := q.DequeueHighest()
			assert.True(ok)
			assert.Same(want, got)
		}
	})

	t.Run("Requeue Goes To Front Of Tier", func(t *testing.T) {
		q := NewSendQueue(1)

		immediate := newTx(t, 1, transaction.PriorityImmediate)
		get1 := newTx(t, 2, transaction.PriorityGet)
		get2 := newTx(t, 3, transaction.PriorityGet)
		retried := newTx(t, 4, transaction.PriorityGet)

		q.Enqueue(get1)
		q.Enqueue(get2)
		q.Enqueue(immediate)
		q.Requeue(retried)
		assert.Equal(4, q.Length())

		for _, want := range []*transaction.Transaction{immediate, retried, get1, get2} {
			got, ok := q.DequeueHighest()
			assert.True(ok)
			assert.Same(want, got)
		}
	})

	t.Run("Requeue Tracks Duplicates", func(t *testing.T) {
		q := NewSendQueue(1)

		q.Requeue(newTx(t, 1, transaction.PriorityGet))
		assert.False(q.Enqueue(newTx(t, 1, transaction.PriorityGet)))
		assert.Equal(1, q.Length())
	})

	t.Run("Clear", func(t *testing.T) {
		q := NewSendQueue(1)

		q.Enqueue(newTx(t, 1, transaction.PriorityGet))
		q.Enqueue(newTx(t, 2, transaction.PriorityPoll))
		assert.Equal(2, q.Clear())
		assert.True(q.IsEmpty())

		// Cleared frames are no longer duplicates.
		assert.True(q.Enqueue(newTx(t, 1, transaction.PriorityGet)))
	})

	t.Run("Concurrency", func(t *testing.T) {
		q := NewSendQueue(1)

		txs := make([]*transaction.Transaction, 200)
		for i := range txs {
			txs[i] = newTx(t, byte(i), transaction.Priority(i%transaction.NumPriorities+1))
		}

		var wg sync.WaitGroup
		for _, tx := range txs {
			wg.Add(1)
			go func(tx *transaction.Transaction) {
				defer wg.Done()
				q.Enqueue(tx)
			}(tx)
		}
		wg.Wait()

		assert.Equal(200, q.Length())

		last := transaction.PriorityImmediate
		for i := 0; i < 200; i++ {
			tx, ok := q.DequeueHighest()
			assert.True(ok)
			assert.GreaterOrEqual(tx.Priority(), last)
			last = tx.Priority()
		}
		assert.True(q.IsEmpty())
	})
}

func BenchmarkSendQueue(b *testing.B) {
	q := NewSendQueue(64)
	txs := make([]*transaction.Transaction, 64)
	for i := range txs {
		txs[i] = newTx(b, byte(i), transaction.Priority(i%transaction.NumPriorities+1))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tx := range txs {
			q.Enqueue(tx)
		}
		for !q.IsEmpty() {
			q.DequeueHighest()
		}
	}
}
