package queue

import (
	"sync/atomic"
	"unsafe"
)

// node represents a single entry in the lock-free queue.
type node[T any] struct {
	value T
	next  unsafe.Pointer
}

// lockFreeQueue is a Michael & Scott lock-free concurrent FIFO queue.
// Any number of producers may enqueue concurrently with a single consumer
// draining the queue; no mutex is involved on either path.
//
// It implements the Queue interface.
type lockFreeQueue[T any] struct {
	head   unsafe.Pointer
	tail   unsafe.Pointer
	length atomic.Int32
}

// NewLockFreeQueue creates a new lock-free concurrent queue of T.
func NewLockFreeQueue[T any]() Queue[T] {
	n := unsafe.Pointer(&node[T]{})
	return &lockFreeQueue[T]{head: n, tail: n}
}

func (q *lockFreeQueue[T]) Reset() {
	n := unsafe.Pointer(&node[T]{})
	atomic.StorePointer(&q.head, n)
	atomic.StorePointer(&q.tail, n)
	q.length.Store(0)
}

// Enqueue adds an item to the tail of the queue.
func (q *lockFreeQueue[T]) Enqueue(item T) {
	n := &node[T]{value: item}
	for {
		tail := q.load(&q.tail)
		next := q.load(&tail.next)
		// Are tail and next consistent?
		if tail != q.load(&q.tail) {
			continue
		}
		if next == nil {
			// Try to link the node at the end of the linked list.
			if q.cas(&tail.next, next, n) {
				// Enqueue done, try to swing tail to the inserted node.
				q.cas(&q.tail, tail, n)
				q.length.Add(1)
				return
			}
		} else {
			// Tail was not pointing to the last node, try to advance it.
			q.cas(&q.tail, tail, next)
		}
	}
}

// Dequeue removes and returns the item at the head of the queue.
// It returns the zero value of T and false if the queue is empty.
func (q *lockFreeQueue[T]) Dequeue() (T, bool) {
	for {
		head := q.load(&q.head)
		tail := q.load(&q.tail)
		next := q.load(&head.next)

		// Are head, tail, and next consistent?
		if head != q.load(&q.head) {
			continue
		}
		if head == tail {
			// Queue is empty, or tail is falling behind.
			if next == nil {
				var zero T
				return zero, false
			}
			q.cas(&q.tail, tail, next)

			continue
		}

		// Read value before CAS, otherwise another dequeue might free the next node.
		value := next.value
		if q.cas(&q.head, head, next) {
			q.length.Add(-1)
			return value, true
		}
	}
}

// Peek returns the item at the head of the queue without removing it.
// It returns the zero value of T and false if the queue is empty.
func (q *lockFreeQueue[T]) Peek() (T, bool) {
	for {
		head := q.load(&q.head)
		tail := q.load(&q.tail)
		next := q.load(&head.next)

		if head != q.load(&q.head) {
			continue
		}
		if head != tail {
			return next.value, true
		}
		if next == nil {
			var zero T
			return zero, false
		}
		q.cas(&q.tail, tail, next)
	}
}

// IsEmpty returns true if the queue is empty, false otherwise.
func (q *lockFreeQueue[T]) IsEmpty() bool {
	return q.length.Load() == 0
}

// Length returns the number of items in the queue.
func (q *lockFreeQueue[T]) Length() int {
	return int(q.length.Load())
}

func (q *lockFreeQueue[T]) load(p *unsafe.Pointer) *node[T] {
	return (*node[T])(atomic.LoadPointer(p))
}

func (q *lockFreeQueue[T]) cas(p *unsafe.Pointer, old, new *node[T]) bool {
	return atomic.CompareAndSwapPointer(p, unsafe.Pointer(old), unsafe.Pointer(new))
}
