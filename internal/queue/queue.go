// Package queue provides FIFO queues used by the session executor to buffer
// pending actions between producers and the single drain loop.
package queue

// Queue defines the interface for a FIFO queue of T.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue.
	Enqueue(item T)
	// Dequeue removes and returns the item at the head of the queue.
	// It returns the zero value of T and false if the queue is empty.
	Dequeue() (T, bool)
	// Peek returns the item at the head of the queue without removing it.
	// It returns the zero value of T and false if the queue is empty.
	Peek() (T, bool)
	// Reset to an empty queue.
	Reset()
	// IsEmpty returns true if the queue is empty, false otherwise.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
