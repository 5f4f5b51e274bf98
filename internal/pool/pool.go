// Package pool provides a bounded FIFO pool of reusable values,
// used to reuse compressors across remote requests.
//
// Get does not block on an empty pool,
// and Put does not block on a full pool.
package pool

import (
	"sync"
)

type node[T any] struct {
	value T
	next  *node[T]
}

// Pool is a FIFO pool of reusable values of type T.
type Pool[T any] struct {
	newFunc func() T
	maxSize int

	lock sync.Mutex
	size int
	head *node[T]
	tail *node[T]
}

// New creates a new pool creating values with newFunc when empty.
//
// If maxSize <= 0, the size of the pool is unlimited.
func New[T any](maxSize int, newFunc func() T) *Pool[T] {
	return &Pool[T]{
		newFunc: newFunc,
		maxSize: maxSize,
	}
}

// Size returns the number of idle values in the pool.
func (p *Pool[T]) Size() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.size
}

// Get takes the oldest idle value, or creates a new one if the pool is empty.
func (p *Pool[T]) Get() T {
	p.lock.Lock()
	head := p.head
	if head == nil {
		p.lock.Unlock()
		return p.newFunc()
	}
	p.head = head.next
	p.size--
	if p.size == 0 {
		p.tail = nil
	}
	p.lock.Unlock()
	return head.value
}

// Put returns a value to the pool.
//
// It reports false and drops the value when the pool is already full.
func (p *Pool[T]) Put(value T) bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.maxSize > 0 && p.size >= p.maxSize {
		return false
	}
	n := &node[T]{value: value}
	p.size++
	if p.tail == nil {
		p.head = n
	} else {
		p.tail.next = n
	}
	p.tail = n
	return true
}
