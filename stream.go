package docsync

// MaxEmissions is the maximum number of values a Stream delivers.
//
// A hybrid find may answer once from local data and once more after the
// remote store replied.
const MaxEmissions = 2

// Result is one answer delivered on a Stream.
type Result[T any] struct {
	Value T
	Err   error
}

// Stream delivers at most MaxEmissions results for one logical query, then it
// is closed.
//
// A Result with non-nil Err is always the last one.
type Stream[T any] <-chan Result[T]

// Last drains the stream and returns its final result.
func (s Stream[T]) Last() (T, error) {
	var last Result[T]
	for r := range s {
		last = r
	}
	return last.Value, last.Err
}

// First returns the first result of the stream,
// the rest of the stream is drained in the background.
func (s Stream[T]) First() (T, error) {
	r := <-s
	go func() {
		for range s {
		}
	}()
	return r.Value, r.Err
}

// All drains the stream and returns every value delivered,
// together with the error if the stream ended with one.
func (s Stream[T]) All() ([]T, error) {
	var values []T
	for r := range s {
		if r.Err != nil {
			return values, r.Err
		}
		values = append(values, r.Value)
	}
	return values, nil
}

// Emitter is the producing side of a Stream.
//
// It never blocks as long as the producer respects MaxEmissions.
type Emitter[T any] struct {
	ch chan Result[T]
}

// NewEmitter creates a new Emitter.
func NewEmitter[T any]() *Emitter[T] {
	return &Emitter[T]{
		ch: make(chan Result[T], MaxEmissions),
	}
}

// Stream returns the consuming side.
func (e *Emitter[T]) Stream() Stream[T] {
	return e.ch
}

// Emit delivers a value.
func (e *Emitter[T]) Emit(v T) {
	e.ch <- Result[T]{Value: v}
}

// Fail delivers an error. The caller should Close right after.
func (e *Emitter[T]) Fail(err error) {
	e.ch <- Result[T]{Err: err}
}

// Close closes the stream.
func (e *Emitter[T]) Close() {
	close(e.ch)
}

// Done returns a closed Stream delivering v.
func Done[T any](v T) Stream[T] {
	e := NewEmitter[T]()
	e.Emit(v)
	e.Close()
	return e.Stream()
}

// Failed returns a closed Stream delivering err.
func Failed[T any](err error) Stream[T] {
	e := NewEmitter[T]()
	e.Fail(err)
	e.Close()
	return e.Stream()
}
