package speedlimit

// Source yields successive items of a sequence. It reports ok == false once
// the sequence is exhausted and must not be called again after that.
type Source[T any] func() (item T, ok bool)

// SizeFunc computes an item's size in token units.
type SizeFunc[T any] func(item T) int

// FromSlice adapts a slice into a Source.
func FromSlice[T any](items []T) Source[T] {
	i := 0
	return func() (T, bool) {
		if i >= len(items) {
			var zero T
			return zero, false
		}
		item := items[i]
		i++
		return item, true
	}
}

// Wrap returns an iterator yielding src's items unchanged, throttled by l.
// size may be nil, in which case every item counts as one token. The
// iterator is lazy, finite iff src is finite, and not restartable.
//
//	it := speedlimit.Wrap(l, src, size)
//	for it.Next() {
//	    handle(it.Item())
//	}
//	if err := it.Err(); err != nil {
//	    // the consumer fell below the minimum rate
//	}
func Wrap[T any](l *Limiter, src Source[T], size SizeFunc[T]) *Iterator[T] {
	return &Iterator[T]{l: l, src: src, size: size}
}

// Iterator is a rate-limited cursor over a Source. Next may block on the
// limiter's SleepFunc; it must be driven by a single goroutine.
type Iterator[T any] struct {
	l    *Limiter
	src  Source[T]
	size SizeFunc[T]
	item T
	err  error
	done bool
}

// Next advances to the next item, blocking until the token bucket admits it.
// It returns false when the source is exhausted or the limiter failed.
func (it *Iterator[T]) Next() bool {
	if it.done {
		return false
	}

	item, ok := it.src()
	if !ok {
		it.done = true
		return false
	}

	size := 1.0
	if it.size != nil {
		size = float64(it.size(item))
	}
	if err := it.l.admit(size); err != nil {
		it.err = err
		it.done = true
		return false
	}

	it.item = item
	return true
}

// Item returns the item produced by the last successful Next.
func (it *Iterator[T]) Item() T {
	return it.item
}

// Err returns the error that terminated iteration, or nil after a normal
// exhaustion of the source.
func (it *Iterator[T]) Err() error {
	return it.err
}
