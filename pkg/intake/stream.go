package intake

import (
	"context"
	"io"
)

// Stream is a finite asynchronous sequence. Next returns io.EOF once the
// sequence is exhausted; any other error fails it.
type Stream[T any] interface {
	Next(ctx context.Context) (T, error)
}

// Slice returns a Stream yielding items in order.
func Slice[T any](items ...T) Stream[T] {
	return &sliceStream[T]{items: items}
}

type sliceStream[T any] struct {
	items []T
}

func (s *sliceStream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if len(s.items) == 0 {
		return zero, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item, nil
}

// Chan adapts a producer goroutine to a Stream. The producer closes items
// when done, then sends at most one error on errc and closes it. A nil
// errc means the sequence cannot fail.
func Chan[T any](items <-chan T, errc <-chan error) Stream[T] {
	return &chanStream[T]{items: items, errc: errc}
}

type chanStream[T any] struct {
	items <-chan T
	errc  <-chan error
}

func (s *chanStream[T]) Next(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case item, ok := <-s.items:
		if ok {
			return item, nil
		}
	}
	if s.errc == nil {
		return zero, io.EOF
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case err, ok := <-s.errc:
		if ok && err != nil {
			return zero, err
		}
		return zero, io.EOF
	}
}
