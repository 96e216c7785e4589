package fbgraph

import (
	"context"
	"iter"

	pkgerrs "github.com/jamesprial/go-fbgraph/pkg/errors"
)

// Iterator walks the pages of a connection forward, fetching each page when
// it is asked for. The first Next returns the page the iterator was created
// from. An Iterator is not safe for concurrent use.
//
//	it := conn.Iterator(ctx)
//	for it.HasNext() {
//		posts, err := it.Next()
//		if err != nil {
//			return err
//		}
//		...
//	}
type Iterator[T any] struct {
	ctx     context.Context
	current *Connection[T]
	started bool
}

// HasNext returns true if Next will return another page.
func (it *Iterator[T]) HasNext() bool {
	if !it.started {
		return true
	}
	return it.current.HasNext()
}

// Next returns the items of the next page. Once the last page has been
// returned it fails with errors.ErrPaginationExhausted. A failed fetch leaves
// the iterator where it was, so Next may be called again.
func (it *Iterator[T]) Next() ([]T, error) {
	if !it.started {
		it.started = true
		return it.current.Data(), nil
	}

	if !it.current.HasNext() {
		return nil, pkgerrs.ErrPaginationExhausted
	}

	next, err := it.current.FetchNextPage(it.ctx)
	if err != nil {
		return nil, err
	}
	it.current = next
	return next.Data(), nil
}

// Snapshot returns the Connection behind the most recent Next, or the
// starting page before the first Next. It does not advance the iterator.
func (it *Iterator[T]) Snapshot() *Connection[T] {
	return it.current
}

// Pages returns a sequence over this page and every following page. Iteration
// stops after the first error, which is yielded with a nil Connection.
func (c *Connection[T]) Pages(ctx context.Context) iter.Seq2[*Connection[T], error] {
	return func(yield func(*Connection[T], error) bool) {
		cur := c
		for {
			if !yield(cur, nil) {
				return
			}
			if !cur.HasNext() {
				return
			}
			next, err := cur.FetchNextPage(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			cur = next
		}
	}
}

// All returns a sequence over the items of this page and every following page.
func (c *Connection[T]) All(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for page, err := range c.Pages(ctx) {
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			for _, item := range page.Data() {
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}

// Collect fetches every remaining item, stopping after maxItems when it is
// positive. Items gathered before a failure are returned with the error.
func (c *Connection[T]) Collect(ctx context.Context, maxItems int) ([]T, error) {
	var items []T
	for item, err := range c.All(ctx) {
		if err != nil {
			return items, err
		}
		items = append(items, item)
		if maxItems > 0 && len(items) >= maxItems {
			break
		}
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}
