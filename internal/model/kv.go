package model

import (
	"context"

	"github.com/roach88/docket/internal/ir"
)

// KV is the key-value store a DB persists records in.
//
// Get and ForEach read synchronously. Set and Remove may complete
// asynchronously and must call done exactly once, after the write is
// durable or has failed. *store.Store implements KV.
type KV interface {
	Get(key string) (ir.Object, bool)
	Set(key string, value ir.Object, done func(error))
	Remove(key string, done func(error))
	ForEach(fn func(key string, value ir.Object) bool)
	Size() int
}

// Dropper is implemented by stores that can clear every row at once.
type Dropper interface {
	Drop(ctx context.Context) error
}

// await submits a write and blocks until its done callback fires or ctx
// ends. The write itself is not cancelled.
func await(ctx context.Context, submit func(done func(error))) error {
	errc := make(chan error, 1)
	submit(func(err error) {
		select {
		case errc <- err:
		default:
		}
	})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
