package sqlite

import (
	"context"
	"log/slog"
	stdSync "sync"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
	"github.com/c0deZ3R0/productsync/synckit"
)

// feed fans committed writes out to observers. Each observer owns a dirty
// flag (a 1-slot channel); notify sets every flag without blocking, and the
// observer re-reads the table when it sees its flag. Several commits between
// two reads collapse into one value, which always reflects the latest state.
type feed struct {
	load   func(ctx context.Context) ([]synckit.ProductRecord, error)
	logger *slog.Logger

	mu     stdSync.Mutex
	subs   map[int]chan struct{}
	nextID int
	done   chan struct{}
	once   stdSync.Once
}

func newFeed(load func(ctx context.Context) ([]synckit.ProductRecord, error), logger *slog.Logger) *feed {
	return &feed{
		load:   load,
		logger: logger,
		subs:   make(map[int]chan struct{}),
		done:   make(chan struct{}),
	}
}

func (f *feed) subscribe(ctx context.Context) <-chan synckit.ProductsChange {
	out := make(chan synckit.ProductsChange)
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{} // first value is the current state

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = dirty
	f.mu.Unlock()

	go func() {
		defer close(out)
		defer f.unsubscribe(id)

		for {
			select {
			case <-ctx.Done():
				return
			case <-f.done:
				return
			case <-dirty:
			}

			records, err := f.load(ctx)
			if ctx.Err() != nil {
				return
			}
			change := synckit.ProductsChange{Records: records}
			if err != nil {
				f.logger.Error("Observer reload failed", "error", err)
				change = synckit.ProductsChange{Err: syncErrors.WrapStorage(err, syncErrors.OpObserve, component)}
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			case <-f.done:
				return
			}
		}
	}()

	return out
}

func (f *feed) unsubscribe(id int) {
	f.mu.Lock()
	delete(f.subs, id)
	f.mu.Unlock()
}

func (f *feed) notify() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, dirty := range f.subs {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}
}

func (f *feed) observers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *feed) close() {
	f.once.Do(func() { close(f.done) })
}
