package synckit

import (
	"context"
	"time"
)

// StoreTx is the set of store operations that can run inside one transaction.
type StoreTx interface {
	// ClearNonPending deletes every confirmed product.
	ClearNonPending(ctx context.Context) error
	InsertAll(ctx context.Context, records []ProductRecord) error
	// Insert stores one product and returns its id.
	Insert(ctx context.Context, record ProductRecord) (int64, error)
	DeleteByID(ctx context.Context, id int64) error
	GetAllPending(ctx context.Context) ([]ProductRecord, error)

	// PendingAll lists the upload queue oldest first.
	PendingAll(ctx context.Context) ([]PendingUpload, error)
	PendingInsert(ctx context.Context, upload PendingUpload) (int64, error)
	PendingDelete(ctx context.Context, id int64) error
}

// LocalStore persists products and the upload queue on the device.
//
// Every method outside Update is its own transaction. Update runs fn in a
// single transaction and observers see its effect at once, after commit.
type LocalStore interface {
	StoreTx

	// ObserveAll streams the full product list, newest first. The first
	// value is the current state and a new one follows every committed
	// write. The channel closes when ctx is done or the store closes.
	ObserveAll(ctx context.Context) <-chan ProductsChange

	All(ctx context.Context) ([]ProductRecord, error)

	Update(ctx context.Context, fn func(tx StoreTx) error) error

	Close() error
}

// RemoteClient talks to the source of truth.
type RemoteClient interface {
	ListProducts(ctx context.Context) ([]ProductDTO, error)
	CreateProduct(ctx context.Context, req CreateProductRequest) (CreateReceipt, error)
}

// SyncScheduler runs the pending queue processor in the background.
type SyncScheduler interface {
	// ScheduleRecurring arms the periodic job, replacing an existing one.
	ScheduleRecurring(interval time.Duration, c Constraints) error
	// ScheduleOnceReplacing queues a one-shot job under name, cancelling a
	// queued or retrying job with the same name.
	ScheduleOnceReplacing(name string, c Constraints) error
	// RequestImmediateSync is ScheduleOnceReplacing with the uploader's name.
	RequestImmediateSync() error
}

// PendingProcessor is what a scheduler runs.
type PendingProcessor interface {
	ProcessPending(ctx context.Context) (ProcessResult, error)
}
