package synckit

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	syncErrors "github.com/c0deZ3R0/productsync/errors"
	"github.com/c0deZ3R0/productsync/logging"
)

// Engine reconciles the local store with the remote and drains the upload
// queue. It is created once per process and shared by the UI, the CLI and
// the scheduler.
type Engine struct {
	store     LocalStore
	remote    RemoteClient
	logger    *slog.Logger
	metrics   MetricsCollector
	readImage func(path string) ([]byte, error)

	// Internal state
	mu        sync.RWMutex
	scheduler SyncScheduler
	closed    bool

	// held for a whole ProcessPending pass
	processMu sync.Mutex
}

// NewEngine wires the engine to its store and remote client.
func NewEngine(store LocalStore, remote RemoteClient, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, syncErrors.WrapOpComponentKind(
			fmt.Errorf("store is required"), "synckit.NewEngine", "synckit", syncErrors.KindInvalid)
	}
	if remote == nil {
		return nil, syncErrors.WrapOpComponentKind(
			fmt.Errorf("remote client is required"), "synckit.NewEngine", "synckit", syncErrors.KindInvalid)
	}

	e := &Engine{
		store:     store,
		remote:    remote,
		logger:    logging.Discard(),
		metrics:   &NoOpMetricsCollector{},
		readImage: defaultImageReader,
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, syncErrors.NewWithComponent(syncErrors.OpValidate, "synckit", err)
		}
	}
	e.logger = e.logger.With("component", "engine")
	return e, nil
}

// SetScheduler attaches the scheduler that Submit kicks after an offline save.
func (e *Engine) SetScheduler(s SyncScheduler) {
	e.mu.Lock()
	e.scheduler = s
	e.mu.Unlock()
}

// Close marks the engine closed. The store and the remote are owned by the
// caller and stay open.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *Engine) checkOpen(op syncErrors.Operation) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return syncErrors.New(op, fmt.Errorf("engine is closed"))
	}
	return nil
}

// Refresh replaces every confirmed product with the remote snapshot and drops
// pending placeholders the snapshot now contains. The three steps commit
// together, so observers never see a partial state. On failure the store is
// left as it was.
func (e *Engine) Refresh(ctx context.Context) Resource[struct{}] {
	start := time.Now()
	defer func() { e.metrics.RecordDuration("refresh", time.Since(start)) }()

	if err := e.checkOpen(syncErrors.OpRefresh); err != nil {
		return Failure[struct{}](err)
	}

	e.logger.Debug("Fetching remote snapshot")
	snapshot, err := e.remote.ListProducts(ctx)
	if err != nil {
		err = asRemoteError(syncErrors.OpRefresh, err)
		e.fail("refresh", err)
		e.logger.Warn("Refresh failed: remote unavailable", "error", err)
		return Failure[struct{}](err)
	}

	records := make([]ProductRecord, 0, len(snapshot))
	confirmed := make(map[StableKey]struct{}, len(snapshot))
	for _, dto := range snapshot {
		r := dto.Record()
		records = append(records, r)
		confirmed[r.Key()] = struct{}{}
	}

	var resolved int
	err = e.store.Update(ctx, func(tx StoreTx) error {
		if err := tx.ClearNonPending(ctx); err != nil {
			return err
		}
		if err := tx.InsertAll(ctx, records); err != nil {
			return err
		}
		pending, err := tx.GetAllPending(ctx)
		if err != nil {
			return err
		}
		for _, p := range pending {
			if _, ok := confirmed[p.Key()]; !ok {
				continue
			}
			if err := tx.DeleteByID(ctx, p.ID); err != nil {
				return err
			}
			resolved++
		}
		return nil
	})
	if err != nil {
		err = syncErrors.WrapStorage(err, syncErrors.OpRefresh, "engine")
		e.fail("refresh", err)
		e.logger.Error("Refresh failed: could not apply snapshot", "error", err)
		return Failure[struct{}](err)
	}

	e.metrics.RecordSnapshot(len(records))
	e.logger.Info("Refresh completed",
		"snapshot_size", len(records),
		"pending_resolved", resolved,
		"duration", time.Since(start))
	return Success(struct{}{})
}

// AddOnline sends the product straight to the remote and then refreshes.
// A failure of either step is returned as Failure; the caller decides whether
// to fall back to EnqueueOffline.
func (e *Engine) AddOnline(ctx context.Context, in ProductInput) Resource[struct{}] {
	start := time.Now()
	defer func() { e.metrics.RecordDuration("add_online", time.Since(start)) }()

	if err := e.checkOpen(syncErrors.OpAddOnline); err != nil {
		return Failure[struct{}](err)
	}
	if err := in.Validate(); err != nil {
		e.fail("add_online", err)
		return Failure[struct{}](err)
	}

	req, err := e.createRequest(in.Normalized())
	if err != nil {
		e.fail("add_online", err)
		return Failure[struct{}](err)
	}

	receipt, err := e.remote.CreateProduct(ctx, req)
	if err != nil {
		err = asRemoteError(syncErrors.OpAddOnline, err)
		e.fail("add_online", err)
		e.logger.Warn("Create failed", "name", req.Name, "error", err)
		return Failure[struct{}](err)
	}
	e.logger.Info("Product created remotely",
		"name", req.Name,
		"product_id", receipt.ProductID,
		"message", receipt.Message)

	return e.Refresh(ctx)
}

func (e *Engine) createRequest(in ProductInput) (CreateProductRequest, error) {
	req := CreateProductRequest{
		Name:  in.Name,
		Type:  in.Type,
		Price: in.Price,
		Tax:   in.Tax,
	}
	if len(in.Images) == 0 {
		return req, nil
	}

	data, err := e.readImage(in.Images[0])
	if err != nil {
		return req, syncErrors.NewStorageError(syncErrors.OpAddOnline,
			fmt.Errorf("read image %s: %w", filepath.Base(in.Images[0]), err))
	}
	req.Image = data
	req.ImageName = "product" + mimetype.Detect(data).Extension()
	return req, nil
}

// ObserveProducts emits Loading, runs one Refresh, then streams the store's
// contents as Success. A failing refresh is logged and the cached rows are
// still delivered. Storage errors arrive as Failure and do not end the
// stream. The channel closes when ctx is done.
func (e *Engine) ObserveProducts(ctx context.Context) <-chan Resource[[]ProductRecord] {
	out := make(chan Resource[[]ProductRecord], 1)

	go func() {
		defer close(out)

		if !sendResource(ctx, out, Loading[[]ProductRecord]()) {
			return
		}

		if res := e.Refresh(ctx); res.IsError() {
			e.logger.Warn("Initial refresh failed, serving cached products", "error", res.Err())
		}

		for change := range e.store.ObserveAll(ctx) {
			var res Resource[[]ProductRecord]
			if change.Err != nil {
				err := syncErrors.WrapStorage(change.Err, syncErrors.OpObserve, "engine")
				e.logger.Error("Product feed error", "error", err)
				res = Failure[[]ProductRecord](err)
			} else {
				res = Success(change.Records)
			}
			if !sendResource(ctx, out, res) {
				return
			}
		}
	}()

	return out
}

func sendResource[T any](ctx context.Context, out chan<- Resource[T], r Resource[T]) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

// EnqueueOffline stores the product as a pending placeholder and queues it
// for upload. Both rows commit together, placeholder first, so the product
// is visible right away.
func (e *Engine) EnqueueOffline(ctx context.Context, in ProductInput) (PendingUpload, error) {
	start := time.Now()
	defer func() { e.metrics.RecordDuration("enqueue_offline", time.Since(start)) }()

	if err := e.checkOpen(syncErrors.OpEnqueue); err != nil {
		return PendingUpload{}, err
	}
	if err := in.Validate(); err != nil {
		e.fail("enqueue_offline", err)
		return PendingUpload{}, err
	}
	in = in.Normalized()

	upload := PendingUpload{
		Name:      in.Name,
		Type:      in.Type,
		Price:     in.Price,
		Tax:       in.Tax,
		CreatedAt: time.Now().UTC(),
	}
	if len(in.Images) > 0 {
		upload.ImagePath = in.Images[0]
	}

	err := e.store.Update(ctx, func(tx StoreTx) error {
		localID, err := tx.Insert(ctx, in.Record())
		if err != nil {
			return err
		}
		upload.LocalProductID = &localID

		id, err := tx.PendingInsert(ctx, upload)
		if err != nil {
			return err
		}
		upload.ID = id
		return nil
	})
	if err != nil {
		err = syncErrors.WrapStorage(err, syncErrors.OpEnqueue, "engine")
		e.fail("enqueue_offline", err)
		e.logger.Error("Failed to queue product", "name", in.Name, "error", err)
		return PendingUpload{}, err
	}

	e.logger.Info("Product saved offline",
		"name", upload.Name,
		"pending_id", upload.ID,
		"local_product_id", *upload.LocalProductID)
	return upload, nil
}

// Submit tries AddOnline and falls back to EnqueueOffline when the remote or
// the refresh fails, then asks the scheduler for an immediate sync. Invalid
// input is rejected without queueing.
func (e *Engine) Submit(ctx context.Context, in ProductInput) SubmitResult {
	res := e.AddOnline(ctx, in)
	if res.IsSuccess() {
		return SubmitResult{Outcome: SubmitOnline}
	}
	if syncErrors.IsValidation(res.Err()) {
		return SubmitResult{Outcome: SubmitRejected, Err: res.Err()}
	}

	e.logger.Info("Online add failed, saving offline", "reason", res.Err())
	upload, err := e.EnqueueOffline(ctx, in)
	if err != nil {
		return SubmitResult{Outcome: SubmitRejected, Err: err}
	}

	e.mu.RLock()
	sched := e.scheduler
	e.mu.RUnlock()
	if sched != nil {
		if err := sched.RequestImmediateSync(); err != nil {
			e.logger.Warn("Could not request immediate sync", "error", err)
		}
	}
	return SubmitResult{Outcome: SubmitSavedOffline, Pending: &upload}
}

// ProcessPending uploads queued products oldest first. An item that fails is
// left in place and the pass moves on. Only a failure to read the queue is
// returned as an error. Passes never overlap.
func (e *Engine) ProcessPending(ctx context.Context) (ProcessResult, error) {
	e.processMu.Lock()
	defer e.processMu.Unlock()

	start := time.Now()
	var result ProcessResult
	defer func() {
		e.metrics.RecordDuration("process_pending", time.Since(start))
		e.metrics.RecordUploads(result.Synced, result.Failed)
	}()

	if err := e.checkOpen(syncErrors.OpProcessPending); err != nil {
		return result, err
	}

	queue, err := e.store.PendingAll(ctx)
	if err != nil {
		err = syncErrors.WrapStorage(err, syncErrors.OpProcessPending, "engine")
		e.fail("process_pending", err)
		e.logger.Error("Failed to read pending queue", "error", err)
		return result, err
	}
	result.Before = len(queue)
	if result.Before == 0 {
		e.logger.Debug("Pending queue is empty")
		return result, nil
	}

	e.logger.Info("Processing pending uploads", "count", result.Before)
	for _, item := range queue {
		if ctx.Err() != nil {
			break
		}
		if err := e.uploadOne(ctx, item); err != nil {
			result.Failed++
			e.logger.Warn("Pending upload failed, keeping it queued",
				"pending_id", item.ID,
				"name", item.Name,
				"error", err)
		}
	}

	remaining, err := e.store.PendingAll(ctx)
	if err != nil {
		err = syncErrors.WrapStorage(err, syncErrors.OpProcessPending, "engine")
		e.logger.Error("Failed to re-read pending queue", "error", err)
		return result, err
	}
	result.After = len(remaining)
	result.Synced = max(result.Before-result.After, 0)

	e.logger.Info("Pending pass completed",
		"synced", result.Synced,
		"failed", result.Failed,
		"remaining", result.After,
		"duration", time.Since(start))
	return result, nil
}

func (e *Engine) uploadOne(ctx context.Context, item PendingUpload) error {
	if res := e.AddOnline(ctx, item.Input()); res.IsError() {
		return res.Err()
	}
	return e.store.Update(ctx, func(tx StoreTx) error {
		if item.LocalProductID != nil {
			if err := tx.DeleteByID(ctx, *item.LocalProductID); err != nil {
				return err
			}
		}
		return tx.PendingDelete(ctx, item.ID)
	})
}

func (e *Engine) fail(op string, err error) {
	kind := "unknown"
	switch {
	case syncErrors.IsValidation(err):
		kind = "validation"
	case syncErrors.IsStorage(err):
		kind = "storage"
	case syncErrors.IsRemote(err):
		kind = "remote"
	}
	e.metrics.RecordError(op, kind)
}

func asRemoteError(op syncErrors.Operation, err error) error {
	if syncErrors.IsRemote(err) {
		return err
	}
	return syncErrors.NewRemoteError(op, 0, "", err)
}
