package synckit

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

var errInjected = errors.New("injected failure")

// memState is the whole content of a memStore.
type memState struct {
	products []ProductRecord
	pending  []PendingUpload
	nextID   int64
	nextPend int64
}

func (s memState) clone() memState {
	out := s
	out.products = append([]ProductRecord(nil), s.products...)
	out.pending = append([]PendingUpload(nil), s.pending...)
	return out
}

// memTx applies store operations to a memState.
type memTx struct {
	st       *memState
	failNext func(op string) error
}

func (t *memTx) check(op string) error {
	if t.failNext != nil {
		return t.failNext(op)
	}
	return nil
}

func (t *memTx) ClearNonPending(ctx context.Context) error {
	if err := t.check("ClearNonPending"); err != nil {
		return err
	}
	kept := t.st.products[:0:0]
	for _, p := range t.st.products {
		if p.IsPending {
			kept = append(kept, p)
		}
	}
	t.st.products = kept
	return nil
}

func (t *memTx) InsertAll(ctx context.Context, records []ProductRecord) error {
	for _, r := range records {
		if _, err := t.Insert(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (t *memTx) Insert(ctx context.Context, record ProductRecord) (int64, error) {
	if err := t.check("Insert"); err != nil {
		return 0, err
	}
	t.st.nextID++
	record.ID = t.st.nextID
	t.st.products = append(t.st.products, record)
	return record.ID, nil
}

func (t *memTx) DeleteByID(ctx context.Context, id int64) error {
	if err := t.check("DeleteByID"); err != nil {
		return err
	}
	for i, p := range t.st.products {
		if p.ID == id {
			t.st.products = append(t.st.products[:i:i], t.st.products[i+1:]...)
			break
		}
	}
	return nil
}

func (t *memTx) GetAllPending(ctx context.Context) ([]ProductRecord, error) {
	var out []ProductRecord
	for _, p := range t.st.products {
		if p.IsPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (t *memTx) PendingAll(ctx context.Context) ([]PendingUpload, error) {
	if err := t.check("PendingAll"); err != nil {
		return nil, err
	}
	out := append([]PendingUpload(nil), t.st.pending...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (t *memTx) PendingInsert(ctx context.Context, upload PendingUpload) (int64, error) {
	if err := t.check("PendingInsert"); err != nil {
		return 0, err
	}
	t.st.nextPend++
	upload.ID = t.st.nextPend
	t.st.pending = append(t.st.pending, upload)
	return upload.ID, nil
}

func (t *memTx) PendingDelete(ctx context.Context, id int64) error {
	if err := t.check("PendingDelete"); err != nil {
		return err
	}
	for i, p := range t.st.pending {
		if p.ID == id {
			t.st.pending = append(t.st.pending[:i:i], t.st.pending[i+1:]...)
			break
		}
	}
	return nil
}

// memStore is an in-memory LocalStore with transactional Update and a
// change feed, used where the SQLite store would create an import cycle.
type memStore struct {
	mu    sync.Mutex
	state memState
	fail  func(op string) error
	subs  []chan struct{}
}

var _ LocalStore = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{}
}

// failOn makes the named operation fail until cleared with failOn("").
func (m *memStore) failOn(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if op == "" {
		m.fail = nil
		return
	}
	m.fail = func(got string) error {
		if got == op {
			return errInjected
		}
		return nil
	}
}

func (m *memStore) Update(ctx context.Context, fn func(tx StoreTx) error) error {
	m.mu.Lock()
	work := m.state.clone()
	tx := &memTx{st: &work, failNext: m.fail}
	if err := fn(tx); err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = work
	subs := append([]chan struct{}(nil), m.subs...)
	m.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}

func (m *memStore) read(fn func(tx *memTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	work := m.state.clone()
	return fn(&memTx{st: &work, failNext: m.fail})
}

func (m *memStore) ObserveAll(ctx context.Context) <-chan ProductsChange {
	out := make(chan ProductsChange)
	dirty := make(chan struct{}, 1)
	dirty <- struct{}{}

	m.mu.Lock()
	m.subs = append(m.subs, dirty)
	m.mu.Unlock()

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case <-dirty:
			}
			records, err := m.All(ctx)
			select {
			case out <- ProductsChange{Records: records, Err: err}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// All returns products newest first.
func (m *memStore) All(ctx context.Context) ([]ProductRecord, error) {
	var out []ProductRecord
	err := m.read(func(tx *memTx) error {
		if err := tx.check("All"); err != nil {
			return err
		}
		for i := len(tx.st.products) - 1; i >= 0; i-- {
			out = append(out, tx.st.products[i])
		}
		return nil
	})
	return out, err
}

func (m *memStore) ClearNonPending(ctx context.Context) error {
	return m.Update(ctx, func(tx StoreTx) error { return tx.ClearNonPending(ctx) })
}

func (m *memStore) InsertAll(ctx context.Context, records []ProductRecord) error {
	return m.Update(ctx, func(tx StoreTx) error { return tx.InsertAll(ctx, records) })
}

func (m *memStore) Insert(ctx context.Context, record ProductRecord) (id int64, err error) {
	err = m.Update(ctx, func(tx StoreTx) error {
		id, err = tx.Insert(ctx, record)
		return err
	})
	return id, err
}

func (m *memStore) DeleteByID(ctx context.Context, id int64) error {
	return m.Update(ctx, func(tx StoreTx) error { return tx.DeleteByID(ctx, id) })
}

func (m *memStore) GetAllPending(ctx context.Context) (out []ProductRecord, err error) {
	err = m.read(func(tx *memTx) error {
		out, err = tx.GetAllPending(ctx)
		return err
	})
	return out, err
}

func (m *memStore) PendingAll(ctx context.Context) (out []PendingUpload, err error) {
	err = m.read(func(tx *memTx) error {
		out, err = tx.PendingAll(ctx)
		return err
	})
	return out, err
}

func (m *memStore) PendingInsert(ctx context.Context, upload PendingUpload) (id int64, err error) {
	err = m.Update(ctx, func(tx StoreTx) error {
		id, err = tx.PendingInsert(ctx, upload)
		return err
	})
	return id, err
}

func (m *memStore) PendingDelete(ctx context.Context, id int64) error {
	return m.Update(ctx, func(tx StoreTx) error { return tx.PendingDelete(ctx, id) })
}

func (m *memStore) Close() error { return nil }

// fakeRemote is an in-memory remote. Created products show up in the next
// listing unless dropCreates is set.
type fakeRemote struct {
	mu          sync.Mutex
	products    []ProductDTO
	listErr     error
	createErr   error
	dropCreates bool
	creates     []CreateProductRequest
	lists       int
}

func (f *fakeRemote) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]ProductDTO(nil), f.products...), nil
}

func (f *fakeRemote) CreateProduct(ctx context.Context, req CreateProductRequest) (CreateReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return CreateReceipt{}, f.createErr
	}
	f.creates = append(f.creates, req)
	if !f.dropCreates {
		f.products = append(f.products, ProductDTO{
			Name:  req.Name,
			Type:  req.Type,
			Price: decimal.RequireFromString(req.Price),
			Tax:   decimal.RequireFromString(req.Tax),
		})
	}
	return CreateReceipt{Message: "Product added", ProductID: "1"}, nil
}

func (f *fakeRemote) setListErr(err error) {
	f.mu.Lock()
	f.listErr = err
	f.mu.Unlock()
}

func (f *fakeRemote) setCreateErr(err error) {
	f.mu.Lock()
	f.createErr = err
	f.mu.Unlock()
}

func (f *fakeRemote) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

// fakeScheduler records immediate sync requests.
type fakeScheduler struct {
	mu        sync.Mutex
	immediate int
}

func (f *fakeScheduler) ScheduleRecurring(interval time.Duration, c Constraints) error { return nil }

func (f *fakeScheduler) ScheduleOnceReplacing(name string, c Constraints) error {
	f.mu.Lock()
	f.immediate++
	f.mu.Unlock()
	return nil
}

func (f *fakeScheduler) RequestImmediateSync() error {
	return f.ScheduleOnceReplacing("once", DefaultConstraints)
}

func (f *fakeScheduler) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.immediate
}
