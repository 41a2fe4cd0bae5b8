package synckit_test

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/storage/sqlite"
	"github.com/c0deZ3R0/productsync/synckit"
	"github.com/c0deZ3R0/productsync/transport/httptransport"
)

type harness struct {
	server *httptransport.Server
	store  *sqlite.Store
	engine *synckit.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	srv := httptransport.NewServer(httptransport.WithServerLogger(logging.Discard()))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	cfg := sqlite.DefaultConfig(filepath.Join(t.TempDir(), "products.db"))
	cfg.Logger = logging.Discard()
	store, err := sqlite.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	client := httptransport.NewClient(ts.URL,
		httptransport.WithLogger(logging.Discard()),
		httptransport.WithImageBaseURL(ts.URL),
		httptransport.WithTimeout(5*time.Second),
	)

	engine, err := synckit.NewEngine(store, client, synckit.WithLogger(logging.Discard()))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	return &harness{server: srv, store: store, engine: engine}
}

func (h *harness) records(t *testing.T) []synckit.ProductRecord {
	t.Helper()
	records, err := h.store.All(context.Background())
	require.NoError(t, err)
	return records
}

func TestEndToEndOnlineAdd(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	img := filepath.Join(t.TempDir(), "desk.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\n0000"), 0o600))

	res := h.engine.AddOnline(ctx, synckit.ProductInput{
		Name: "Desk", Type: "Product", Price: "1200.00", Tax: "18", Images: []string{img},
	})
	require.True(t, res.IsSuccess(), res.Err())

	records := h.records(t)
	require.Len(t, records, 1)
	assert.Equal(t, "Desk", records[0].Name)
	assert.False(t, records[0].IsPending)
	assert.Equal(t, "1200", records[0].Price.String())
	assert.NotEmpty(t, records[0].Image)
}

func TestEndToEndOfflineThenSync(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.server.SetFailing(true)

	result := h.engine.Submit(ctx, synckit.ProductInput{Name: "Pen", Type: "Product", Price: "10", Tax: "5"})
	require.Equal(t, synckit.SubmitSavedOffline, result.Outcome)

	records := h.records(t)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsPending)

	res, err := h.engine.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.After)

	h.server.SetFailing(false)
	res, err = h.engine.ProcessPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, synckit.ProcessResult{Before: 1, After: 0, Synced: 1}, res)

	records = h.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsPending)
	assert.Len(t, h.server.Products(), 1)

	queue, err := h.store.PendingAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, queue)
}

func TestEndToEndRefreshOfflineKeepsCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.server.Add(httptransport.JSONProduct{ProductName: "Cup", ProductType: "Product", Price: dec("4"), Tax: dec("12")})

	require.True(t, h.engine.Refresh(ctx).IsSuccess())
	before := h.records(t)
	require.Len(t, before, 1)

	h.server.SetFailing(true)
	assert.True(t, h.engine.Refresh(ctx).IsError())
	assert.Equal(t, before, h.records(t))
}

func TestEndToEndRefreshResolvesPending(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.engine.EnqueueOffline(ctx, synckit.ProductInput{Name: "Lamp", Type: "Product", Price: "20.00", Tax: "5"})
	require.NoError(t, err)

	// someone else already created the same product
	h.server.Add(httptransport.JSONProduct{ProductName: "Lamp", ProductType: "Product", Price: dec("20"), Tax: dec("5.0")})

	require.True(t, h.engine.Refresh(ctx).IsSuccess())
	records := h.records(t)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsPending)

	queue, err := h.store.PendingAll(ctx)
	require.NoError(t, err)
	assert.Len(t, queue, 1)
}

func TestEnqueueDuringRefreshIsNeverWiped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.server.Add(httptransport.JSONProduct{ProductName: "Cup", ProductType: "Product", Price: dec("4"), Tax: dec("12")})

	const (
		writers    = 8
		perWriter  = 5
		refreshers = 3
	)

	var (
		writing      atomic.Int32
		refreshes    atomic.Int32
		refreshFails atomic.Int32
	)
	writing.Store(writers)

	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < refreshers; r++ {
		g.Go(func() error {
			for writing.Load() > 0 || refreshes.Load() < refreshers {
				if h.engine.Refresh(gctx).IsError() {
					refreshFails.Add(1)
				}
				refreshes.Add(1)
			}
			return nil
		})
	}
	for w := 0; w < writers; w++ {
		w := w
		g.Go(func() error {
			defer writing.Add(-1)
			for i := 0; i < perWriter; i++ {
				_, err := h.engine.EnqueueOffline(gctx, synckit.ProductInput{
					Name:  fmt.Sprintf("Item-%d-%d", w, i),
					Type:  "Product",
					Price: "1",
					Tax:   "0",
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.Zero(t, refreshFails.Load())

	records := h.records(t)
	pendingIDs := make(map[int64]string)
	confirmed := 0
	for _, r := range records {
		if r.IsPending {
			pendingIDs[r.ID] = r.Name
		} else {
			confirmed++
			assert.Equal(t, "Cup", r.Name)
		}
	}
	assert.Equal(t, 1, confirmed)
	assert.Len(t, pendingIDs, writers*perWriter)

	queue, err := h.store.PendingAll(ctx)
	require.NoError(t, err)
	require.Len(t, queue, writers*perWriter)
	for _, item := range queue {
		require.NotNil(t, item.LocalProductID)
		assert.Equal(t, item.Name, pendingIDs[*item.LocalProductID], "queue row %d lost its placeholder", item.ID)
	}
}

func TestEndToEndObserve(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := newHarness(t)
	h.server.Add(httptransport.JSONProduct{ProductName: "Cup", ProductType: "Product", Price: dec("4"), Tax: dec("12")})

	states := h.engine.ObserveProducts(ctx)

	var got []synckit.Resource[[]synckit.ProductRecord]
	deadline := time.After(3 * time.Second)
	for len(got) < 2 {
		select {
		case r := <-states:
			got = append(got, r)
		case <-deadline:
			t.Fatal("timed out")
		}
	}
	assert.True(t, got[0].IsLoading())
	require.True(t, got[1].IsSuccess())
	require.Len(t, got[1].Data(), 1)
	assert.Equal(t, "Cup", got[1].Data()[0].Name)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
