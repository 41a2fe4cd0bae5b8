package view

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c0deZ3R0/productsync/logging"
	"github.com/c0deZ3R0/productsync/synckit"
)

// DefaultDebounce is how long the search query must be stable before it is
// applied.
const DefaultDebounce = 250 * time.Millisecond

// Source is the product stream a View is built on. synckit.Engine implements it.
type Source interface {
	ObserveProducts(ctx context.Context) <-chan synckit.Resource[[]synckit.ProductRecord]
}

type Option func(*View)

func WithDebounce(d time.Duration) Option {
	return func(v *View) { v.debounce = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.logger = l
		}
	}
}

// WithOptions sets the initial query, type filter and sort.
func WithOptions(o Options) Option {
	return func(v *View) {
		v.query = o.Query
		v.typ = o.Type
		v.sort = o.Sort
	}
}

// View combines a product stream with the user's search, type filter and
// sort. Query changes are debounced and ignored when the trimmed query did
// not change. Loading and Failure pass through untouched.
type View struct {
	src      Source
	debounce time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	query string
	typ   synckit.ProductType
	sort  Sort

	queryDirty chan struct{}
	optsDirty  chan struct{}
}

func New(src Source, opts ...Option) *View {
	v := &View{
		src:        src,
		debounce:   DefaultDebounce,
		logger:     logging.WithComponent(logging.Component("view")).Logger,
		queryDirty: make(chan struct{}, 1),
		optsDirty:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetSearchQuery records the raw query. It takes effect after the debounce
// window passes without another call.
func (v *View) SetSearchQuery(q string) {
	v.mu.Lock()
	v.query = q
	v.mu.Unlock()
	signal(v.queryDirty)
}

// SetSort applies immediately.
func (v *View) SetSort(s Sort) {
	v.mu.Lock()
	v.sort = s
	v.mu.Unlock()
	signal(v.optsDirty)
}

// SetTypeFilter applies immediately. Empty shows every type.
func (v *View) SetTypeFilter(t synckit.ProductType) {
	v.mu.Lock()
	v.typ = t
	v.mu.Unlock()
	signal(v.optsDirty)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// States subscribes to the source and returns the built list states. The
// channel closes when ctx is done or the source ends. Call it once per View.
func (v *View) States(ctx context.Context) <-chan synckit.Resource[[]synckit.ProductRecord] {
	out := make(chan synckit.Resource[[]synckit.ProductRecord], 1)
	in := v.src.ObserveProducts(ctx)

	v.mu.Lock()
	applied := Options{Query: strings.TrimSpace(v.query), Type: v.typ, Sort: v.sort}
	v.mu.Unlock()

	go func() {
		defer close(out)

		var (
			latest = synckit.Loading[[]synckit.ProductRecord]()
			have   bool
			timer  *time.Timer
			fire   <-chan time.Time
		)
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		emit := func() bool {
			res := synckit.MapResource(latest, func(records []synckit.ProductRecord) []synckit.ProductRecord {
				return Build(records, applied)
			})
			select {
			case out <- res:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case <-ctx.Done():
				return

			case res, ok := <-in:
				if !ok {
					return
				}
				latest, have = res, true
				if !emit() {
					return
				}

			case <-v.queryDirty:
				if timer == nil {
					timer = time.NewTimer(v.debounce)
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(v.debounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				v.mu.Lock()
				q := strings.TrimSpace(v.query)
				v.mu.Unlock()
				if q == applied.Query {
					continue
				}
				applied.Query = q
				v.logger.Debug("Search query applied", "query", q)
				if have && latest.IsSuccess() && !emit() {
					return
				}

			case <-v.optsDirty:
				v.mu.Lock()
				next := Options{Query: applied.Query, Type: v.typ, Sort: v.sort}
				v.mu.Unlock()
				if next == applied {
					continue
				}
				applied = next
				if have && latest.IsSuccess() && !emit() {
					return
				}
			}
		}
	}()

	return out
}
