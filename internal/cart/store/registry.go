package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart/storage"
)

// DefaultPrefix is prepended to session ids to form storage names.
const DefaultPrefix = "cart-storage"

const (
	minSweepInterval = time.Second
	maxSweepInterval = time.Minute
)

var ErrRegistryClosed = errors.New("cart registry closed")

// hosted is an open store with its usage bookkeeping.
type hosted struct {
	store    *Store
	lastUsed atomic.Int64
	holds    atomic.Int32
}

// Registry hosts one Store per cart session. Stores are opened on first use; concurrent first uses of the same
// session share one Open. Stores left idle are evicted by Sweep; the cart itself stays in storage.
type Registry struct {
	storage storage.Storage
	prefix  string
	opts    []Option
	logger  *slog.Logger
	now     func() time.Time

	group  singleflight.Group
	mu     sync.RWMutex
	stores map[string]*hosted
	closed bool
}

// NewRegistry creates a registry saving carts in st under "<prefix>:<session>". opts apply to every store.
func NewRegistry(st storage.Storage, prefix string, logger *slog.Logger, opts ...Option) *Registry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Registry{
		storage: st,
		prefix:  prefix,
		opts:    append([]Option{WithLogger(logger)}, opts...),
		logger:  logger.With("component", "cart_registry"),
		now:     time.Now,
		stores:  make(map[string]*hosted),
	}
}

// Name returns the storage name used for session.
func (r *Registry) Name(session string) string {
	return r.prefix + ":" + session
}

// Get returns the store for session, opening it if needed.
func (r *Registry) Get(ctx context.Context, session string) (*Store, error) {
	h, err := r.acquire(ctx, session, false)
	if err != nil {
		return nil, err
	}
	return h.store, nil
}

// Hold returns the store for session and keeps it from being evicted until release is called. Long-lived readers
// such as streams hold their store.
func (r *Registry) Hold(ctx context.Context, session string) (*Store, func(), error) {
	h, err := r.acquire(ctx, session, true)
	if err != nil {
		return nil, nil, err
	}
	return h.store, sync.OnceFunc(func() {
		h.lastUsed.Store(r.now().UnixNano())
		h.holds.Add(-1)
	}), nil
}

// acquire marks the hosted store as used while holding the registry lock, so a concurrent Sweep cannot evict it
// in between.
func (r *Registry) acquire(ctx context.Context, session string, hold bool) (*hosted, error) {
	use := func(h *hosted) *hosted {
		h.lastUsed.Store(r.now().UnixNano())
		if hold {
			h.holds.Add(1)
		}
		return h
	}

	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		return nil, ErrRegistryClosed
	}
	if h, ok := r.stores[session]; ok {
		use(h)
		r.mu.RUnlock()
		return h, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.group.Do(session, func() (any, error) {
		r.mu.RLock()
		h, ok := r.stores[session]
		r.mu.RUnlock()
		if ok {
			return h, nil
		}

		s, err := Open(context.WithoutCancel(ctx), r.Name(session), r.storage, r.opts...)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if r.closed {
			s.Close()
			return nil, ErrRegistryClosed
		}
		h = &hosted{store: s}
		h.lastUsed.Store(r.now().UnixNano())
		r.stores[session] = h
		r.logger.DebugContext(ctx, "Cart opened", "cart", s.Name(), "items", s.Snapshot().TotalItems)
		return h, nil
	})
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return nil, ErrRegistryClosed
	}
	return use(v.(*hosted)), nil
}

// Sweep closes and drops the stores that have not been used for longer than idle and are not held. Returns the
// number of evicted stores.
func (r *Registry) Sweep(idle time.Duration) int {
	cutoff := r.now().Add(-idle).UnixNano()

	r.mu.Lock()
	var evicted []*Store
	for session, h := range r.stores {
		if h.holds.Load() > 0 || h.lastUsed.Load() > cutoff {
			continue
		}
		delete(r.stores, session)
		evicted = append(evicted, h.store)
	}
	r.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}
	if len(evicted) > 0 {
		r.logger.Debug("Idle carts evicted", "count", len(evicted), "open", r.Len())
	}
	return len(evicted)
}

// Run sweeps stores idle for longer than idle until ctx is done. A non-positive idle keeps every store open.
func (r *Registry) Run(ctx context.Context, idle time.Duration) error {
	if idle <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(min(max(idle/4, minSweepInterval), maxSweepInterval))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Sweep(idle)
		}
	}
}

// Len returns the number of open stores.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stores)
}

// Close closes every store. Later calls to Get fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for session, h := range r.stores {
		h.store.Close()
		delete(r.stores, session)
	}
}
