package reconcile

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/giftsbydivi/gifts-by-divi-sub000/internal/cart"
)

// Source is a cart whose snapshots can be read and followed.
type Source interface {
	Snapshot() cart.Snapshot
	Subscribe() (<-chan cart.Snapshot, func())
}

// Reconciler keeps a View of one cart current. Every snapshot starts a pass; lookups that finish after a newer
// snapshot arrived are discarded, and the view is always rebuilt from the current snapshot.
type Reconciler struct {
	source Source
	cache  *LookupCache
	logger *slog.Logger

	mu      sync.Mutex
	current cart.Snapshot
	view    View
	subs    map[uint64]chan View
	nextSub uint64
	stopped bool

	inflight sync.WaitGroup
}

// New creates a reconciler for source. Call Run to start following it. A new reconciler is a new visit of the
// cart: failed lookups of its items are forgotten so its first pass asks the catalog again.
func New(source Source, cache *LookupCache, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	snap := source.Snapshot()
	Revisit(cache, snap)
	return &Reconciler{
		source:  source,
		cache:   cache,
		logger:  logger.With("component", "reconciler"),
		current: snap,
		view:    Build(snap, cache.Peek),
		subs:    make(map[uint64]chan View),
	}
}

// Run follows the source until ctx is done or the source ends its stream, then waits for outstanding lookups
// and closes every subscription. A reconciler runs once.
func (r *Reconciler) Run(ctx context.Context) error {
	updates, cancel := r.source.Subscribe()
	defer r.stop()
	defer cancel()
	defer r.inflight.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			r.apply(ctx, snap)
		}
	}
}

// View returns the latest view.
func (r *Reconciler) View() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneView(r.view)
}

// Subscribe returns a channel holding the newest view, starting with the current one. Intermediate views are
// skipped for slow readers. The returned func cancels the subscription. Once Run has returned the channel carries
// the final view and is closed.
func (r *Reconciler) Subscribe() (<-chan View, func()) {
	ch := make(chan View, 1)

	r.mu.Lock()
	ch <- cloneView(r.view)
	if r.stopped {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = ch
	r.mu.Unlock()

	return ch, sync.OnceFunc(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	})
}

// Resolve waits until every item of the current snapshot has settled.
func (r *Reconciler) Resolve(ctx context.Context) (View, error) {
	view, err := Resolve(ctx, r.cache, r.source.Snapshot())
	if err == nil {
		r.offer(view)
	}
	return view, err
}

// Refresh forgets failed lookups for the current items and resolves them again.
func (r *Reconciler) Refresh(ctx context.Context) (View, error) {
	view, err := Refresh(ctx, r.cache, r.source.Snapshot())
	if err == nil {
		r.offer(view)
	}
	return view, err
}

func (r *Reconciler) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	for id, ch := range r.subs {
		delete(r.subs, id)
		close(ch)
	}
}

func (r *Reconciler) apply(ctx context.Context, snap cart.Snapshot) {
	r.mu.Lock()
	if snap.Version < r.current.Version {
		r.mu.Unlock()
		return
	}
	r.current = snap
	view := Build(snap, r.cache.Peek)
	r.publishLocked(view)
	r.mu.Unlock()

	for _, it := range view.Items {
		if !it.IsLoading {
			continue
		}
		r.inflight.Add(1)
		go r.resolve(ctx, snap.Version, it.Slug)
	}
}

func (r *Reconciler) resolve(ctx context.Context, version uint64, id string) {
	defer r.inflight.Done()

	if _, err := r.cache.Lookup(ctx, id); err != nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current.Version != version {
		r.logger.DebugContext(ctx, "Discarding lookup from stale pass",
			"product_id", id, "pass", version, "current", r.current.Version)
		return
	}
	r.publishLocked(Build(r.current, r.cache.Peek))
}

// offer publishes view if it still belongs to the current snapshot.
func (r *Reconciler) offer(view View) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if view.Version == r.current.Version {
		r.publishLocked(view)
	}
}

func (r *Reconciler) publishLocked(view View) {
	r.view = view
	for _, ch := range r.subs {
		latest(ch, cloneView(view))
	}
}

// Resolve looks up every item of snapshot, waiting until each one has settled.
// Only ctx ending stops it early; catalog failures settle as unavailable items.
func Resolve(ctx context.Context, cache *LookupCache, snapshot cart.Snapshot) (View, error) {
	var mu sync.Mutex
	settled := make(map[string]Entry, len(snapshot.Items))

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range snapshot.ProductIDs() {
		g.Go(func() error {
			e, err := cache.Lookup(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			settled[id] = e
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()

	view := Build(snapshot, func(id string) (Entry, bool) {
		if e, ok := settled[id]; ok {
			return e, true
		}
		return cache.Peek(id)
	})
	return view, err
}

// Refresh forgets failed lookups for the items of snapshot and resolves them again.
func Refresh(ctx context.Context, cache *LookupCache, snapshot cart.Snapshot) (View, error) {
	Revisit(cache, snapshot)
	return Resolve(ctx, cache, snapshot)
}

// Revisit forgets the failed lookups of the items of snapshot, so the next pass over it asks the catalog again.
// Entries of other carts are left alone.
func Revisit(cache *LookupCache, snapshot cart.Snapshot) []string {
	ids := snapshot.ProductIDs()
	if len(ids) == 0 {
		return nil
	}
	return cache.ForgetFailures(ids...)
}

func cloneView(v View) View {
	items := make([]Item, len(v.Items))
	for i, it := range v.Items {
		it.Product = cloneProduct(it.Product)
		items[i] = it
	}
	v.Items = items
	return v
}

// latest replaces whatever ch holds with v. Callers hold the reconciler's lock.
func latest(ch chan View, v View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
