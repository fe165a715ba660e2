package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"go.opentelemetry.io/otel/trace"

	"github.com/clusterauth/scope-engine/internal/resolver"
	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

// Cache is the catalog cache: the current role/client snapshot, rebuilt on
// bulk reload or single-entity invalidation, exposing Resolve and
// LoadClient to callers. The zero Cache is not usable; build one with
// Setup.
type Cache struct {
	cfg Config

	roleSource   model.RoleSource
	clientSource model.ClientSource
	eventSource  model.EventSource

	logger logr.Logger
	tracer trace.Tracer

	snap atomic.Pointer[snapshot]

	reloadMu     sync.Mutex
	reloadFuture *reloadFuture

	errCh chan error

	pendingLastUsed sync.Map // clientID -> struct{}, in-flight async update marker

	eventMu       sync.Mutex
	eventLimiters map[string]*rate.Sometimes // entity key -> debounce limiter
}

// reloadFuture is the chained completion handle described in spec.md §5: a
// reload scheduled while one is already running attaches to that one's
// completion (swallowing its error, so one failure can never block the
// rest of the chain) and then runs its own work.
type reloadFuture struct {
	done chan struct{}
	err  error
}

// Setup builds a Cache, performs the initial synchronous reload, and starts
// the periodic bulk-reload loop plus the event-driven single-entity reload
// loop (when eventSource is non-nil). It fails only if cfg is invalid or
// the initial reload fails; once running, later reload failures are
// reported on Errors() and never torn the cache down.
func Setup(ctx context.Context, cfg Config, roleSource model.RoleSource, clientSource model.ClientSource, eventSource model.EventSource, logger logr.Logger, tracer trace.Tracer) (*Cache, error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if tracer == nil {
		tracer = trace.NewNoopTracerProvider().Tracer(TracerName)
	}

	c := &Cache{
		cfg:           cfg,
		roleSource:    roleSource,
		clientSource:  clientSource,
		eventSource:   eventSource,
		logger:        logger,
		tracer:        tracer,
		errCh:         make(chan error, 32),
		eventLimiters: make(map[string]*rate.Sometimes),
	}

	if err := c.Reload(ctx); err != nil {
		return nil, fmt.Errorf("catalog: initial reload: %w", err)
	}

	go c.periodicReload(ctx)
	if eventSource != nil {
		go c.watchEvents(ctx)
	}

	return c, nil
}

// Errors reports asynchronous reload and lastDateUsed-update failures.
// Never closed; never fatal to the cache.
func (c *Cache) Errors() <-chan error {
	return c.errCh
}

func (c *Cache) pushErr(err error) {
	select {
	case c.errCh <- err:
	default:
		c.logger.V(1).Info("dropping catalog error, channel full", "error", err.Error())
	}
}

// enqueue attaches work behind any reload currently in flight and returns a
// future the caller can wait on. Each caller gets its own future chained
// off the one enqueued just before it, so Reload, ReloadRole, and
// ReloadClient all serialize through one writer queue regardless of which
// one triggered each link.
func (c *Cache) enqueue(ctx context.Context, work func(context.Context) error) *reloadFuture {
	c.reloadMu.Lock()
	prev := c.reloadFuture
	f := &reloadFuture{done: make(chan struct{})}
	c.reloadFuture = f
	c.reloadMu.Unlock()

	go func() {
		if prev != nil {
			<-prev.done
		}
		f.err = work(ctx)
		close(f.done)
	}()
	return f
}

// Reload performs a bulk rescan of both sources, serialized behind any
// reload already in flight, and atomically publishes the rebuilt snapshot.
// A failure leaves the previous snapshot in place.
func (c *Cache) Reload(ctx context.Context) error {
	f := c.enqueue(ctx, c.doBulkReload)
	<-f.done
	return f.err
}

// ReloadRole loads a single role and patches it into the current snapshot
// before rebuilding the trie, fixed point, and client cache. A role the
// source no longer has (Load returns nil, nil) is removed.
func (c *Cache) ReloadRole(ctx context.Context, roleID string) error {
	f := c.enqueue(ctx, func(ctx context.Context) error { return c.doReloadRole(ctx, roleID) })
	<-f.done
	return f.err
}

// ReloadClient loads a single client and patches it into the current
// snapshot before rebuilding the trie, fixed point, and client cache. A
// client the source no longer has (Load returns nil, nil) is removed.
func (c *Cache) ReloadClient(ctx context.Context, clientID string) error {
	f := c.enqueue(ctx, func(ctx context.Context) error { return c.doReloadClient(ctx, clientID) })
	<-f.done
	return f.err
}

func (c *Cache) doBulkReload(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "catalog.reload")
	defer span.End()

	start := time.Now()
	var roles []model.Role
	var clients []model.Client
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := c.roleSource.Scan(groupCtx, func(r model.Role) error {
			mu.Lock()
			roles = append(roles, r)
			mu.Unlock()
			return nil
		})
		if err != nil {
			ReloadErrors.WithLabelValues("role-scan").Inc()
			return fmt.Errorf("role scan: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		err := c.clientSource.Scan(groupCtx, func(cl model.Client) error {
			cl.UpdateLastUsed = c.needsLastUsedUpdate(cl)
			mu.Lock()
			clients = append(clients, cl)
			mu.Unlock()
			return nil
		})
		if err != nil {
			ReloadErrors.WithLabelValues("client-scan").Inc()
			return fmt.Errorf("client scan: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		ReloadTotal.WithLabelValues(ResultError).Inc()
		c.logger.Error(err, "catalog reload failed")
		c.pushErr(fmt.Errorf("catalog: reload: %w", err))
		return err
	}

	snap, err := buildSnapshot(roles, clients)
	if err != nil {
		ReloadTotal.WithLabelValues(ResultError).Inc()
		c.logger.Error(err, "catalog reload failed building snapshot")
		c.pushErr(fmt.Errorf("catalog: reload: %w", err))
		return err
	}

	c.snap.Store(snap)
	ReloadTotal.WithLabelValues(ResultSuccess).Inc()
	ReloadDuration.Observe(time.Since(start).Seconds())
	RoleCount.Set(float64(len(snap.roles)))
	ClientCount.Set(float64(len(snap.clients)))
	span.SetAttributes(AttrRoleCount.Int(len(snap.roles)), AttrClientCount.Int(len(snap.clients)))
	c.logger.V(1).Info("catalog reloaded", "generation", uuid.NewString(), "roles", len(snap.roles), "clients", len(snap.clients))
	return nil
}

func (c *Cache) doReloadRole(ctx context.Context, roleID string) error {
	ctx, span := c.tracer.Start(ctx, "catalog.reloadRole")
	defer span.End()
	span.SetAttributes(AttrRoleID.String(roleID))

	role, err := c.roleSource.Load(ctx, roleID)
	if err != nil {
		EntityReloadTotal.WithLabelValues(KindRole, ResultError).Inc()
		c.pushErr(fmt.Errorf("catalog: reload role %q: %w", roleID, err))
		return err
	}

	cur := c.snap.Load()
	roles := patchRoles(currentRoles(cur), roleID, role)

	snap, err := buildSnapshot(roles, currentClients(cur))
	if err != nil {
		EntityReloadTotal.WithLabelValues(KindRole, ResultError).Inc()
		c.pushErr(fmt.Errorf("catalog: reload role %q: %w", roleID, err))
		return err
	}
	c.snap.Store(snap)
	EntityReloadTotal.WithLabelValues(KindRole, ResultSuccess).Inc()
	RoleCount.Set(float64(len(snap.roles)))
	return nil
}

func (c *Cache) doReloadClient(ctx context.Context, clientID string) error {
	ctx, span := c.tracer.Start(ctx, "catalog.reloadClient")
	defer span.End()
	span.SetAttributes(AttrClientID.String(clientID))

	client, err := c.clientSource.Load(ctx, clientID)
	if err != nil {
		EntityReloadTotal.WithLabelValues(KindClient, ResultError).Inc()
		c.pushErr(fmt.Errorf("catalog: reload client %q: %w", clientID, err))
		return err
	}
	if client != nil {
		client.UpdateLastUsed = c.needsLastUsedUpdate(*client)
	}

	cur := c.snap.Load()
	clients := patchClients(currentClients(cur), clientID, client)

	snap, err := buildSnapshot(currentRoles(cur), clients)
	if err != nil {
		EntityReloadTotal.WithLabelValues(KindClient, ResultError).Inc()
		c.pushErr(fmt.Errorf("catalog: reload client %q: %w", clientID, err))
		return err
	}
	c.snap.Store(snap)
	EntityReloadTotal.WithLabelValues(KindClient, ResultSuccess).Inc()
	ClientCount.Set(float64(len(snap.clients)))
	return nil
}

func currentRoles(s *snapshot) []model.Role {
	if s == nil {
		return nil
	}
	return s.roles
}

func currentClients(s *snapshot) []model.Client {
	if s == nil {
		return nil
	}
	return s.clients
}

// patchRoles returns roles with the entry for roleID replaced by updated,
// removed if updated is nil, or appended if roleID was not present.
func patchRoles(roles []model.Role, roleID string, updated *model.Role) []model.Role {
	out := make([]model.Role, 0, len(roles)+1)
	found := false
	for _, r := range roles {
		if r.RoleID == roleID {
			found = true
			if updated == nil {
				continue
			}
			out = append(out, *updated)
			continue
		}
		out = append(out, r)
	}
	if !found && updated != nil {
		out = append(out, *updated)
	}
	return out
}

// patchClients returns clients with the entry for clientID replaced by
// updated, removed if updated is nil, or appended if clientID was not
// present.
func patchClients(clients []model.Client, clientID string, updated *model.Client) []model.Client {
	out := make([]model.Client, 0, len(clients)+1)
	found := false
	for _, cl := range clients {
		if cl.ClientID == clientID {
			found = true
			if updated == nil {
				continue
			}
			out = append(out, *updated)
			continue
		}
		out = append(out, cl)
	}
	if !found && updated != nil {
		out = append(out, *updated)
	}
	return out
}

// Resolve expands scopes against the currently published snapshot. Pure
// and non-blocking: it never waits on a reload in flight, it simply reads
// whichever snapshot is live at the moment of the call.
func (c *Cache) Resolve(ctx context.Context, scopes scope.ScopeSet) scope.ScopeSet {
	_, span := c.tracer.Start(ctx, "catalog.resolve")
	defer span.End()

	start := time.Now()
	snap := c.snap.Load()
	if snap == nil {
		return scope.Normalize(scopes)
	}
	out := resolver.Resolve(snap.trie.Trie, snap.trie.ScopeSets, scopes)
	ResolveTotal.Inc()
	ResolveDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(AttrScopeCount.Int(len(out)))
	return out
}

// LoadClient returns the cached client record, or ErrNotFound, ErrDisabled,
// or ErrExpired wrapped with the client id. A client flagged for a
// lastDateUsed update fires one asynchronously, at most one in flight per
// client at a time.
func (c *Cache) LoadClient(ctx context.Context, clientID string) (model.Client, error) {
	_, span := c.tracer.Start(ctx, "catalog.loadClient")
	defer span.End()
	span.SetAttributes(AttrClientID.String(clientID))

	snap := c.snap.Load()
	if snap == nil {
		return model.Client{}, fmt.Errorf("catalog: client %q: %w", clientID, ErrNotFound)
	}

	cl, ok := snap.cache[clientID]
	if !ok {
		return model.Client{}, fmt.Errorf("catalog: client %q: %w", clientID, ErrNotFound)
	}
	if cl.Disabled {
		return model.Client{}, fmt.Errorf("catalog: client %q: %w", clientID, ErrDisabled)
	}
	if !cl.Expires.IsZero() && cl.Expires.Before(time.Now()) {
		return model.Client{}, fmt.Errorf("catalog: client %q: %w", clientID, ErrExpired)
	}

	if cl.UpdateLastUsed {
		c.fireLastUsedUpdate(clientID)
	}
	return cl, nil
}

func (c *Cache) needsLastUsedUpdate(cl model.Client) bool {
	window := -c.cfg.MaxLastUsedDelay
	return time.Since(cl.LastDateUsed) > window
}

// fireLastUsedUpdate starts a best-effort async update against the client
// source, at most one in flight per client id. Failures are reported on
// Errors() and never affect LoadClient's result.
func (c *Cache) fireLastUsedUpdate(clientID string) {
	if _, already := c.pendingLastUsed.LoadOrStore(clientID, struct{}{}); already {
		return
	}
	go func() {
		defer c.pendingLastUsed.Delete(clientID)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		now := time.Now()
		err := c.clientSource.Modify(ctx, clientID, func(cl *model.Client) {
			cl.LastDateUsed = now
			cl.UpdateLastUsed = false
		})
		if err != nil {
			LastUsedUpdateErrors.Inc()
			c.pushErr(fmt.Errorf("catalog: update lastDateUsed for client %q: %w", clientID, err))
			return
		}
		c.logger.V(2).Info("updated lastDateUsed", "clientID", clientID)
	}()
}

func (c *Cache) periodicReload(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.CacheExpiry)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := c.Reload(ctx); err != nil {
				c.logger.Error(err, "periodic catalog reload failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Cache) watchEvents(ctx context.Context) {
	events, err := c.eventSource.Subscribe(ctx)
	if err != nil {
		c.pushErr(fmt.Errorf("catalog: subscribe to events: %w", err))
		return
	}
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ctx, ev)
		case <-ctx.Done():
			return
		}
	}
}

// eventDebounce is the minimum spacing between reloads triggered by events
// of the same kind for the same id, collapsing a burst of such deliveries
// into a single rebuild. Events of different kinds for one id are limited
// separately. Mirrors ResourceTracker.rateLimit's 5s window, scaled down for a
// single-entity reload instead of a full CRD rescan.
const eventDebounce = 2 * time.Second

func (c *Cache) handleEvent(ctx context.Context, ev model.Event) {
	key := eventKey(ev)
	if !c.allowEvent(key) {
		return
	}

	var err error
	switch ev.Kind {
	case model.RoleCreated, model.RoleUpdated, model.RoleDeleted:
		err = c.ReloadRole(ctx, ev.ID)
	case model.ClientCreated, model.ClientUpdated, model.ClientDeleted:
		err = c.ReloadClient(ctx, ev.ID)
	}
	if err != nil {
		c.logger.Error(err, "event-driven reload failed", "kind", eventKindName(ev.Kind), "id", ev.ID)
	}
}

func eventKey(ev model.Event) string {
	return fmt.Sprintf("%d:%s", ev.Kind, ev.ID)
}

// allowEvent gates a burst of deliveries for the same entity key down to
// one admitted event per eventDebounce window, the way
// ResourceTracker.rateLimit (a single rate.Sometimes{Interval: ...}) gates
// CRD-watch bursts; here every entity key gets its own limiter instead of
// one shared across the whole tracker.
func (c *Cache) allowEvent(key string) bool {
	c.eventMu.Lock()
	limiter, ok := c.eventLimiters[key]
	if !ok {
		limiter = &rate.Sometimes{Interval: eventDebounce}
		c.eventLimiters[key] = limiter
	}
	c.eventMu.Unlock()

	allowed := false
	limiter.Do(func() { allowed = true })
	return allowed
}

func eventKindName(k model.EventKind) string {
	switch k {
	case model.ClientCreated:
		return "client-created"
	case model.ClientUpdated:
		return "client-updated"
	case model.ClientDeleted:
		return "client-deleted"
	case model.RoleCreated:
		return "role-created"
	case model.RoleUpdated:
		return "role-updated"
	case model.RoleDeleted:
		return "role-deleted"
	default:
		return "unknown"
	}
}
