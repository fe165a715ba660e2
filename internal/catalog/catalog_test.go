package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/go-logr/logr"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/trace"

	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

func ss(strs ...string) scope.ScopeSet {
	out := make(scope.ScopeSet, len(strs))
	for i, s := range strs {
		out[i] = scope.Scope(s)
	}
	return out
}

func newTestCache(ctx context.Context, roles *fakeRoleSource, clients *fakeClientSource, events *fakeEventSource) (*Cache, error) {
	var es model.EventSource
	if events != nil {
		es = events
	}
	return Setup(ctx, Config{CacheExpiry: time.Hour}, roles, clients, es, logr.Discard(), trace.NewNoopTracerProvider().Tracer("test"))
}

var _ = Describe("Cache", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	// Scenario 1 in spec.md §8.
	It("resolves a simple assume scope", func() {
		roles := newFakeRoleSource(model.Role{RoleID: "a", Scopes: ss("x")})
		clients := newFakeClientSource()
		c, err := newTestCache(ctx, roles, clients, nil)
		Expect(err).NotTo(HaveOccurred())

		got := c.Resolve(ctx, ss("assume:a"))
		Expect(got).To(Equal(scope.Normalize(ss("assume:a", "x"))))
	})

	// Scenario 6: a role granting "*" on the client-id namespace absorbs
	// everything once a client assumes it implicitly.
	It("grants a client everything when it holds the root client-id role", func() {
		roles := newFakeRoleSource(model.Role{RoleID: "client-id:root", Scopes: ss("*")})
		clients := newFakeClientSource(model.Client{ClientID: "root", Expires: time.Now().Add(time.Hour)})
		c, err := newTestCache(ctx, roles, clients, nil)
		Expect(err).NotTo(HaveOccurred())

		cl, err := c.LoadClient(ctx, "root")
		Expect(err).NotTo(HaveOccurred())
		Expect(cl.ExpandedScopes).To(Equal(scope.Normalize(ss("*"))))
	})

	It("returns NotFound for an unknown client", func() {
		c, err := newTestCache(ctx, newFakeRoleSource(), newFakeClientSource(), nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.LoadClient(ctx, "ghost")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())
	})

	// Scenario 7.
	It("returns Disabled for a disabled client", func() {
		clients := newFakeClientSource(model.Client{ClientID: "c1", Disabled: true, Expires: time.Now().Add(time.Hour)})
		c, err := newTestCache(ctx, newFakeRoleSource(), clients, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.LoadClient(ctx, "c1")
		Expect(errors.Is(err, ErrDisabled)).To(BeTrue())
	})

	// Scenario 7.
	It("returns Expired for a client past its expiry", func() {
		clients := newFakeClientSource(model.Client{ClientID: "c1", Expires: time.Now().Add(-time.Hour)})
		c, err := newTestCache(ctx, newFakeRoleSource(), clients, nil)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.LoadClient(ctx, "c1")
		Expect(errors.Is(err, ErrExpired)).To(BeTrue())
	})

	It("fails Setup on an invalid config", func() {
		_, err := Setup(ctx, Config{MaxLastUsedDelay: time.Hour}, newFakeRoleSource(), newFakeClientSource(), nil, logr.Discard(), nil)
		Expect(errors.Is(err, ErrConfigInvalid)).To(BeTrue())
	})

	It("picks up a newly added role via ReloadRole", func() {
		roles := newFakeRoleSource()
		c, err := newTestCache(ctx, roles, newFakeClientSource(), nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Resolve(ctx, ss("assume:a"))).To(Equal(scope.Normalize(ss("assume:a"))))

		roles.put(model.Role{RoleID: "a", Scopes: ss("x")})
		Expect(c.ReloadRole(ctx, "a")).To(Succeed())

		Expect(c.Resolve(ctx, ss("assume:a"))).To(Equal(scope.Normalize(ss("assume:a", "x"))))
	})

	It("removes a role deleted upstream via ReloadRole", func() {
		roles := newFakeRoleSource(model.Role{RoleID: "a", Scopes: ss("x")})
		c, err := newTestCache(ctx, roles, newFakeClientSource(), nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Resolve(ctx, ss("assume:a"))).To(Equal(scope.Normalize(ss("assume:a", "x"))))

		roles.delete("a")
		Expect(c.ReloadRole(ctx, "a")).To(Succeed())

		Expect(c.Resolve(ctx, ss("assume:a"))).To(Equal(scope.Normalize(ss("assume:a"))))
	})

	It("reacts to an event-driven client invalidation", func() {
		clients := newFakeClientSource()
		events := newFakeEventSource()
		c, err := newTestCache(ctx, newFakeRoleSource(), clients, events)
		Expect(err).NotTo(HaveOccurred())

		_, err = c.LoadClient(ctx, "new-client")
		Expect(errors.Is(err, ErrNotFound)).To(BeTrue())

		clients.put(model.Client{ClientID: "new-client", Expires: time.Now().Add(time.Hour)})
		events.send(model.Event{Kind: model.ClientCreated, ID: "new-client"})

		Eventually(func() error {
			_, err := c.LoadClient(ctx, "new-client")
			return err
		}).Should(Succeed())
	})

	It("performs a full bulk reload", func() {
		roles := newFakeRoleSource()
		clients := newFakeClientSource()
		c, err := newTestCache(ctx, roles, clients, nil)
		Expect(err).NotTo(HaveOccurred())

		roles.put(model.Role{RoleID: "a", Scopes: ss("x")})
		clients.put(model.Client{ClientID: "c1", Expires: time.Now().Add(time.Hour)})
		Expect(c.Reload(ctx)).To(Succeed())

		Expect(c.Resolve(ctx, ss("assume:a"))).To(Equal(scope.Normalize(ss("assume:a", "x"))))
		_, err = c.LoadClient(ctx, "c1")
		Expect(err).NotTo(HaveOccurred())
	})
})
