package catalog

import (
	"context"
	"sync"

	"github.com/clusterauth/scope-engine/pkg/model"
)

// fakeRoleSource is an in-memory model.RoleSource for tests.
type fakeRoleSource struct {
	mu    sync.Mutex
	roles map[string]model.Role
}

func newFakeRoleSource(roles ...model.Role) *fakeRoleSource {
	f := &fakeRoleSource{roles: make(map[string]model.Role)}
	for _, r := range roles {
		f.roles[r.RoleID] = r
	}
	return f
}

func (f *fakeRoleSource) Scan(_ context.Context, handler func(model.Role) error) error {
	f.mu.Lock()
	roles := make([]model.Role, 0, len(f.roles))
	for _, r := range f.roles {
		roles = append(roles, r)
	}
	f.mu.Unlock()
	for _, r := range roles {
		if err := handler(r); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeRoleSource) Load(_ context.Context, roleID string) (*model.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.roles[roleID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRoleSource) put(r model.Role) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[r.RoleID] = r
}

func (f *fakeRoleSource) delete(roleID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.roles, roleID)
}

// fakeClientSource is an in-memory model.ClientSource for tests.
type fakeClientSource struct {
	mu      sync.Mutex
	clients map[string]model.Client
}

func newFakeClientSource(clients ...model.Client) *fakeClientSource {
	f := &fakeClientSource{clients: make(map[string]model.Client)}
	for _, c := range clients {
		f.clients[c.ClientID] = c
	}
	return f
}

func (f *fakeClientSource) Scan(_ context.Context, handler func(model.Client) error) error {
	f.mu.Lock()
	clients := make([]model.Client, 0, len(f.clients))
	for _, c := range f.clients {
		clients = append(clients, c)
	}
	f.mu.Unlock()
	for _, c := range clients {
		if err := handler(c); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeClientSource) Load(_ context.Context, clientID string) (*model.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[clientID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeClientSource) Modify(_ context.Context, clientID string, mutate func(*model.Client)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.clients[clientID]
	if !ok {
		return nil
	}
	mutate(&c)
	f.clients[clientID] = c
	return nil
}

func (f *fakeClientSource) put(c model.Client) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clients[c.ClientID] = c
}

func (f *fakeClientSource) get(clientID string) model.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clients[clientID]
}

// fakeEventSource is a model.EventSource backed by a channel the test
// drives directly.
type fakeEventSource struct {
	ch chan model.Event
}

func newFakeEventSource() *fakeEventSource {
	return &fakeEventSource{ch: make(chan model.Event, 16)}
}

func (f *fakeEventSource) Subscribe(_ context.Context) (<-chan model.Event, error) {
	return f.ch, nil
}

func (f *fakeEventSource) send(ev model.Event) {
	f.ch <- ev
}
