package model

import "context"

// RoleSource is the external collaborator the catalog cache scans and loads
// roles from. Scan delivers every role to handler; Load returns a single
// role by id, or (nil, nil) if it no longer exists.
type RoleSource interface {
	Scan(ctx context.Context, handler func(Role) error) error
	Load(ctx context.Context, roleID string) (*Role, error)
}

// ClientSource is the external collaborator the catalog cache scans, loads,
// and writes clients through. Modify is used only for the best-effort
// lastDateUsed update; it must not be used to change a client's scopes.
type ClientSource interface {
	Scan(ctx context.Context, handler func(Client) error) error
	Load(ctx context.Context, clientID string) (*Client, error)
	Modify(ctx context.Context, clientID string, mutate func(*Client)) error
}

// EventSource delivers invalidation events for individual roles and
// clients. Delivery is at-least-once and out-of-order tolerated; the
// catalog cache treats every event as "go reload this one entity".
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}

// EventKind identifies what changed.
type EventKind int

const (
	ClientCreated EventKind = iota
	ClientUpdated
	ClientDeleted
	RoleCreated
	RoleUpdated
	RoleDeleted
)

// Event is one invalidation message from an EventSource. ID is the
// ClientID or RoleID the event concerns, depending on Kind.
type Event struct {
	Kind EventKind
	ID   string
}
