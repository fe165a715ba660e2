package model

import (
	"time"

	"github.com/clusterauth/scope-engine/pkg/scope"
)

// Role is an assumable bundle of authority. Scopes is the role's own grant
// list as configured; ExpandedScopes is the fixed-point closure computed by
// internal/expand (Scopes plus every scope reachable by assuming roles this
// role's own scopes imply).
type Role struct {
	RoleID         string
	Scopes         scope.ScopeSet
	ExpandedScopes scope.ScopeSet
}

// Client is a caller holding a token. UnexpandedScopes is the grant as
// configured; ExpandedScopes is resolved against the role catalog whenever
// the catalog cache builds a new snapshot, not when the client is loaded.
type Client struct {
	ClientID         string
	AccessToken      string
	Expires          time.Time
	Disabled         bool
	UnexpandedScopes scope.ScopeSet
	ExpandedScopes   scope.ScopeSet
	LastDateUsed     time.Time
	UpdateLastUsed   bool
}
