package catalog

import (
	"github.com/clusterauth/scope-engine/internal/expand"
	"github.com/clusterauth/scope-engine/internal/resolver"
	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

// snapshot is the immutable published state: a role catalog already reduced
// to a trie and parallel expanded-scope table, the client list, and the
// derived clientCache keyed by ClientID. A snapshot is never mutated after
// publish; Reload and the single-entity reload paths always build a fresh
// one and swap it in.
type snapshot struct {
	roles   []model.Role
	clients []model.Client
	trie    *expand.Result
	cache   map[string]model.Client
}

// assumeClientRole is the implicit scope every client holds on top of its
// own configured grant: a client effectively holds the role
// "client-id:<clientID>", so a role registered under that id (concrete or
// covering it via a wildcard, e.g. "client-id:*") is always in reach.
func assumeClientRole(clientID string) scope.Scope {
	return scope.Scope("assume:client-id:" + clientID)
}

// buildSnapshot expands roles to their fixed point, then resolves every
// client's effective scopes against the resulting trie.
func buildSnapshot(roles []model.Role, clients []model.Client) (*snapshot, error) {
	result, err := expand.Expand(roles)
	if err != nil {
		return nil, err
	}

	outClients := make([]model.Client, len(clients))
	cache := make(map[string]model.Client, len(clients))
	for i, cl := range clients {
		input := append(cl.UnexpandedScopes.Clone(), assumeClientRole(cl.ClientID))
		cl.ExpandedScopes = resolver.Resolve(result.Trie, result.ScopeSets, scope.Normalize(input))
		outClients[i] = cl
		cache[cl.ClientID] = cl
	}

	return &snapshot{
		roles:   result.Roles,
		clients: outClients,
		trie:    &result,
		cache:   cache,
	}, nil
}
