package resolver

import (
	"github.com/clusterauth/scope-engine/internal/assume"
	"github.com/clusterauth/scope-engine/internal/trie"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

// Resolve expands input against the role catalog captured by root and
// scopeSets (the trie and parallel expanded-scope table internal/expand
// produces) and returns the normalized closure: input plus, for every scope
// in input that could grant a role, that role's own expanded scopes.
//
// Resolve is pure and allocates no shared state, so the same (root,
// scopeSets) pair may be called concurrently from as many goroutines as
// like; callers only need to synchronize around replacing that pair itself
// during a reload.
func Resolve(root *trie.Node, scopeSets []scope.ScopeSet, input scope.ScopeSet) scope.ScopeSet {
	work := make(scope.ScopeSet, len(input))
	copy(work, input)

	seen := make(map[int]bool)
	for _, s := range input {
		query, ok := assume.Query(s)
		if !ok {
			continue
		}
		idx := trie.Execute(root, query)
		if idx == 0 || seen[idx] {
			continue
		}
		seen[idx] = true
		work = append(work, scopeSets[idx]...)
	}

	return scope.Normalize(work)
}
