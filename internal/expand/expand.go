package expand

import (
	"fmt"

	"github.com/clusterauth/scope-engine/internal/assume"
	"github.com/clusterauth/scope-engine/internal/trie"
	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

// Result is everything a resolver needs to answer Resolve calls: the role-id
// recognizer, the parallel ScopeSet table it indexes into, and the input
// roles with ExpandedScopes filled in.
type Result struct {
	Trie      *trie.Node
	ScopeSets []scope.ScopeSet
	Roles     []model.Role
}

// Expand builds the role-id trie over roles and computes, for every role,
// the fixed point of its own scopes plus the scopes of every role it
// assumes (directly, or by assuming a role that assumes it). Role ids must
// be unique; Expand returns an error naming the first duplicate found.
//
// The fixed point is computed with a worklist: each role starts at its own
// (normalized) scopes, and whenever a role's computed set grows, every role
// that assumes it is requeued. Because scope.Merge is commutative,
// associative, and idempotent, and ScopeSets only grow, this converges to
// the unique least fixed point regardless of the order roles are visited
// in — so, unlike a single-pass DFS, two roles in the same assume cycle
// always end up with identical, fully-saturated expansions.
func Expand(roles []model.Role) (Result, error) {
	n := len(roles)
	out := make([]model.Role, n)
	copy(out, roles)

	byID := make(map[string]int, n)
	for i, r := range out {
		if _, dup := byID[r.RoleID]; dup {
			return Result{}, fmt.Errorf("expand: duplicate role id %q", r.RoleID)
		}
		byID[r.RoleID] = i
	}

	root, sets := trie.Build(out)

	implies := make([][]int, n)
	dependents := make([][]int, n)
	for i, r := range out {
		seen := make(map[int]bool)
		for _, s := range r.Scopes {
			query, ok := assume.Query(s)
			if !ok {
				continue
			}
			for _, roleID := range sets.Flatten(trie.Execute(root, query)) {
				j, known := byID[roleID]
				if !known || j == i || seen[j] {
					continue
				}
				seen[j] = true
				implies[i] = append(implies[i], j)
				dependents[j] = append(dependents[j], i)
			}
		}
	}

	expanded := make([]scope.ScopeSet, n)
	for i, r := range out {
		expanded[i] = scope.Normalize(r.Scopes)
	}

	queued := make([]bool, n)
	queue := make([]int, n)
	for i := range queue {
		queue[i] = i
		queued[i] = true
	}
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		queued[i] = false

		next := expanded[i]
		for _, j := range implies[i] {
			next = scope.Merge(next, expanded[j])
		}
		if scopeSetEqual(next, expanded[i]) {
			continue
		}
		expanded[i] = next
		for _, dep := range dependents[i] {
			if !queued[dep] {
				queued[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	for i := range out {
		out[i].ExpandedScopes = expanded[i]
	}

	scopeSets := make([]scope.ScopeSet, sets.Len())
	for i := 1; i < sets.Len(); i++ {
		e := sets.Entry(i)
		if e.Prev < 0 {
			var merged scope.ScopeSet
			for _, roleID := range e.Concrete {
				merged = scope.Merge(merged, expanded[byID[roleID]])
			}
			scopeSets[i] = merged
			continue
		}
		scopeSets[i] = scope.Merge(expanded[byID[e.Extra]], scopeSets[e.Prev])
	}

	return Result{Trie: root, ScopeSets: scopeSets, Roles: out}, nil
}

func scopeSetEqual(a, b scope.ScopeSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
