package expand

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/clusterauth/scope-engine/pkg/model"
	"github.com/clusterauth/scope-engine/pkg/scope"
)

var unorderedScopes = cmpopts.SortSlices(func(a, b scope.Scope) bool { return a < b })

func ss(strs ...string) scope.ScopeSet {
	out := make(scope.ScopeSet, len(strs))
	for i, s := range strs {
		out[i] = scope.Scope(s)
	}
	return out
}

func roleByID(roles []model.Role, id string) model.Role {
	for _, r := range roles {
		if r.RoleID == id {
			return r
		}
	}
	panic("role not found: " + id)
}

func TestExpandNoImplication(t *testing.T) {
	res, err := Expand([]model.Role{
		{RoleID: "A", Scopes: ss("scope-a")},
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	got := roleByID(res.Roles, "A").ExpandedScopes
	want := scope.Normalize(ss("scope-a"))
	if !cmp.Equal(got, want, unorderedScopes) {
		t.Fatalf("ExpandedScopes diff (-got +want):\n%s", cmp.Diff(got, want, unorderedScopes))
	}
}

// Scenario 4 in spec.md §8: a two-role assume cycle.
func TestExpandCycleConvergesSymmetrically(t *testing.T) {
	res, err := Expand([]model.Role{
		{RoleID: "A", Scopes: ss("scope-a", "assume:B")},
		{RoleID: "B", Scopes: ss("scope-b", "assume:A")},
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := scope.Normalize(ss("scope-a", "scope-b", "assume:A", "assume:B"))
	a := roleByID(res.Roles, "A").ExpandedScopes
	b := roleByID(res.Roles, "B").ExpandedScopes
	if !cmp.Equal(a, want, unorderedScopes) {
		t.Fatalf("A.ExpandedScopes diff (-got +want):\n%s", cmp.Diff(a, want, unorderedScopes))
	}
	if !cmp.Equal(b, want, unorderedScopes) {
		t.Fatalf("B.ExpandedScopes diff (-got +want):\n%s", cmp.Diff(b, want, unorderedScopes))
	}
}

// Scenario 5 in spec.md §8, at a depth small enough for a fast test: a chain
// of roles each assuming the next, terminating in a scope that isn't a role
// at all.
func TestExpandDeepChain(t *testing.T) {
	const depth = 12
	roles := make([]model.Role, 0, depth+1)
	for i := 0; i < depth; i++ {
		roles = append(roles, model.Role{
			RoleID: fmt.Sprintf("tr-%d", i),
			Scopes: ss(fmt.Sprintf("assume:tr-%d", i+1)),
		})
	}
	roles = append(roles, model.Role{RoleID: fmt.Sprintf("tr-%d", depth), Scopes: ss("special")})

	res, err := Expand(roles)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	want := make([]string, 0, depth+2)
	for i := 1; i <= depth; i++ {
		want = append(want, fmt.Sprintf("assume:tr-%d", i))
	}
	want = append(want, "special")

	got := roleByID(res.Roles, "tr-0").ExpandedScopes
	wantSet := scope.Normalize(ss(want...))
	if !cmp.Equal(got, wantSet, unorderedScopes) {
		t.Fatalf("tr-0.ExpandedScopes diff (-got +want):\n%s", cmp.Diff(got, wantSet, unorderedScopes))
	}
}

func TestExpandWildcardRoleIsImplied(t *testing.T) {
	res, err := Expand([]model.Role{
		{RoleID: "a*", Scopes: ss("p*")},
		{RoleID: "caller", Scopes: ss("assume:abc")},
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	got := roleByID(res.Roles, "caller").ExpandedScopes
	want := scope.Normalize(ss("assume:abc", "p*"))
	if !cmp.Equal(got, want, unorderedScopes) {
		t.Fatalf("caller.ExpandedScopes diff (-got +want):\n%s", cmp.Diff(got, want, unorderedScopes))
	}
}

func TestExpandDuplicateRoleIDFails(t *testing.T) {
	_, err := Expand([]model.Role{
		{RoleID: "A", Scopes: ss("scope-a")},
		{RoleID: "A", Scopes: ss("scope-b")},
	})
	if err == nil {
		t.Fatal("expected error for duplicate role id")
	}
}

// Invariant 7 in spec.md §8: every role's expanded scopes form a fixed
// point under another round of merging.
func TestExpandIsFixedPoint(t *testing.T) {
	res, err := Expand([]model.Role{
		{RoleID: "A", Scopes: ss("scope-a", "assume:B")},
		{RoleID: "B", Scopes: ss("scope-b", "assume:C")},
		{RoleID: "C", Scopes: ss("scope-c")},
	})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	byID := make(map[string]model.Role, len(res.Roles))
	for _, r := range res.Roles {
		byID[r.RoleID] = r
	}
	assumes := map[string][]string{"A": {"B"}, "B": {"C"}}
	for _, r := range res.Roles {
		// Merging a role's own scopes and the expanded scopes of every role
		// it assumes into its already-expanded set must be a no-op at a
		// fixed point.
		again := scope.Merge(scope.Normalize(r.Scopes), r.ExpandedScopes)
		for _, id := range assumes[r.RoleID] {
			again = scope.Merge(again, byID[id].ExpandedScopes)
		}
		if !cmp.Equal(again, r.ExpandedScopes, unorderedScopes) {
			t.Fatalf("role %s not at fixed point, diff (-again +expanded):\n%s", r.RoleID, cmp.Diff(again, r.ExpandedScopes, unorderedScopes))
		}
	}
}
