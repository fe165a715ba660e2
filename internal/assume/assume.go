package assume

import (
	"strings"

	"github.com/clusterauth/scope-engine/pkg/scope"
)

// Prefix is how a scope asks to take on a role's authority.
const Prefix = "assume:"

// Query translates s into the string to run against the role-id trie, and
// reports whether s could possibly grant any role at all. A scope that
// cannot reach the "assume:" namespace (e.g. "storage:read") is rejected
// outright so callers can skip the trie walk entirely.
func Query(s scope.Scope) (query string, ok bool) {
	str := string(s)
	if !s.IsPrefix() {
		if strings.HasPrefix(str, Prefix) {
			return str[len(Prefix):], true
		}
		return "", false
	}

	prefix := s.Prefix()
	switch {
	case len(prefix) >= len(Prefix) && strings.HasPrefix(prefix, Prefix):
		// s is itself scoped to (at least) the assume namespace, e.g.
		// "assume:client-id:*": query the role trie for whatever remains
		// after the "assume:" prefix, still wildcarded.
		return prefix[len(Prefix):] + scope.Star, true
	case len(prefix) < len(Prefix) && strings.HasPrefix(Prefix, prefix):
		// s's own wildcard is short enough to cover the whole assume
		// namespace, e.g. "ass*" or "*": every role id matches.
		return scope.Star, true
	default:
		return "", false
	}
}
