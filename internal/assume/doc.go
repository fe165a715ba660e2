// Package assume translates a scope into the query the role trie expects,
// and decides up front whether a scope could possibly grant a role at all.
// Both internal/expand (seeding a role's implied roles from its own scopes)
// and internal/resolver (expanding a caller's scope list) need the exact
// same translation, so it lives here rather than being duplicated.
package assume
