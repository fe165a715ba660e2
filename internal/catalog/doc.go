// Package catalog holds the current role and client snapshot, rebuilding
// the role trie and fixed-point expansion whenever a bulk reload or a
// single-entity invalidation changes it, and resolves caller scopes and
// client lookups against whichever snapshot is currently published.
package catalog
