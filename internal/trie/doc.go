// Package trie builds a compact recognizer over a set of role identifiers
// and executes it against a scope string, returning every role whose
// identifier matches under prefix-wildcard satisfaction in either direction:
// a wildcard role id covering a concrete query, or a wildcard query covering
// a concrete (or wildcard) role id.
package trie
