// Package resolver expands a caller-supplied scope set against a role
// catalog already reduced to a trie and a parallel table of per-role
// expanded scope sets, as produced by internal/expand.
package resolver
