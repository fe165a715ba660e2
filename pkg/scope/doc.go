// Package scope implements the scope algebra: prefix-wildcard satisfaction,
// the canonical total order used to merge scope sets, and normalization of a
// ScopeSet to its unique minimal form.
package scope
