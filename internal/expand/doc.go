// Package expand computes, for every role in a catalog, the transitive
// closure of the scopes it grants: a role's own scopes plus the scopes of
// every role it assumes, directly or by way of another assumed role, to a
// fixed point.
package expand
