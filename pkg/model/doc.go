// Package model holds the plain data types shared by the scope-resolution
// engine: the roles and clients that the catalog cache tracks, and the
// collaborator interfaces (RoleSource, ClientSource, EventSource) external
// systems implement to feed it.
package model
