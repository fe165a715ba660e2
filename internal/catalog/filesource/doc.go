// Package filesource implements model.RoleSource and model.ClientSource
// against two flat JSON files: one holding the role catalog, one holding
// clients. It has no model.EventSource implementation. It exists for
// cmd/scopeenginectl and local
// experimentation; it is not part of the core engine, which has no storage
// layer of its own.
package filesource
