// Package model declares the record types that participate in a filedb state.
//
// Models are enumerated explicitly at startup:
//
//	var Users = model.Define("User", func(u User) int { return u.ID })
//	var Posts = model.Define("Post", func(p Post) string { return p.Slug })
//
//	reg, err := model.NewRegistry(Users, Posts)
//
// The registry is the only source of truth for which collections exist.
// Its declaration order is the order of collections in a State and of keys
// in unified documents. Nothing is discovered through reflection.
//
// Record (de)serialization goes through the Descriptor interface, a
// type-erased view of a Model that adapters use to allocate typed values
// for any encoding library and to convert between []T and []any.
package model
