// Package state holds the in-memory relational aggregate: one ordered,
// id-keyed Collection per registered model.
package state

import (
	"fmt"
	"reflect"

	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
)

// State maps every registered model to its Collection.
//
// INVARIANT: every model of the registry has exactly one Collection, and
// no other collection ever appears.
type State struct {
	registry    *model.Registry
	collections map[string]*Collection
}

// New returns a State with one empty Collection per model of reg.
func New(reg *model.Registry) *State {
	s := &State{
		registry:    reg,
		collections: make(map[string]*Collection, reg.Len()),
	}
	for _, m := range reg.Models() {
		s.collections[m.Name()] = newCollection(m)
	}
	return s
}

// Registry returns the registry the state was built from.
func (s *State) Registry() *model.Registry {
	return s.registry
}

// Collection returns the collection of the named model.
func (s *State) Collection(name string) (*Collection, bool) {
	c, ok := s.collections[name]
	return c, ok
}

// Collections returns the collections in registry order.
func (s *State) Collections() []*Collection {
	out := make([]*Collection, 0, len(s.collections))
	for _, name := range s.registry.Names() {
		out = append(out, s.collections[name])
	}
	return out
}

// Replace sets the records of the named model, as read from storage.
// Fails if the model is not registered or if records repeat an id.
func (s *State) Replace(name string, records []any) error {
	c, ok := s.collections[name]
	if !ok {
		return dberr.UnknownModel(name)
	}
	fresh := newCollection(c.model)
	for i, r := range records {
		if err := fresh.Insert(r); err != nil {
			if dberr.IsDuplicateID(err) {
				return &dberr.Error{
					Code:    dberr.CodeSerialization,
					Model:   name,
					Message: fmt.Sprintf("record %d repeats an id", i),
					Err:     err,
				}
			}
			return &dberr.Error{Code: dberr.CodeSerialization, Model: name, Err: err}
		}
	}
	s.collections[name] = fresh
	return nil
}

// Clone returns a snapshot of s. Record slices are copied; record values are shared.
func (s *State) Clone() *State {
	out := &State{
		registry:    s.registry,
		collections: make(map[string]*Collection, len(s.collections)),
	}
	for name, c := range s.collections {
		out.collections[name] = c.clone()
	}
	return out
}

// Len returns the total number of records across all collections.
func (s *State) Len() int {
	n := 0
	for _, c := range s.collections {
		n += c.Count()
	}
	return n
}

// Equal reports whether s and other hold the same models with deeply equal
// records in the same order.
func (s *State) Equal(other *State) bool {
	if other == nil || len(s.collections) != len(other.collections) {
		return false
	}
	for name, c := range s.collections {
		oc, ok := other.collections[name]
		if !ok || !reflect.DeepEqual(c.records, oc.records) {
			return false
		}
	}
	return true
}
