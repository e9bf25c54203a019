package engine

import (
	"github.com/roach88/filedb/model"
	"github.com/roach88/filedb/state"
)

// Generic CRUD over a typed model. Every function fails with dberr CLOSED
// after Close and with dberr UNKNOWN_MODEL if m is not in the DB's registry.
//
// Records cross the API by copy (model.Model.Clone): the DB never keeps a
// caller's document and never hands out the one it stores.

// Insert appends record. Fails with dberr DUPLICATE_ID if its id is taken,
// leaving the collection unchanged.
func Insert[T any, K comparable](db *DB, m *model.Model[T, K], record T) error {
	record = m.Clone(record)
	return db.c.mutate(m, func(col *state.Collection) (bool, error) {
		if err := m.Validate(record); err != nil {
			return false, err
		}
		if err := col.Insert(record); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Update replaces the record with id in place. Fails with dberr NOT_FOUND
// if id is absent.
func Update[T any, K comparable](db *DB, m *model.Model[T, K], id K, record T) error {
	record = m.Clone(record)
	return db.c.mutate(m, func(col *state.Collection) (bool, error) {
		if err := m.Validate(record); err != nil {
			return false, err
		}
		if err := col.Update(id, record); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Upsert updates the record with the same id, or appends record.
func Upsert[T any, K comparable](db *DB, m *model.Model[T, K], record T) error {
	record = m.Clone(record)
	return db.c.mutate(m, func(col *state.Collection) (bool, error) {
		if err := m.Validate(record); err != nil {
			return false, err
		}
		if err := col.Upsert(record); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Delete removes and returns the record with id. An absent id is not an
// error: ok is false and nothing is persisted.
func Delete[T any, K comparable](db *DB, m *model.Model[T, K], id K) (removed T, ok bool, err error) {
	err = db.c.mutate(m, func(col *state.Collection) (bool, error) {
		r, found := col.Delete(id)
		if !found {
			return false, nil
		}
		removed, ok = r.(T)
		return true, nil
	})
	return m.Clone(removed), ok, err
}

// DeleteAllBy removes and returns, in order, every record matching pred.
// Survivors keep their relative order. pred runs under the state lock on
// the stored records: it must not modify them or call back into the DB.
func DeleteAllBy[T any, K comparable](db *DB, m *model.Model[T, K], pred func(T) bool) ([]T, error) {
	var removed []T
	err := db.c.mutate(m, func(col *state.Collection) (bool, error) {
		deleted := col.DeleteAllBy(func(r any) bool {
			typed, ok := r.(T)
			return ok && pred(typed)
		})
		removed = cloneAll(m, m.Typed(deleted))
		return len(deleted) > 0, nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// Get returns the record with id.
func Get[T any, K comparable](db *DB, m *model.Model[T, K], id K) (record T, ok bool, err error) {
	err = db.c.read(m, func(col *state.Collection) {
		r, found := col.Get(id)
		if found {
			record, ok = r.(T)
		}
	})
	return m.Clone(record), ok, err
}

// GetAll returns a copy of every record in collection order.
func GetAll[T any, K comparable](db *DB, m *model.Model[T, K]) ([]T, error) {
	var all []any
	err := db.c.read(m, func(col *state.Collection) {
		all = col.GetAll()
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(m, m.Typed(all)), nil
}

// GetAllBy returns, in order, the records matching pred. pred runs on a
// snapshot after the state lock is released, so it may be slow or call
// back into the DB.
func GetAllBy[T any, K comparable](db *DB, m *model.Model[T, K], pred func(T) bool) ([]T, error) {
	all, err := GetAll(db, m)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0)
	for _, r := range all {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// Count returns the number of records of m.
func Count[T any, K comparable](db *DB, m *model.Model[T, K]) (int, error) {
	var n int
	err := db.c.read(m, func(col *state.Collection) {
		n = col.Count()
	})
	return n, err
}

func cloneAll[T any, K comparable](m *model.Model[T, K], records []T) []T {
	for i, r := range records {
		records[i] = m.Clone(r)
	}
	return records
}
