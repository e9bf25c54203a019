package state

import (
	"github.com/roach88/filedb/dberr"
	"github.com/roach88/filedb/model"
)

// Collection is the ordered, id-keyed sequence of records of one model.
//
// INVARIANTS:
//   - ids are unique within the collection
//   - order is insertion order, except right after a load where it is
//     whatever the persisted format yielded
//
// Collection is not safe for concurrent use; the engine guards it.
// Lookups are linear scans.
type Collection struct {
	model   model.Descriptor
	records []any
}

func newCollection(m model.Descriptor) *Collection {
	return &Collection{model: m, records: make([]any, 0)}
}

// Model returns the descriptor of the collection's model.
func (c *Collection) Model() model.Descriptor {
	return c.model
}

// Get returns the record with id.
func (c *Collection) Get(id any) (any, bool) {
	idx := c.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return c.records[idx], true
}

// GetAll returns a copy of all records in order.
func (c *Collection) GetAll() []any {
	return append(make([]any, 0, len(c.records)), c.records...)
}

// GetAllBy returns, in order, the records matching pred.
// pred is evaluated against a snapshot of the collection.
func (c *Collection) GetAllBy(pred func(any) bool) []any {
	snapshot := c.GetAll()
	out := make([]any, 0)
	for _, r := range snapshot {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// Insert appends record. Fails with a duplicate id error if its id is present.
func (c *Collection) Insert(record any) error {
	id, err := c.model.Key(record)
	if err != nil {
		return err
	}
	if c.indexOf(id) >= 0 {
		return dberr.DuplicateID(c.model.Name(), id)
	}
	c.records = append(c.records, record)
	return nil
}

// Update replaces the record with id in place.
//
// Fails with a not-found error if id is absent, and with a duplicate id
// error if record carries a different id already held by another record.
func (c *Collection) Update(id any, record any) error {
	newID, err := c.model.Key(record)
	if err != nil {
		return err
	}
	idx := c.indexOf(id)
	if idx < 0 {
		return dberr.NotFound(c.model.Name(), id)
	}
	if newID != id {
		if other := c.indexOf(newID); other >= 0 && other != idx {
			return dberr.DuplicateID(c.model.Name(), newID)
		}
	}
	c.records[idx] = record
	return nil
}

// Upsert updates the record with the same id, or appends record.
func (c *Collection) Upsert(record any) error {
	id, err := c.model.Key(record)
	if err != nil {
		return err
	}
	if idx := c.indexOf(id); idx >= 0 {
		c.records[idx] = record
		return nil
	}
	c.records = append(c.records, record)
	return nil
}

// Delete removes and returns the record with id.
// An absent id is not an error.
func (c *Collection) Delete(id any) (any, bool) {
	idx := c.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	removed := c.records[idx]
	copy(c.records[idx:], c.records[idx+1:])
	c.records[len(c.records)-1] = nil
	c.records = c.records[:len(c.records)-1]
	return removed, true
}

// DeleteAllBy removes and returns, in order, all records matching pred.
// Survivors keep their relative order.
func (c *Collection) DeleteAllBy(pred func(any) bool) []any {
	deleted := make([]any, 0)
	retained := make([]any, 0, len(c.records))
	for _, r := range c.records {
		if pred(r) {
			deleted = append(deleted, r)
		} else {
			retained = append(retained, r)
		}
	}
	c.records = retained
	return deleted
}

// Count returns the number of records.
func (c *Collection) Count() int {
	return len(c.records)
}

func (c *Collection) indexOf(id any) int {
	for i, r := range c.records {
		key, err := c.model.Key(r)
		if err == nil && key == id {
			return i
		}
	}
	return -1
}

func (c *Collection) clone() *Collection {
	return &Collection{model: c.model, records: c.GetAll()}
}
