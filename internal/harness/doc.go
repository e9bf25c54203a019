// Package harness runs YAML-described CRUD scenarios against a filedb engine.
//
// A scenario declares document models, a store format and sync policy,
// seed records, a list of steps and assertions over the outcome:
//
//	name: insert_then_reload
//	description: "Inserted records survive a reopen"
//	store:
//	  format: json
//	  sync: every-write
//	models:
//	  - name: users
//	setup:
//	  - model: users
//	    records:
//	      - { id: "1", name: Alice }
//	steps:
//	  - op: insert
//	    model: users
//	    record: { id: "1", name: Again }
//	    expect:
//	      error: DUPLICATE_ID
//	  - op: reopen
//	  - op: get
//	    model: users
//	    id: "1"
//	    expect:
//	      found: true
//	      record: { name: Alice }
//	assertions:
//	  - type: final_state
//	    model: users
//	    where: 'id == "1"'
//	    expect: { name: Alice }
//	  - type: persisted
//
// # Operations
//
//   - insert, upsert: record
//   - update: id, record
//   - delete, get: id
//   - delete_by: where (an expression over record fields)
//   - list, count: optional where
//   - flush: persist now
//   - reopen: close the engine and open the store again
//
// # Assertion Types
//
//   - trace_contains: a step with op (and model, id) ran
//   - trace_order: steps with the given ops ran in this order
//   - trace_count: a step with op ran exactly count times
//   - final_state: exactly one record of model matches where, and contains expect
//   - record_count: model holds count records
//   - persisted: the store on disk, loaded fresh, equals the engine state
//
// Each scenario runs in its own directory. Records are normalized through
// JSON before use, so YAML integers compare equal to the float64 values a
// reloaded document holds.
package harness
