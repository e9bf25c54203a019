// Package adapter persists and loads a state.State.
//
// An Adapter has two operations, Persist and Load. Implementations differ
// by file layout and encoding format:
//
//   - Unified: one file holds the whole state as a single document whose
//     top-level keys are model names (JSON, YAML), or one SQLite database.
//   - Partitioned: one directory holds one file per model, named after the
//     model with the format's extension (JSON, YAML, CSV).
//
// # Atomic Writes
//
// Every file is written with the write-rename protocol: the content goes to
// a uniquely named temp file in the destination directory, is fsynced,
// and is renamed over the destination. Readers and crashes observe either
// the complete old file or the complete new file.
//
// Partitioned adapters apply the protocol per file. There is NO cross-file
// atomicity: a crash between two files of the same persist can leave the
// directory mixing old and new collections.
//
// # Load
//
// A missing target yields an empty state with every declared collection.
// Other filesystem failures are dberr IO errors. Malformed or
// shape-incompatible content is a dberr serialization error.
package adapter
