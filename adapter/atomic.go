package adapter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// defaultFileMode is the permission of files created by adapters.
const defaultFileMode os.FileMode = 0o644

// beforeRename runs after the temp file is complete and synced, right before
// it is renamed over the destination. Tests replace it to simulate a crash.
var beforeRename = func(tmpPath, dstPath string) error { return nil }

// WriteFileAtomic writes data to path using the write-rename protocol.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return writeAtomic(path, func(tmp string) error {
		f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
		if err != nil {
			return err
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	})
}

// writeAtomic lets fill produce a complete file at a temp path in the same
// directory as path, syncs it, and renames it over path.
// The temp file is removed on any failure.
func writeAtomic(path string, fill func(tmpPath string) error) (err error) {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(path), uuid.NewString()))

	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := syncFile(tmp); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := beforeRename(tmp, path); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	// The rename itself is durable only once the directory entry is synced.
	// Not every platform supports syncing a directory, so failures are ignored.
	_ = syncFile(dir)
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
