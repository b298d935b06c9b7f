//go:build !unix

package wal

// fsyncDir is a no-op on platforms without a directory-fsync
// primitive; the WAL file's own fsync still covers content durability.
func fsyncDir(path string) error {
	return nil
}
