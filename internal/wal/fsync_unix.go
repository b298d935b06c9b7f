//go:build unix

package wal

import "golang.org/x/sys/unix"

// fsyncDir flushes the directory entry for a just-created file so the
// file's existence itself survives a crash, not just its contents.
func fsyncDir(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_DIRECTORY, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	return unix.Fsync(fd)
}
