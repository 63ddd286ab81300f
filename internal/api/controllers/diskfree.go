//go:build unix

package controllers

import "golang.org/x/sys/unix"

// freeSpace reports the bytes available to unprivileged users on the
// filesystem holding the download tree.
func freeSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return st.Bavail * uint64(st.Bsize), nil
}
