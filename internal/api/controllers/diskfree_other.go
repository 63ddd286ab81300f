//go:build !unix

package controllers

// freeSpace is unsupported here; the stats endpoint reports zero.
func freeSpace(path string) (uint64, error) {
	return 0, nil
}
