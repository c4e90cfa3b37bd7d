//go:build !linux

package helpers

// TotalSystemMemoryMB is unknown outside Linux.
func TotalSystemMemoryMB() int {
	return 0
}
