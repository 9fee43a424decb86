//go:build !linux

package chunking

import "errors"

// AvailableMemory is not implemented on this platform.
func AvailableMemory() (uint64, error) {
	return 0, errors.New("available memory detection unsupported on this platform")
}
