//go:build linux

package chunking

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// AvailableMemory reports free plus buffer RAM.
func AvailableMemory() (uint64, error) {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, fmt.Errorf("sysinfo: %w", err)
	}
	unit := uint64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return (uint64(info.Freeram) + uint64(info.Bufferram)) * unit, nil
}
