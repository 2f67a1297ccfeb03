//go:build !linux

package shardset

import "os"

// fadviseSequential is a no-op on non-Linux platforms.
// FADV_SEQUENTIAL is Linux-specific.
func fadviseSequential(f *os.File) {
	// No-op
}

// adviseSequential is a no-op on non-Linux platforms.
func adviseSequential(data []byte) {
	// No-op
}
