//go:build linux

package shardset

import (
	"os"

	"golang.org/x/sys/unix"
)

// fadviseSequential hints to the kernel that f will be read sequentially.
// Applied to inputs and query shards before they are streamed.
// Best-effort: errors are silently ignored.
func fadviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}

// adviseSequential enables readahead on a mapping that is scanned front to back.
// Best-effort: errors are silently ignored.
func adviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
