// Package partition routes lines to shards by hashing their content.
//
// Routing only has to be deterministic: equal lines must land in the same
// shard no matter which file they came from. None of the functions here need
// to be collision resistant, since equality is always decided on the bytes.
package partition

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// HashID identifies a partition hash function.
type HashID uint8

const (
	// DJB2 is the Bernstein rolling hash (h = h*33 + b, seeded with 5381).
	DJB2 HashID = iota
	// XXHash is 64-bit xxHash.
	XXHash
	// XXH3 is 64-bit XXH3.
	XXH3
	// Murmur3 is the 64-bit half of MurmurHash3 x64_128.
	Murmur3
)

// String returns the name of the hash function.
func (id HashID) String() string {
	switch id {
	case DJB2:
		return "djb2"
	case XXHash:
		return "xxhash"
	case XXH3:
		return "xxh3"
	case Murmur3:
		return "murmur3"
	default:
		return "unknown"
	}
}

// Valid reports whether id names a known hash function.
func (id HashID) Valid() bool {
	return id <= Murmur3
}

// Func hashes a line to 64 bits.
type Func func(line []byte) uint64

// Lookup returns the hash function for id, or nil if id is unknown.
func Lookup(id HashID) Func {
	switch id {
	case DJB2:
		return Sum64DJB2
	case XXHash:
		return xxhash.Sum64
	case XXH3:
		return xxh3.Hash
	case Murmur3:
		return murmur3.Sum64
	default:
		return nil
	}
}

// Sum64DJB2 computes the DJB2 hash of line. Overflow wraps.
func Sum64DJB2(line []byte) uint64 {
	h := uint64(5381)
	for _, b := range line {
		h = h*33 + uint64(b)
	}
	return h
}

// Index maps hash to a partition in [0, numParts).
func Index(hash uint64, numParts int) int {
	if numParts <= 1 {
		return 0
	}
	return int(hash % uint64(numParts))
}

// Router assigns lines to partitions for a fixed partition count.
type Router struct {
	hash     Func
	numParts int
}

// NewRouter returns a Router using the hash function id.
// It returns nil if id is unknown.
func NewRouter(id HashID, numParts int) *Router {
	fn := Lookup(id)
	if fn == nil {
		return nil
	}
	return &Router{hash: fn, numParts: numParts}
}

// Route returns the partition index of line.
func (r *Router) Route(line []byte) int {
	return Index(r.hash(line), r.numParts)
}

// NumParts returns the partition count.
func (r *Router) NumParts() int {
	return r.numParts
}
