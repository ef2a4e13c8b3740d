package db

import (
	"encoding/binary"
	"slices"
)

type Bucket byte

// Pebble does not support buckets to differentiate between groups of
// keys like Bolt or MDBX does. We use a global prefix list as a poor
// man's bucket alternative.
const (
	DecidedBlocks       Bucket = iota // Block height -> DecidedBlock
	LatestDecidedHeight               // Latest decided block height
)

// Key flattens a prefix and series of byte arrays into a single []byte.
func (b Bucket) Key(key ...[]byte) []byte {
	return append([]byte{byte(b)}, slices.Concat(key...)...)
}

// End returns the first key past every key of the bucket.
func (b Bucket) End() []byte {
	return []byte{byte(b) + 1}
}

// Uint64Key encodes a number big endian so that keys sort numerically.
func Uint64Key(n uint64) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], n)
	return key[:]
}
