package pebble

import (
	"time"

	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/cockroachdb/pebble"
)

var _ db.Iterator = (*rangeIterator)(nil)

// rangeIterator walks the bounds it was created with. Every step is reported to the
// listener as a read.
type rangeIterator struct {
	iter     *pebble.Iterator
	listener db.EventListener
	started  bool
}

// Next : see db.Iterator.Next
func (i *rangeIterator) Next() bool {
	defer i.listener.OnIO(false, time.Now())
	if !i.started {
		i.started = true
		return i.iter.First()
	}
	return i.iter.Next()
}

// Key : see db.Iterator.Key
func (i *rangeIterator) Key() []byte {
	return i.iter.Key()
}

// Value : see db.Iterator.Value
func (i *rangeIterator) Value() ([]byte, error) {
	return i.iter.ValueAndErr()
}

// Close : see io.Closer.Close
func (i *rangeIterator) Close() error {
	return i.iter.Close()
}
