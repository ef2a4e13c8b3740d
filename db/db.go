package db

import (
	"errors"
	"io"
)

var ErrKeyNotFound = errors.New("key not found")

// DB is a key-value database
type DB interface {
	io.Closer

	// NewTransaction returns a transaction on this database, it should block if an update transaction is requested
	// while another one is still in progress
	NewTransaction(update bool) Transaction
	// View runs fn on a read-only transaction
	View(fn func(txn Transaction) error) error
	// Update runs fn on a read-write transaction and commits it if fn succeeds
	Update(fn func(txn Transaction) error) error

	// WithListener registers an EventListener
	WithListener(listener EventListener) DB

	// Impl returns the underlying database object
	Impl() any
}

// Iterator walks a key range in ascending key order. It starts before the first key of
// the range, so Next has to be called before reading Key or Value.
type Iterator interface {
	io.Closer

	// Next moves to the next key of the range and reports whether there was one.
	Next() bool
	// Key returns the current key, it is only valid until the next call to Next.
	Key() []byte
	// Value returns the current value, it is only valid until the next call to Next.
	Value() ([]byte, error)
}

// Transaction provides an interface to access the database's state at the point the transaction was created
// Updates done to the database with a transaction should be only visible to other newly created transaction after
// the transaction is committed.
type Transaction interface {
	// NewIterator returns an iterator over the keys k with lowerBound <= k < upperBound.
	// A nil upperBound leaves the range open.
	NewIterator(lowerBound, upperBound []byte) (Iterator, error)
	// Discard discards all the changes done to the database with this transaction
	Discard() error
	// Commit flushes all the changes pending on this transaction to the database, making the changes visible to other
	// transaction
	Commit() error

	// Set updates the value of the given key
	Set(key, val []byte) error
	// Delete removes the key from the database
	Delete(key []byte) error
	// Get fetches the value for the given key, should return ErrKeyNotFound if key is not present
	// Caller should not assume that the slice would stay valid after the call to cb
	Get(key []byte, cb func([]byte) error) error

	// Impl returns the underlying transaction object
	Impl() any
}

// CloseAndWrapOnError closes closer and wraps its error into *existingErr.
func CloseAndWrapOnError(closer func() error, existingErr *error) {
	if closeErr := closer(); closeErr != nil {
		if *existingErr == nil {
			*existingErr = closeErr
		} else {
			*existingErr = errors.Join(*existingErr, closeErr)
		}
	}
}
