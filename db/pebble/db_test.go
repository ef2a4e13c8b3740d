package pebble_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/db/pebble"
	"github.com/NethermindEth/starknet-batcher/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var noop = func(val []byte) error {
	return nil
}

func TestTransaction(t *testing.T) {
	t.Run("new transaction can retrieve exising value", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		txn := testDB.NewTransaction(true)
		require.NoError(t, txn.Set([]byte("key"), []byte("value")))

		require.NoError(t, txn.Commit())

		readOnlyTxn := testDB.NewTransaction(false)
		assert.NoError(t, readOnlyTxn.Get([]byte("key"), func(val []byte) error {
			assert.Equal(t, "value", string(val))
			return nil
		}))
		require.NoError(t, readOnlyTxn.Discard())
	})

	t.Run("discarded transaction is not committed to DB", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		txn := testDB.NewTransaction(true)
		require.NoError(t, txn.Set([]byte("key"), []byte("value")))
		require.NoError(t, txn.Discard())

		readOnlyTxn := testDB.NewTransaction(false)
		assert.EqualError(t, readOnlyTxn.Get([]byte("key"), noop), db.ErrKeyNotFound.Error())
		require.NoError(t, readOnlyTxn.Discard())
	})

	t.Run("value committed by a transactions are not accessible to other transactions created"+
		" before Commit()", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		txn1 := testDB.NewTransaction(true)
		txn2 := testDB.NewTransaction(false)

		require.NoError(t, txn1.Set([]byte("key1"), []byte("value1")))
		assert.EqualError(t, txn2.Get([]byte("key1"), noop), db.ErrKeyNotFound.Error())

		require.NoError(t, txn1.Commit())
		assert.EqualError(t, txn2.Get([]byte("key1"), noop), db.ErrKeyNotFound.Error())
		require.NoError(t, txn2.Discard())

		txn3 := testDB.NewTransaction(false)
		assert.NoError(t, txn3.Get([]byte("key1"), func(bytes []byte) error {
			assert.Equal(t, []byte("value1"), bytes)
			return nil
		}))
		require.NoError(t, txn3.Discard())
	})

	t.Run("discarded transaction cannot commit", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		txn := testDB.NewTransaction(true)
		require.NoError(t, txn.Set([]byte("key"), []byte("value")))
		require.NoError(t, txn.Discard())

		assert.Error(t, txn.Commit())
	})

	t.Run("read only transaction cannot write", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		txn := testDB.NewTransaction(false)
		assert.Error(t, txn.Set([]byte("key"), []byte("value")))
		assert.Error(t, txn.Delete([]byte("key")))
		require.NoError(t, txn.Discard())
	})
}

func TestViewUpdate(t *testing.T) {
	t.Run("value after Update is committed to DB", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		require.EqualError(t, testDB.View(func(txn db.Transaction) error {
			return txn.Get([]byte("key"), noop)
		}), db.ErrKeyNotFound.Error())

		require.NoError(t, testDB.Update(func(txn db.Transaction) error {
			return txn.Set([]byte("key"), []byte("value"))
		}))

		assert.NoError(t, testDB.View(func(txn db.Transaction) error {
			return txn.Get([]byte("key"), func(val []byte) error {
				assert.Equal(t, "value", string(val))
				return nil
			})
		}))
	})

	t.Run("Update error does not commit value to DB", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		updateErr := errors.New("update failed")
		require.ErrorIs(t, testDB.Update(func(txn db.Transaction) error {
			require.NoError(t, txn.Set([]byte("key"), []byte("value")))
			return updateErr
		}), updateErr)

		require.ErrorIs(t, testDB.View(func(txn db.Transaction) error {
			return txn.Get([]byte("key"), noop)
		}), db.ErrKeyNotFound)
	})

	t.Run("panicking Update releases the write lock", func(t *testing.T) {
		testDB := pebble.NewMemTest(t)

		assert.Panics(t, func() {
			_ = testDB.Update(func(txn db.Transaction) error {
				panic("boom")
			})
		})

		require.NoError(t, testDB.Update(func(txn db.Transaction) error {
			return txn.Set([]byte("key"), []byte("value"))
		}))
	})
}

func TestConcurrentUpdate(t *testing.T) {
	testDB := pebble.NewMemTest(t)
	key := []byte{0}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.NoError(t, testDB.Update(func(txn db.Transaction) error {
					var next byte
					err := txn.Get(key, func(val []byte) error {
						next = val[0] + 1
						return nil
					})
					if err != nil && !errors.Is(err, db.ErrKeyNotFound) {
						return err
					}
					return txn.Set(key, []byte{next})
				}))
			}
		}()
	}
	wg.Wait()

	require.NoError(t, testDB.View(func(txn db.Transaction) error {
		return txn.Get(key, func(val []byte) error {
			// 1000 increments starting from 0 wrap around a byte
			assert.Equal(t, byte(999%256), val[0])
			return nil
		})
	}))
}

func TestIterator(t *testing.T) {
	testDB := pebble.NewMemTest(t)

	require.NoError(t, testDB.Update(func(txn db.Transaction) error {
		for i := range uint64(5) {
			if err := txn.Set(db.DecidedBlocks.Key(db.Uint64Key(i)), []byte(fmt.Sprint(i))); err != nil {
				return err
			}
		}
		return txn.Set(db.LatestDecidedHeight.Key(), db.Uint64Key(4))
	}))

	collect := func(lowerBound, upperBound []byte) []string {
		var values []string
		require.NoError(t, testDB.View(func(txn db.Transaction) error {
			it, err := txn.NewIterator(lowerBound, upperBound)
			if err != nil {
				return err
			}
			for it.Next() {
				val, err := it.Value()
				if err != nil {
					return utils.RunAndWrapOnError(it.Close, err)
				}
				values = append(values, string(val))
			}
			return it.Close()
		}))
		return values
	}

	tests := map[string]struct {
		lowerBound []byte
		upperBound []byte
		want       []string
	}{
		"whole bucket": {
			lowerBound: db.DecidedBlocks.Key(),
			upperBound: db.DecidedBlocks.End(),
			want:       []string{"0", "1", "2", "3", "4"},
		},
		"sub range": {
			lowerBound: db.DecidedBlocks.Key(db.Uint64Key(2)),
			upperBound: db.DecidedBlocks.Key(db.Uint64Key(4)),
			want:       []string{"2", "3"},
		},
		"empty range": {
			lowerBound: db.DecidedBlocks.Key(db.Uint64Key(7)),
			upperBound: db.DecidedBlocks.End(),
		},
	}
	for desc, test := range tests {
		t.Run(desc, func(t *testing.T) {
			assert.Equal(t, test.want, collect(test.lowerBound, test.upperBound))
		})
	}

	t.Run("open upper bound reaches the next bucket", func(t *testing.T) {
		values := collect(db.DecidedBlocks.Key(db.Uint64Key(4)), nil)
		require.Len(t, values, 2)
		assert.Equal(t, "4", values[0])
	})

	t.Run("discarded transaction", func(t *testing.T) {
		txn := testDB.NewTransaction(false)
		require.NoError(t, txn.Discard())
		_, err := txn.NewIterator(nil, nil)
		require.ErrorIs(t, err, pebble.ErrDiscardedTransaction)
	})
}

func TestListener(t *testing.T) {
	var reads, writes, commits int
	testDB := pebble.NewMemTest(t).WithListener(&db.SelectiveListener{
		OnIOCb: func(write bool, _ time.Duration) {
			if write {
				writes++
			} else {
				reads++
			}
		},
		OnCommitCb: func(time.Duration) {
			commits++
		},
	})

	require.NoError(t, testDB.Update(func(txn db.Transaction) error {
		return txn.Set([]byte("key"), []byte("value"))
	}))
	require.NoError(t, testDB.View(func(txn db.Transaction) error {
		return txn.Get([]byte("key"), noop)
	}))

	assert.Equal(t, 1, writes)
	assert.Equal(t, 1, reads)
	assert.Equal(t, 1, commits)
}
