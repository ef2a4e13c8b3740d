package batcher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/NethermindEth/starknet-batcher/db"
	"github.com/NethermindEth/starknet-batcher/encoder"
)

// Storage persists decided blocks.
type Storage struct {
	database db.DB
}

func NewStorage(database db.DB) *Storage {
	return &Storage{database: database}
}

// StoreDecidedBlock writes block and advances the latest decided height when block is above it.
func (s *Storage) StoreDecidedBlock(block *DecidedBlock) error {
	blockBytes, err := encoder.Marshal(block)
	if err != nil {
		return err
	}

	return s.database.Update(func(txn db.Transaction) error {
		if err := txn.Set(db.DecidedBlocks.Key(db.Uint64Key(uint64(block.Height))), blockBytes); err != nil {
			return err
		}

		latest, found, err := latestDecidedHeight(txn)
		if err != nil {
			return err
		}
		if found && latest >= block.Height {
			return nil
		}
		return txn.Set(db.LatestDecidedHeight.Key(), db.Uint64Key(uint64(block.Height)))
	})
}

// DecidedBlock returns the block decided at height or db.ErrKeyNotFound.
func (s *Storage) DecidedBlock(height Height) (*DecidedBlock, error) {
	var block DecidedBlock
	err := s.database.View(func(txn db.Transaction) error {
		return txn.Get(db.DecidedBlocks.Key(db.Uint64Key(uint64(height))), func(val []byte) error {
			return encoder.Unmarshal(val, &block)
		})
	})
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// DecidedBlocks calls fn with the decided blocks of heights from to to, both included,
// in height order. Heights nothing was decided at are skipped.
func (s *Storage) DecidedBlocks(from, to Height, fn func(*DecidedBlock) error) error {
	if from > to {
		return nil
	}
	upperBound := db.DecidedBlocks.End()
	if to < math.MaxUint64 {
		upperBound = db.DecidedBlocks.Key(db.Uint64Key(uint64(to) + 1))
	}

	return s.database.View(func(txn db.Transaction) (err error) {
		it, err := txn.NewIterator(db.DecidedBlocks.Key(db.Uint64Key(uint64(from))), upperBound)
		if err != nil {
			return err
		}
		defer db.CloseAndWrapOnError(it.Close, &err)

		for it.Next() {
			val, valErr := it.Value()
			if valErr != nil {
				return valErr
			}
			var block DecidedBlock
			if decodeErr := encoder.Unmarshal(val, &block); decodeErr != nil {
				return fmt.Errorf("decode decided block %x: %w", it.Key(), decodeErr)
			}
			if fnErr := fn(&block); fnErr != nil {
				return fnErr
			}
		}
		return nil
	})
}

// LatestDecidedHeight returns the highest decided height, found is false when nothing was decided yet.
func (s *Storage) LatestDecidedHeight() (height Height, found bool, err error) {
	err = s.database.View(func(txn db.Transaction) error {
		height, found, err = latestDecidedHeight(txn)
		return err
	})
	return height, found, err
}

func latestDecidedHeight(txn db.Transaction) (Height, bool, error) {
	var height Height
	err := txn.Get(db.LatestDecidedHeight.Key(), func(val []byte) error {
		height = Height(binary.BigEndian.Uint64(val))
		return nil
	})
	if errors.Is(err, db.ErrKeyNotFound) {
		return 0, false, nil
	}
	return height, err == nil, err
}
