package journal

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/RyanW02/chainsocial/pkg/types/social"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type LevelDBJournal struct {
	db *leveldb.DB
}

const (
	keyIdCounter          = "id_counter_pending"
	keyPrefixPending      = "pending_"
	keyPrefixPendingIndex = "index_pending_"
)

// Enforce interface constraints at compile time
var _ Journal = (*LevelDBJournal)(nil)

func NewLevelDBJournal(path string) (*LevelDBJournal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}

	return &LevelDBJournal{
		db: db,
	}, nil
}

func (j *LevelDBJournal) Close(ctx context.Context) error {
	return j.db.Close()
}

// Entries are keyed by signer then by an incrementing ID, so that iterating a signer's prefix yields submission
// order. An index maps the tx hash back to the entry key.
func (j *LevelDBJournal) Record(ctx context.Context, entry Entry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return j.withIncrementingId(func(tx *leveldb.Transaction, id uint64) error {
		indexKey := indexKey(entry.TxHash)

		// Recording the same transaction twice replaces the earlier entry
		prevKey, err := tx.Get(indexKey, nil)
		if err == nil {
			if err := tx.Delete(prevKey, nil); err != nil {
				return err
			}
		} else if !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}

		key := entryKey(entry.Signer, id)

		batch := new(leveldb.Batch)
		batch.Put(indexKey, key)
		batch.Put(key, encoded)
		return tx.Write(batch, nil)
	})
}

func (j *LevelDBJournal) Resolve(ctx context.Context, txHash []byte) error {
	return j.withTransaction(func(tx *leveldb.Transaction) error {
		indexKey := indexKey(txHash)
		key, err := tx.Get(indexKey, nil)
		if err != nil {
			if errors.Is(err, leveldb.ErrNotFound) {
				return nil
			}

			return err
		}

		if err := tx.Delete(indexKey, nil); err != nil {
			return err
		}

		if err := tx.Delete(key, nil); err != nil && !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}

		return nil
	})
}

func (j *LevelDBJournal) Unresolved(ctx context.Context, signer social.Identity) ([]Entry, error) {
	it := j.db.NewIterator(util.BytesPrefix(signerPrefix(signer)), nil)
	defer it.Release()

	var entries []Entry
	for it.Next() {
		var entry Entry
		if err := json.Unmarshal(it.Value(), &entry); err != nil {
			return nil, fmt.Errorf("invalid journal entry %x: %w", it.Key(), err)
		}

		entries = append(entries, entry)
	}

	if err := it.Error(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (j *LevelDBJournal) withIncrementingId(f func(tx *leveldb.Transaction, id uint64) error) error {
	return j.withTransaction(func(tx *leveldb.Transaction) error {
		var id uint64

		counterBytes, err := tx.Get(bz(keyIdCounter), nil)
		if err == nil {
			if len(counterBytes) != 8 {
				return fmt.Errorf("invalid counter length: %d", len(counterBytes))
			}

			id = binary.BigEndian.Uint64(counterBytes)
		} else if !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}

		id++
		if err := tx.Put(bz(keyIdCounter), binary.BigEndian.AppendUint64(nil, id), nil); err != nil {
			return err
		}

		return f(tx, id)
	})
}

func (j *LevelDBJournal) withTransaction(f func(tx *leveldb.Transaction) error) error {
	tx, err := j.db.OpenTransaction()
	if err != nil {
		return err
	}
	defer tx.Discard()

	if err := f(tx); err != nil {
		return err
	}

	return tx.Commit()
}

// Signer identities are hex, so cannot contain the separator.
func signerPrefix(signer social.Identity) []byte {
	return bz(keyPrefixPending + signer.String() + "_")
}

func entryKey(signer social.Identity, id uint64) []byte {
	return binary.BigEndian.AppendUint64(signerPrefix(signer), id)
}

func indexKey(txHash []byte) []byte {
	return bz(keyPrefixPendingIndex + hex.EncodeToString(txHash))
}

func bz(s string) []byte {
	return []byte(s)
}
