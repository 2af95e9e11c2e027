package store

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// LevelDBStore persists slots in a LevelDB database. Each Commit is written
// as a single batch.
type LevelDBStore struct {
	db       *leveldb.DB
	readOnly bool
}

// OpenLevelDB opens (or creates) a database at path.
func OpenLevelDB(path string, readOnly bool) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{ReadOnly: readOnly})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelDBStore{db: db, readOnly: readOnly}, nil
}

// OpenInMemoryLevelDB opens a database on volatile memory storage.
func OpenInMemoryLevelDB() (*LevelDBStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open in-memory leveldb: %w", err)
	}
	return &LevelDBStore{db: db}, nil
}

func (s *LevelDBStore) Get(key common.Hash) (common.Hash, error) {
	val, err := s.db.Get(key[:], nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return common.Hash{}, nil
	}
	if err != nil {
		return common.Hash{}, fmt.Errorf("get slot %s: %w", key, err)
	}
	return common.BytesToHash(val), nil
}

func (s *LevelDBStore) Commit(writes map[common.Hash]common.Hash) error {
	if s.readOnly {
		return ErrReadOnly
	}
	batch := new(leveldb.Batch)
	for k, v := range writes {
		if v == (common.Hash{}) {
			batch.Delete(k.Bytes())
			continue
		}
		batch.Put(k.Bytes(), v.Bytes())
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("write batch: %w", err)
	}
	return nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
