package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore хранит снимки во встроенной BadgerDB.
type BadgerStore struct {
	db      *badger.DB
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает базу по пути path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // Отключаем логирование BadgerDB
	return openBadger(opts)
}

// NewInMemoryBadgerStore открывает базу без файлов (для тестов).
func NewInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}
	return &BadgerStore{db: db, isReady: true}, nil
}

func (s *BadgerStore) set(key string, data []byte) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return ErrClosed
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerStore) read(key string) ([]byte, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if !s.isReady {
		return nil, false, ErrClosed
	}

	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return data, true, nil
}

func (s *BadgerStore) SaveMap(ctx context.Context, mapName string, records []Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	return s.set(mapKey(mapName), data)
}

func (s *BadgerStore) LoadMap(ctx context.Context, mapName string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, ok, err := s.read(mapKey(mapName))
	if err != nil || !ok {
		return nil, err
	}
	return decodeRecords(data)
}

func (s *BadgerStore) SavePlayer(ctx context.Context, account string, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.set(playerKey(account), data)
}

func (s *BadgerStore) LoadPlayer(ctx context.Context, account string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, err
	}
	data, ok, err := s.read(playerKey(account))
	if err != nil || !ok {
		return Record{}, false, err
	}
	rec, err := decodeRecord(data)
	return rec, err == nil, err
}

// Close закрывает хранилище данных
func (s *BadgerStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}
	s.isReady = false
	return s.db.Close()
}
