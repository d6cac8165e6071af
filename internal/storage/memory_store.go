package storage

import (
	"context"
	"sync"
)

// MemoryStore реализует SnapshotStore в памяти.
// Используется по умолчанию и в тестах.
// ВНИМАНИЕ: Данные теряются при перезапуске сервера!
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) put(ctx context.Context, key string, data []byte) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.data[key] = data
	return nil
}

func (s *MemoryStore) get(ctx context.Context, key string) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	data, ok := s.data[key]
	return data, ok, nil
}

func (s *MemoryStore) SaveMap(ctx context.Context, mapName string, records []Record) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	return s.put(ctx, mapKey(mapName), data)
}

func (s *MemoryStore) LoadMap(ctx context.Context, mapName string) ([]Record, error) {
	data, ok, err := s.get(ctx, mapKey(mapName))
	if err != nil || !ok {
		return nil, err
	}
	return decodeRecords(data)
}

func (s *MemoryStore) SavePlayer(ctx context.Context, account string, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.put(ctx, playerKey(account), data)
}

func (s *MemoryStore) LoadPlayer(ctx context.Context, account string) (Record, bool, error) {
	data, ok, err := s.get(ctx, playerKey(account))
	if err != nil || !ok {
		return Record{}, false, err
	}
	rec, err := decodeRecord(data)
	return rec, err == nil, err
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
