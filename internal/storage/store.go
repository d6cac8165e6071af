// Package storage сохраняет снимки сущностей между запусками сервера:
// сущности карты при её выгрузке и персонажей игроков при выходе.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/annel0/archipelo-server/internal/snapshot"
)

// ErrClosed операция над закрытым хранилищем.
var ErrClosed = errors.New("хранилище закрыто")

// Record сохранённая сущность.
type Record struct {
	Name     string             `json:"name"`
	Type     string             `json:"type"`
	Snapshot *snapshot.Snapshot `json:"snapshot"`
}

// SnapshotStore определяет интерфейс хранилища снимков.
type SnapshotStore interface {
	// SaveMap заменяет все сохранённые сущности карты.
	// Параметры:
	//   ctx - контекст для отмены операции
	//   mapName - имя карты
	//   records - постоянные снимки сущностей карты (без игроков)
	SaveMap(ctx context.Context, mapName string, records []Record) error

	// LoadMap возвращает сохранённые сущности карты.
	// Для карты без сохранений возвращает пустой список без ошибки.
	LoadMap(ctx context.Context, mapName string) ([]Record, error)

	// SavePlayer сохраняет персонажа игрока по email аккаунта.
	SavePlayer(ctx context.Context, account string, rec Record) error

	// LoadPlayer загружает персонажа игрока.
	// Возвращает:
	//   Record - сохранённый персонаж
	//   bool - false если игрок входит впервые
	//   error - ошибка хранилища
	LoadPlayer(ctx context.Context, account string) (Record, bool, error)

	Close() error
}

func mapKey(name string) string    { return "map:" + name }
func playerKey(name string) string { return "player:" + name }

func encodeRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записей: %w", err)
	}
	return data, nil
}

func decodeRecords(data []byte) ([]Record, error) {
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("ошибка десериализации записей: %w", err)
	}
	return records, nil
}

func encodeRecord(rec Record) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации записи %s: %w", rec.Name, err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("ошибка десериализации записи: %w", err)
	}
	return rec, nil
}
