package storage

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string // Адрес Redis сервера
	Password  string // Пароль (пустой если не требуется)
	DB        int    // Номер базы данных
	KeyPrefix string // Префикс для ключей
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "archipelo:",
	}
}

// RedisStore хранит снимки в Redis строками JSON без TTL.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore подключается к Redis и проверяет соединение.
func NewRedisStore(ctx context.Context, config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisStore{client: client, keyPrefix: config.KeyPrefix}, nil
}

func (s *RedisStore) key(k string) string { return s.keyPrefix + k }

func (s *RedisStore) load(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *RedisStore) SaveMap(ctx context.Context, mapName string, records []Record) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(mapKey(mapName)), data, 0).Err()
}

func (s *RedisStore) LoadMap(ctx context.Context, mapName string) ([]Record, error) {
	data, ok, err := s.load(ctx, mapKey(mapName))
	if err != nil || !ok {
		return nil, err
	}
	return decodeRecords(data)
}

func (s *RedisStore) SavePlayer(ctx context.Context, account string, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(playerKey(account)), data, 0).Err()
}

func (s *RedisStore) LoadPlayer(ctx context.Context, account string) (Record, bool, error) {
	data, ok, err := s.load(ctx, playerKey(account))
	if err != nil || !ok {
		return Record{}, false, err
	}
	rec, err := decodeRecord(data)
	return rec, err == nil, err
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
