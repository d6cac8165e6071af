package storage

import (
	"context"
	"os"
	"testing"

	"github.com/annel0/archipelo-server/internal/snapshot"
	"github.com/annel0/archipelo-server/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract прогоняет общий набор проверок для любой реализации.
func runStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()

	t.Run("Empty Map", func(t *testing.T) {
		records, err := store.LoadMap(ctx, "never-saved")
		if err != nil {
			t.Fatalf("Ошибка загрузки пустой карты: %v", err)
		}
		assert.Empty(t, records)
	})

	t.Run("Save and Load Map", func(t *testing.T) {
		snap := snapshot.New().SetPoint("pos", vec.Vec2{X: 3, Y: 4}).SetInt("style", 1).SetFloat("health", 7.5)
		records := []Record{
			{Name: "grave1", Type: "grave", Snapshot: snap},
			{Name: "slime1", Type: "slime", Snapshot: snapshot.New()},
		}
		require.NoError(t, store.SaveMap(ctx, "town", records))

		loaded, err := store.LoadMap(ctx, "town")
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		assert.Equal(t, "grave1", loaded[0].Name)
		assert.Equal(t, "grave", loaded[0].Type)
		assert.True(t, snap.Equal(loaded[0].Snapshot))
	})

	t.Run("Save Map Replaces", func(t *testing.T) {
		require.NoError(t, store.SaveMap(ctx, "town", nil))
		loaded, err := store.LoadMap(ctx, "town")
		require.NoError(t, err)
		assert.Empty(t, loaded)
	})

	t.Run("Players", func(t *testing.T) {
		_, found, err := store.LoadPlayer(ctx, "new@example.com")
		require.NoError(t, err)
		if found {
			t.Error("Найден игрок, который ещё не сохранялся")
		}

		rec := Record{Name: "hero", Type: "player", Snapshot: snapshot.New().SetString("map", "cave")}
		require.NoError(t, store.SavePlayer(ctx, "hero@example.com", rec))

		got, found, err := store.LoadPlayer(ctx, "hero@example.com")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "cave", got.Snapshot.String("map", ""))
	})
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	runStoreContract(t, store)

	require.NoError(t, store.Close())
	_, err := store.LoadMap(context.Background(), "town")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBadgerStore(t *testing.T) {
	store, err := NewInMemoryBadgerStore()
	require.NoError(t, err)
	runStoreContract(t, store)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "повторное закрытие безопасно")
	assert.ErrorIs(t, store.SaveMap(context.Background(), "x", nil), ErrClosed)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("ARCHIPELO_TEST_REDIS")
	if addr == "" {
		t.Skip("ARCHIPELO_TEST_REDIS не задан")
	}
	store, err := NewRedisStore(context.Background(), &RedisConfig{Addr: addr, KeyPrefix: "archipelo-test:"})
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("ARCHIPELO_TEST_MONGO")
	if uri == "" {
		t.Skip("ARCHIPELO_TEST_MONGO не задан")
	}
	store, err := NewMongoStore(context.Background(), MongoConfig{URI: uri, Database: "archipelo_test"})
	require.NoError(t, err)
	defer store.Close()
	runStoreContract(t, store)
}
