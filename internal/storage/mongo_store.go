package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig contains connection settings for the MongoDB snapshot store.
type MongoConfig struct {
	URI      string // e.g. mongodb://localhost:27017
	Database string // e.g. archipelo
}

// MongoStore keeps snapshots as JSON payloads inside documents keyed by map or account.
type MongoStore struct {
	client     *mongo.Client
	maps       *mongo.Collection
	players    *mongo.Collection
	ctxTimeout time.Duration
}

type mongoDoc struct {
	ID        string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// NewMongoStore establishes connection and returns the store.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		cfg.URI = "mongodb://localhost:27017"
	}
	if cfg.Database == "" {
		cfg.Database = "archipelo"
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	db := client.Database(cfg.Database)
	return &MongoStore{
		client:     client,
		maps:       db.Collection("map_snapshots"),
		players:    db.Collection("player_snapshots"),
		ctxTimeout: 5 * time.Second,
	}, nil
}

func (s *MongoStore) upsert(ctx context.Context, coll *mongo.Collection, id string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, s.ctxTimeout)
	defer cancel()
	doc := mongoDoc{ID: id, Payload: payload, UpdatedAt: time.Now()}
	_, err := coll.ReplaceOne(ctx, bson.M{"_id": id}, doc, options.Replace().SetUpsert(true))
	return err
}

func (s *MongoStore) find(ctx context.Context, coll *mongo.Collection, id string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.ctxTimeout)
	defer cancel()
	var doc mongoDoc
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return doc.Payload, true, nil
}

func (s *MongoStore) SaveMap(ctx context.Context, mapName string, records []Record) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.maps, mapName, data)
}

func (s *MongoStore) LoadMap(ctx context.Context, mapName string) ([]Record, error) {
	data, ok, err := s.find(ctx, s.maps, mapName)
	if err != nil || !ok {
		return nil, err
	}
	return decodeRecords(data)
}

func (s *MongoStore) SavePlayer(ctx context.Context, account string, rec Record) error {
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return s.upsert(ctx, s.players, account, data)
}

func (s *MongoStore) LoadPlayer(ctx context.Context, account string) (Record, bool, error) {
	data, ok, err := s.find(ctx, s.players, account)
	if err != nil || !ok {
		return Record{}, false, err
	}
	rec, err := decodeRecord(data)
	return rec, err == nil, err
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.ctxTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
