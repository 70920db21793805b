package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/veertuinc/glimpse/internal/config"
)

// KeyPrefix namespaces every snapshot key: glimpse/stats/<collector>/<plugin>.
const KeyPrefix = "glimpse/stats/"

const scanCount = 100

type Database struct {
	Client redis.Cmdable
	TTL    time.Duration
}

func NewClient(ctx context.Context, config config.Database) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.URL, config.Port),
		Username: config.User,
		Password: config.Password,
		DB:       config.Database,
	})

	pong, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	if pong != "PONG" {
		return nil, fmt.Errorf("unable to connect to Redis, received: %s", pong)
	}

	return rdb, nil
}

func New(ctx context.Context, cfg config.Database) (*Database, error) {
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Database{
		Client: client,
		TTL:    time.Duration(cfg.TTLSeconds) * time.Second,
	}, nil
}

func GetDatabaseFromContext(ctx context.Context) (*Database, error) {
	database, ok := ctx.Value(config.ContextKey("database")).(*Database)
	if !ok {
		return nil, errors.New("GetDatabaseFromContext failed (is your database running and enabled in your config.yml?)")
	}
	return database, nil
}

func SnapshotKey(collectorID, plugin string) string {
	return KeyPrefix + collectorID + "/" + plugin
}

// StoreSnapshot JSON-encodes value under key, expiring after TTL when set.
func (d *Database) StoreSnapshot(ctx context.Context, key string, value any) error {
	if ctx.Err() != nil {
		return errors.New("context canceled during StoreSnapshot")
	}
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding snapshot %s: %w", key, err)
	}
	return d.Client.Set(ctx, key, body, d.TTL).Err()
}

// LoadSnapshots returns the raw value of every snapshot key matching pattern
// (relative to KeyPrefix, e.g. "*" or "<collector>/*").
func (d *Database) LoadSnapshots(ctx context.Context, pattern string) (map[string][]byte, error) {
	keys, err := d.scan(ctx, KeyPrefix+pattern)
	if err != nil {
		return nil, err
	}
	values := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := d.Client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// expired between SCAN and GET
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("getting %s: %w", key, err)
		}
		values[key] = value
	}
	return values, nil
}

// Cleanup removes every snapshot written by collectorID and returns how many
// keys were deleted.
func (d *Database) Cleanup(ctx context.Context, collectorID string) (int64, error) {
	keys, err := d.scan(ctx, SnapshotKey(collectorID, "*"))
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	return d.Client.Del(ctx, keys...).Result()
}

func (d *Database) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		batch, next, err := d.Client.Scan(ctx, cursor, match, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", match, err)
		}
		keys = append(keys, batch...)
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}
