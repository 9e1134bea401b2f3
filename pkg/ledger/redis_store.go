package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	igerrors "igsaved/pkg/errors"
	"igsaved/pkg/logger"
)

// ErrEmptyAddress is returned when the redis address is not configured
var ErrEmptyAddress = errors.New("redis address is required")

const connectionTimeout = 5 * time.Second

// NewRedisClient connects to redis and verifies the connection
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// RedisStore keeps the ledger in a redis hash. Fields are the entries'
// (username, post) pairs and values are JSON-encoded entries, so concurrent
// runs on different hosts share one ledger.
type RedisStore struct {
	client *redis.Client
	key    string
	dedup  DedupKey
	logger logger.Logger
}

// NewRedisStore creates a store over an existing client
func NewRedisStore(client *redis.Client, key string, dedup DedupKey, log logger.Logger) *RedisStore {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &RedisStore{
		client: client,
		key:    key,
		dedup:  dedup,
		logger: log.WithField("ledger", "redis:"+key),
	}
}

func (s *RedisStore) Load(ctx context.Context) (*Ledger, error) {
	values, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, igerrors.Wrap(igerrors.ErrorTypeStorage, err, "read ledger hash")
	}

	// Sorted so entry order does not depend on map iteration
	fields := make([]string, 0, len(values))
	for field := range values {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	l := New(s.dedup)
	skipped := 0
	for _, field := range fields {
		raw := values[field]
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil || e.Username == "" {
			skipped++
			continue
		}
		l.Add(e)
	}
	l.MarkClean()

	s.logger.DebugWithFields("Ledger loaded", map[string]interface{}{
		"entries": l.Len(),
		"skipped": skipped,
	})
	return l, nil
}

// Save adds l's entries with HSETNX, so entries written by other runs are kept
func (s *RedisStore) Save(ctx context.Context, l *Ledger) error {
	entries := l.Entries()
	if len(entries) == 0 {
		l.MarkClean()
		return nil
	}

	var cmds []*redis.BoolCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			field, ok := pairKey(e)
			if !ok {
				continue
			}
			value, err := json.Marshal(e)
			if err != nil {
				return err
			}
			cmds = append(cmds, pipe.HSetNX(ctx, s.key, field, value))
		}
		return nil
	})
	if err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStorage, err, "write ledger hash")
	}

	added := 0
	for _, cmd := range cmds {
		if cmd.Val() {
			added++
		}
	}

	l.MarkClean()
	s.logger.InfoWithFields("Ledger saved", map[string]interface{}{
		"entries": len(entries),
		"added":   added,
	})
	return nil
}

func (s *RedisStore) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return igerrors.Wrap(igerrors.ErrorTypeStorage, err, "delete ledger hash")
	}
	s.logger.Warn("Ledger reset")
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
