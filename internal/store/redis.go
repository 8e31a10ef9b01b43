package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/DEEKSHA240406/stress-management-sub001/internal/models"
)

const (
	redisUsersByUsername = "users:by_username"
	redisUsersByID       = "users:by_id"
)

// insertUserScript claims the username and writes the id index in one step.
// KEYS: by-username hash, by-id hash. ARGV: username, id, record.
var insertUserScript = redis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// redisClient is the subset of *redis.Client the store needs.
type redisClient interface {
	redis.Scripter
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HVals(ctx context.Context, key string) *redis.StringSliceCmd
	HLen(ctx context.Context, key string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// redisUser is the stored form of a user. models.User hides the hash from
// JSON, so it cannot be serialized directly.
type redisUser struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// RedisStore keeps users in two Redis hashes: username -> record and
// id -> username. Both are written by insertUserScript, which is the
// uniqueness gate.
type RedisStore struct {
	client redisClient
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// NewRedisStore creates a store over client.
func NewRedisStore(client redisClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) FindByUsername(ctx context.Context, username string) (models.User, error) {
	raw, err := s.client.HGet(ctx, redisUsersByUsername, username).Result()
	if errors.Is(err, redis.Nil) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return decodeRedisUser(raw)
}

func (s *RedisStore) FindByID(ctx context.Context, id string) (models.User, error) {
	username, err := s.client.HGet(ctx, redisUsersByID, id).Result()
	if errors.Is(err, redis.Nil) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user id: %w", err)
	}
	return s.FindByUsername(ctx, username)
}

func (s *RedisStore) InsertIfAbsent(ctx context.Context, user models.User) error {
	raw, err := json.Marshal(redisUser{
		ID:           user.ID,
		Username:     user.Username,
		Name:         user.Name,
		Role:         user.Role,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	created, err := insertUserScript.Run(ctx, s.client,
		[]string{redisUsersByUsername, redisUsersByID},
		user.Username, user.ID, string(raw),
	).Int64()
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	if created == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]models.User, error) {
	vals, err := s.client.HVals(ctx, redisUsersByUsername).Result()
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	users := make([]models.User, 0, len(vals))
	for _, raw := range vals {
		user, err := decodeRedisUser(raw)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].Username < users[j].Username
		}
		return users[i].CreatedAt.Before(users[j].CreatedAt)
	})
	return users, nil
}

func (s *RedisStore) Count(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, redisUsersByUsername).Result()
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func decodeRedisUser(raw string) (models.User, error) {
	var ru redisUser
	if err := json.Unmarshal([]byte(raw), &ru); err != nil {
		return models.User{}, fmt.Errorf("decode user: %w", err)
	}
	return models.User{
		ID:           ru.ID,
		Username:     ru.Username,
		Name:         ru.Name,
		Role:         ru.Role,
		PasswordHash: ru.PasswordHash,
		CreatedAt:    ru.CreatedAt,
		UpdatedAt:    ru.UpdatedAt,
	}, nil
}
