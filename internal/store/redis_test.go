package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements redisClient over in-memory hashes.
type fakeRedis struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	err    error
	loaded bool
	evals  int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{hashes: make(map[string]map[string]string)}
}

func (f *fakeRedis) hash(key string) map[string]string {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	return h
}

func toString(v interface{}) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// noScriptError is what Redis answers to EVALSHA for an unknown script.
type noScriptError struct{}

func (noScriptError) Error() string { return "NOSCRIPT No matching script. Please use EVAL." }
func (noScriptError) RedisError()   {}

// runInsert mirrors insertUserScript against the in-memory hashes.
func (f *fakeRedis) runInsert(keys []string, args []interface{}) *redis.Cmd {
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}
	if len(keys) != 2 || len(args) != 3 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script call: %d keys, %d args", len(keys), len(args)))
	}
	byUsername, byID := f.hash(keys[0]), f.hash(keys[1])
	username, id := toString(args[0]), toString(args[1])
	if _, ok := byUsername[username]; ok {
		return redis.NewCmdResult(int64(0), nil)
	}
	byUsername[username] = toString(args[2])
	byID[id] = username
	return redis.NewCmdResult(int64(1), nil)
}

func (f *fakeRedis) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evals++
	f.loaded = true
	return f.runInsert(keys, args)
}

func (f *fakeRedis) EvalSha(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded {
		return redis.NewCmdResult(nil, noScriptError{})
	}
	return f.runInsert(keys, args)
}

func (f *fakeRedis) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("EvalRO not supported"))
}

func (f *fakeRedis) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("EvalShaRO not supported"))
}

func (f *fakeRedis) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	exists := make([]bool, len(hashes))
	for i := range exists {
		exists[i] = f.loaded
	}
	return redis.NewBoolSliceResult(exists, nil)
}

func (f *fakeRedis) ScriptLoad(_ context.Context, script string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = true
	return redis.NewStringResult(insertUserScript.Hash(), nil)
}

func (f *fakeRedis) HGet(_ context.Context, key, field string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringResult("", f.err)
	}
	v, ok := f.hashes[key][field]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) HVals(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	vals := make([]string, 0, len(f.hashes[key]))
	for _, v := range f.hashes[key] {
		vals = append(vals, v)
	}
	return redis.NewStringSliceResult(vals, nil)
}

func (f *fakeRedis) HLen(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	return redis.NewIntResult(int64(len(f.hashes[key])), nil)
}

func (f *fakeRedis) Ping(context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStatusResult("", f.err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisStore_IndexesByID(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewRedisStore(fake)
	alice := newUser("alice", time.Now())

	require.NoError(t, s.InsertIfAbsent(ctx, alice))

	assert.Equal(t, "alice", fake.hashes[redisUsersByID][alice.ID])
	assert.Contains(t, fake.hashes[redisUsersByUsername]["alice"], `"passwordHash"`)
}

func TestRedisStore_DuplicateDoesNotIndex(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewRedisStore(fake)
	first := newUser("alice", time.Now())
	second := newUser("alice", time.Now())

	require.NoError(t, s.InsertIfAbsent(ctx, first))
	require.ErrorIs(t, s.InsertIfAbsent(ctx, second), ErrDuplicate)

	_, ok := fake.hashes[redisUsersByID][second.ID]
	assert.False(t, ok)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.err = errors.New("connection refused")
	s := NewRedisStore(fake)

	err := s.InsertIfAbsent(ctx, newUser("alice", time.Now()))
	assert.ErrorContains(t, err, "connection refused")

	_, err = s.FindByUsername(ctx, "alice")
	assert.ErrorContains(t, err, "connection refused")
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = s.Count(ctx)
	assert.Error(t, err)

	assert.Error(t, s.Ping(ctx))
}

func TestRedisStore_CorruptRecord(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.hash(redisUsersByUsername)["alice"] = "{not json"
	s := NewRedisStore(fake)

	_, err := s.FindByUsername(ctx, "alice")
	assert.ErrorContains(t, err, "decode user")
}

func TestRedisStore_InsertLoadsScriptOnce(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewRedisStore(fake)

	require.NoError(t, s.InsertIfAbsent(ctx, newUser("alice", time.Now())))
	require.NoError(t, s.InsertIfAbsent(ctx, newUser("bob", time.Now())))

	// The first call falls back to EVAL, later ones hit EVALSHA.
	assert.Equal(t, 1, fake.evals)
	assert.Len(t, fake.hashes[redisUsersByID], 2)
}

func TestRedisStore_FailedInsertWritesNothing(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewRedisStore(fake)
	alice := newUser("alice", time.Now())

	fake.err = errors.New("connection reset")
	require.ErrorContains(t, s.InsertIfAbsent(ctx, alice), "connection reset")
	assert.Empty(t, fake.hashes[redisUsersByUsername])
	assert.Empty(t, fake.hashes[redisUsersByID])

	// The username is not held by the failed attempt.
	fake.err = nil
	require.NoError(t, s.InsertIfAbsent(ctx, alice))
	found, err := s.FindByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Username)
}
