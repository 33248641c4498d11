package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/petrijr/flowstate/pkg/api"
	"github.com/petrijr/flowstate/pkg/state"
)

// RedisRunStateStore is a RunStateStore backed by Redis. Key structure:
//
//	<prefix>inst:<workflowId>#<parameter>  => JSON-encoded run state
//	<prefix>idx:all                        => SET of all instance keys
//	<prefix>idx:state:<STATE>              => SET of instance keys per state
//
// The state index is maintained on every Save so List can filter with
// set operations instead of scanning.
type RedisRunStateStore struct {
	client *redis.Client
	prefix string
}

var _ RunStateStore = (*RedisRunStateStore)(nil)

// NewRedisRunStateStore creates a store using the given key prefix, e.g.
// "flowstate:".
func NewRedisRunStateStore(client *redis.Client, prefix string) *RedisRunStateStore {
	return &RedisRunStateStore{client: client, prefix: prefix}
}

func (s *RedisRunStateStore) instKey(key string) string { return s.prefix + "inst:" + key }
func (s *RedisRunStateStore) allKey() string            { return s.prefix + "idx:all" }
func (s *RedisRunStateStore) stateKey(st string) string { return s.prefix + "idx:state:" + st }

func (s *RedisRunStateStore) Save(ctx context.Context, r state.RunState) error {
	payload, err := EncodeRunState(r)
	if err != nil {
		return err
	}
	key := r.Instance.Key()

	// Drop the previous state-index membership, if any.
	prev, err := s.Get(ctx, r.Instance)
	hadPrev := err == nil
	if err != nil && !errors.Is(err, ErrInstanceNotFound) {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.instKey(key), payload, 0)
	pipe.SAdd(ctx, s.allKey(), key)
	if hadPrev && prev.State != r.State {
		pipe.SRem(ctx, s.stateKey(string(prev.State)), key)
	}
	pipe.SAdd(ctx, s.stateKey(string(r.State)), key)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisRunStateStore) Get(ctx context.Context, wi api.WorkflowInstance) (state.RunState, error) {
	payload, err := s.client.Get(ctx, s.instKey(wi.Key())).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.RunState{}, ErrInstanceNotFound
	}
	if err != nil {
		return state.RunState{}, err
	}
	return DecodeRunState(payload)
}

func (s *RedisRunStateStore) List(ctx context.Context, f Filter) ([]state.RunState, error) {
	indexKey := s.allKey()
	if f.State != "" {
		indexKey = s.stateKey(string(f.State))
	}
	keys, err := s.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, err
	}

	var result []state.RunState
	for _, key := range keys {
		payload, err := s.client.Get(ctx, s.instKey(key)).Bytes()
		if errors.Is(err, redis.Nil) {
			// Index is best-effort; skip entries whose value is gone.
			continue
		}
		if err != nil {
			return nil, err
		}
		r, err := DecodeRunState(payload)
		if err != nil {
			return nil, err
		}
		if f.WorkflowID != "" && r.Instance.WorkflowID != f.WorkflowID {
			continue
		}
		if f.State != "" && r.State != f.State {
			// Stale index entry; the stored value is authoritative.
			continue
		}
		result = append(result, r)
	}
	return result, nil
}
