package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/songgen/internal/model"
)

const maxTxRetries = 10

// RedisStore keeps each job as a JSON document under job:<id> and an
// owner index in a sorted set scored by creation time. Read-modify-write
// cycles run under WATCH so concurrent updates to one job serialize.
type RedisStore struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

// NewRedisStore creates a store. A ttl of zero keeps jobs forever.
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: redisClient,
		ttl:   ttl,
		now:   time.Now,
	}
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func jobKey(id string) string {
	return fmt.Sprintf("job:%s", id)
}

func ownerKey(ownerID string) string {
	return fmt.Sprintf("jobs:owner:%s", ownerID)
}

func (s *RedisStore) Create(ctx context.Context, job *model.Job) (string, error) {
	if err := prepareNew(job, s.now()); err != nil {
		return "", err
	}

	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, s.ttl)
		pipe.ZAdd(ctx, ownerKey(job.OwnerID), redis.Z{
			Score:  float64(job.CreatedAt.UnixNano()),
			Member: job.ID,
		})
		if s.ttl > 0 {
			pipe.Expire(ctx, ownerKey(job.OwnerID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save job: %w", err)
	}
	return job.ID, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*model.Job, error) {
	return s.getJob(ctx, s.redis, id)
}

func (s *RedisStore) Update(ctx context.Context, id string, upd model.JobUpdate) error {
	if err := validateUpdate(upd); err != nil {
		return err
	}
	return s.modify(ctx, id, func(job *model.Job) error {
		if err := checkTransition(job.Status, upd); err != nil {
			return err
		}
		upd.Apply(job, s.now())
		return nil
	})
}

func (s *RedisStore) IncrementListens(ctx context.Context, id string) (int64, error) {
	var count int64
	err := s.modify(ctx, id, func(job *model.Job) error {
		job.ListenCount++
		count = job.ListenCount
		return nil
	})
	return count, err
}

func (s *RedisStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]*model.Job, error) {
	limit = normalizeListLimit(limit)

	ids, err := s.redis.ZRevRange(ctx, ownerKey(ownerID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*model.Job, 0, len(ids))
	for _, id := range ids {
		job, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// expired document, drop the stale index entry
			s.redis.ZRem(ctx, ownerKey(ownerID), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// modify runs fn against the current job and writes the result back,
// retrying when another writer touched the key in between.
func (s *RedisStore) modify(ctx context.Context, id string, fn func(job *model.Job) error) error {
	key := jobKey(id)

	txf := func(tx *redis.Tx) error {
		job, err := s.getJob(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.redis.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("job %s: too much contention", id)
}

func (s *RedisStore) getJob(ctx context.Context, cmd stringGetter, id string) (*model.Job, error) {
	data, err := cmd.Get(ctx, jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to load job: %w", err)
	}

	var job model.Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}
