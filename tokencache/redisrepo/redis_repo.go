package redisrepo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/campusboard/sessionkit/tokencache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultKey = "sessionkit:session"

var _ tokencache.Repo = (*RedisRepo)(nil)

// RedisRepo persists the session artifact entry in Redis so a restarted
// gateway can attempt a silent resume.
type RedisRepo struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

type Option func(*RedisRepo)

// WithKey overrides the Redis key, for running several gateways against
// one Redis instance.
func WithKey(key string) Option {
	return func(r *RedisRepo) {
		r.key = key
	}
}

// WithTTL bounds how long a cached entry survives without a Save.
func WithTTL(ttl time.Duration) Option {
	return func(r *RedisRepo) {
		r.ttl = ttl
	}
}

func New(client *redis.Client, options ...Option) *RedisRepo {
	r := &RedisRepo{
		client: client,
		key:    defaultKey,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *RedisRepo) Save(ctx context.Context, entry *tokencache.Entry) error {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return errors.Wrap(err, "[RedisRepo.Save] marshal")
	}
	if err := r.client.Set(ctx, r.key, encoded, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Save] redis set")
	}
	return nil
}

func (r *RedisRepo) Load(ctx context.Context) (*tokencache.Entry, error) {
	raw, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, tokencache.NotFoundErr
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Load] redis get")
	}

	var entry tokencache.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, errors.Wrap(err, "[RedisRepo.Load] unmarshal")
	}
	return &entry, nil
}

func (r *RedisRepo) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Wrap(err, "[RedisRepo.Clear] redis del")
	}
	return nil
}
