package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"rag-pipeline-console/internal/entity"
	"rag-pipeline-console/internal/mapper"
	"rag-pipeline-console/internal/model"
	"rag-pipeline-console/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const credentialHashKey = "rag-console:credentials"

type credentialRepository struct {
	rdb    *redis.Client
	ttl    time.Duration
	mapper *mapper.CredentialMapper
}

// NewCredentialRepository stores credentials in a Redis hash keyed by id.
func NewCredentialRepository(rdb *redis.Client, ttl time.Duration) contract.ICredentialRepository {
	return &credentialRepository{
		rdb:    rdb,
		ttl:    ttl,
		mapper: mapper.NewCredentialMapper(),
	}
}

func (r *credentialRepository) Get(ctx context.Context, id uuid.UUID) (*entity.Credential, error) {
	raw, err := r.rdb.HGet(ctx, credentialHashKey, id.String()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, contract.ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential: %w", err)
	}
	return r.decode(raw)
}

func (r *credentialRepository) Set(ctx context.Context, credential *entity.Credential) error {
	data, err := json.Marshal(r.mapper.ToModel(credential))
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, credentialHashKey, credential.Id.String(), data)
	if r.ttl > 0 {
		pipe.Expire(ctx, credentialHashKey, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := r.rdb.HDel(ctx, credentialHashKey, id.String()).Result()
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if n == 0 {
		return contract.ErrCredentialNotFound
	}
	return nil
}

func (r *credentialRepository) List(ctx context.Context) ([]*entity.Credential, error) {
	all, err := r.rdb.HGetAll(ctx, credentialHashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}

	out := make([]*entity.Credential, 0, len(all))
	for _, raw := range all {
		c, err := r.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *credentialRepository) decode(raw string) (*entity.Credential, error) {
	var m model.Credential
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to decode credential: %w", err)
	}
	return r.mapper.ToEntity(&m), nil
}
