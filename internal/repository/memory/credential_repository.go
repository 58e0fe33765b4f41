package memory

import (
	"context"
	"sort"
	"time"

	"rag-pipeline-console/internal/entity"
	"rag-pipeline-console/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

type credentialRepository struct {
	cache *cache.Cache
}

// NewCredentialRepository keeps credentials in process memory. A ttl of zero
// keeps them for the life of the process.
func NewCredentialRepository(ttl time.Duration) contract.ICredentialRepository {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 10 * time.Minute
	}
	return &credentialRepository{cache: cache.New(expiration, cleanup)}
}

func (r *credentialRepository) Get(_ context.Context, id uuid.UUID) (*entity.Credential, error) {
	if x, found := r.cache.Get(id.String()); found {
		c := *x.(*entity.Credential)
		return &c, nil
	}
	return nil, contract.ErrCredentialNotFound
}

func (r *credentialRepository) Set(_ context.Context, credential *entity.Credential) error {
	c := *credential
	r.cache.Set(c.Id.String(), &c, cache.DefaultExpiration)
	return nil
}

func (r *credentialRepository) Delete(_ context.Context, id uuid.UUID) error {
	if _, found := r.cache.Get(id.String()); !found {
		return contract.ErrCredentialNotFound
	}
	r.cache.Delete(id.String())
	return nil
}

func (r *credentialRepository) List(_ context.Context) ([]*entity.Credential, error) {
	items := r.cache.Items()
	out := make([]*entity.Credential, 0, len(items))
	for _, item := range items {
		c := *item.Object.(*entity.Credential)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
