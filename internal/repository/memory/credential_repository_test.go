package memory

import (
	"context"
	"testing"
	"time"

	"rag-pipeline-console/internal/entity"
	"rag-pipeline-console/internal/repository/contract"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(0)

	now := time.Now()
	groq := &entity.Credential{Id: uuid.New(), Provider: "groq", Name: "main", Key: "gsk_abcdef1234", CreatedAt: now}
	openai := &entity.Credential{Id: uuid.New(), Provider: "openai", Name: "backup", Key: "sk-9999", CreatedAt: now.Add(time.Second)}

	require.NoError(t, repo.Set(ctx, openai))
	require.NoError(t, repo.Set(ctx, groq))

	got, err := repo.Get(ctx, groq.Id)
	require.NoError(t, err)
	assert.Equal(t, "gsk_abcdef1234", got.Key)

	// returned values are copies
	got.Key = "changed"
	again, _ := repo.Get(ctx, groq.Id)
	assert.Equal(t, "gsk_abcdef1234", again.Key)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "groq", list[0].Provider)
	assert.Equal(t, "openai", list[1].Provider)

	require.NoError(t, repo.Delete(ctx, groq.Id))
	_, err = repo.Get(ctx, groq.Id)
	assert.ErrorIs(t, err, contract.ErrCredentialNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, groq.Id), contract.ErrCredentialNotFound)
}

func TestCredentialRepositoryExpires(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(10 * time.Millisecond)

	c := &entity.Credential{Id: uuid.New(), Provider: "groq", Key: "k"}
	require.NoError(t, repo.Set(ctx, c))

	require.Eventually(t, func() bool {
		_, err := repo.Get(ctx, c.Id)
		return err != nil
	}, time.Second, 5*time.Millisecond)
}

func TestCredentialMasked(t *testing.T) {
	assert.Equal(t, "********1234", (&entity.Credential{Key: "gsk_abcdef1234"}).Masked())
	assert.Equal(t, "***", (&entity.Credential{Key: "abc"}).Masked())
}
