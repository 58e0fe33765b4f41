package contract

import (
	"context"
	"errors"

	"rag-pipeline-console/internal/entity"

	"github.com/google/uuid"
)

var ErrCredentialNotFound = errors.New("credential not found")

// ICredentialRepository stores provider API keys on the console side.
type ICredentialRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*entity.Credential, error)
	Set(ctx context.Context, credential *entity.Credential) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]*entity.Credential, error)
}
