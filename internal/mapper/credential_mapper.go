package mapper

import (
	"rag-pipeline-console/internal/entity"
	"rag-pipeline-console/internal/model"
	"rag-pipeline-console/pkg/events"
)

type CredentialMapper struct{}

func NewCredentialMapper() *CredentialMapper {
	return &CredentialMapper{}
}

func (m *CredentialMapper) ToEntity(c *model.Credential) *entity.Credential {
	if c == nil {
		return nil
	}
	return &entity.Credential{
		Id:        c.Id,
		Provider:  c.Provider,
		Name:      c.Name,
		Key:       c.Key,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (m *CredentialMapper) ToModel(c *entity.Credential) *model.Credential {
	if c == nil {
		return nil
	}
	return &model.Credential{
		Id:        c.Id,
		Provider:  c.Provider,
		Name:      c.Name,
		Key:       c.Key,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// ToWire builds the masked listing sent to and received from the service.
func (m *CredentialMapper) ToWire(c *entity.Credential) events.APIKey {
	return events.APIKey{
		ID:       c.Id.String(),
		Provider: c.Provider,
		Name:     c.Name,
		Masked:   c.Masked(),
		Active:   c.Active,
	}
}
