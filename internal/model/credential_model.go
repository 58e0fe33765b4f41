package model

import (
	"time"

	"github.com/google/uuid"
)

// Credential is the stored form of an API key.
type Credential struct {
	Id        uuid.UUID `json:"id"`
	Provider  string    `json:"provider"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
