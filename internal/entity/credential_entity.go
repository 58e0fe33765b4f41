package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Credential is an API key for an LLM provider.
type Credential struct {
	Id        uuid.UUID
	Provider  string // "groq", "openai", "ollama"
	Name      string
	Key       string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Masked hides everything but the last four characters of the key.
func (c *Credential) Masked() string {
	if len(c.Key) <= 4 {
		return strings.Repeat("*", len(c.Key))
	}
	return strings.Repeat("*", 8) + c.Key[len(c.Key)-4:]
}
