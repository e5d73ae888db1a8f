package repositories

import (
	"context"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
)

// AgentRepository defines credential and lookup access for agents
type AgentRepository interface {
	Create(ctx context.Context, agent *entities.Agent) error
	GetByID(ctx context.Context, id string) (*entities.Agent, error)
	GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Agent, error)
	// ValidateCredentials checks a serial number + secret pair and returns
	// the matching agent.
	ValidateCredentials(serialNumber, secret string) (*entities.Agent, error)
}
