package adapters

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kaiwa-labs/kaiwa-server/domain/entities"
	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// MemoryAgentRepository is an in-memory implementation of AgentRepository.
// Agent accounts are few and provisioning is out of band, so a simple
// mutex-guarded map is enough of a backend.
type MemoryAgentRepository struct {
	mu      sync.RWMutex
	agents  map[string]*entities.Agent // id -> agent
	serials map[string]*entities.Agent // serial_number -> agent
	secrets map[string]string          // serial_number -> secret_key
}

var _ repositories.AgentRepository = (*MemoryAgentRepository)(nil)

// NewMemoryAgentRepository creates an empty in-memory agent repository.
func NewMemoryAgentRepository() *MemoryAgentRepository {
	return &MemoryAgentRepository{
		agents:  make(map[string]*entities.Agent),
		serials: make(map[string]*entities.Agent),
		secrets: make(map[string]string),
	}
}

// NewMemoryAgentRepositoryWithSeed creates a repository pre-registered with
// development agents.
func NewMemoryAgentRepositoryWithSeed() *MemoryAgentRepository {
	repo := NewMemoryAgentRepository()
	repo.seed("KAIWA001", "secret123", "開発 太郎")
	repo.seed("KAIWA002", "secret456", "開発 花子")
	return repo
}

func (m *MemoryAgentRepository) seed(serialNumber, secret, name string) {
	agent := &entities.Agent{
		ID:           "agent-" + serialNumber,
		SerialNumber: serialNumber,
		Name:         name,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	m.agents[agent.ID] = agent
	m.serials[serialNumber] = agent
	m.secrets[serialNumber] = secret
}

// Create registers a new agent. The secret is derived by the caller and
// registered separately via RegisterSecret.
func (m *MemoryAgentRepository) Create(ctx context.Context, agent *entities.Agent) error {
	if err := agent.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.serials[agent.SerialNumber]; exists {
		return errors.New("agent with this serial number already exists")
	}
	if agent.ID == "" {
		agent.ID = uuid.NewString()
	}
	now := time.Now()
	agent.CreatedAt = now
	agent.UpdatedAt = now

	m.agents[agent.ID] = agent
	m.serials[agent.SerialNumber] = agent
	return nil
}

// RegisterSecret sets the credential for a serial number.
func (m *MemoryAgentRepository) RegisterSecret(serialNumber, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[serialNumber] = secret
}

// GetByID looks an agent up by its identifier.
func (m *MemoryAgentRepository) GetByID(ctx context.Context, id string) (*entities.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, exists := m.agents[id]
	if !exists {
		return nil, errors.New("agent not found")
	}
	return agent, nil
}

// GetBySerialNumber looks an agent up by serial number.
func (m *MemoryAgentRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agent, exists := m.serials[serialNumber]
	if !exists {
		return nil, errors.New("agent not found")
	}
	return agent, nil
}

// ValidateCredentials checks a serial number + secret pair.
func (m *MemoryAgentRepository) ValidateCredentials(serialNumber, secret string) (*entities.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	storedSecret, exists := m.secrets[serialNumber]
	if !exists {
		return nil, errors.New("agent not found")
	}
	if storedSecret != secret {
		return nil, errors.New("invalid credentials")
	}
	agent, exists := m.serials[serialNumber]
	if !exists {
		return nil, errors.New("agent not found")
	}
	return agent, nil
}
