package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository implements Repository in process memory for zero-config
// runs and tests.
type MemoryRepository struct {
	mu        sync.RWMutex
	byAddress map[string]Party
}

// NewMemoryRepository builds an empty in-memory auth repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byAddress: make(map[string]Party)}
}

func (r *MemoryRepository) CreateParty(_ context.Context, params CreatePartyParams) (Party, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byAddress[params.Address]; exists {
		return Party{}, ErrDuplicateAddress
	}

	now := time.Now()
	p := Party{
		ID:           uuid.NewString(),
		Address:      params.Address,
		DisplayName:  params.DisplayName,
		PasswordHash: params.PasswordHash,
		Role:         params.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.byAddress[params.Address] = p
	return p, nil
}

func (r *MemoryRepository) GetPartyByAddress(_ context.Context, address string) (Party, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byAddress[address]
	if !ok {
		return Party{}, ErrPartyNotFound
	}
	return p, nil
}
