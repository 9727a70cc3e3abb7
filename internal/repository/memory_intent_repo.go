// internal/repository/memory_intent_repo.go
package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"custody-service/internal/domain"
	"custody-service/pkg/apperr"
)

// MemoryIntentRepository keeps intents in process. It gives the same
// compare-and-set guarantees as the Postgres store within one process.
type MemoryIntentRepository struct {
	mu      sync.Mutex
	intents map[string]*domain.Intent
	now     func() time.Time
}

func NewMemoryIntentRepository() *MemoryIntentRepository {
	return &MemoryIntentRepository{
		intents: make(map[string]*domain.Intent),
		now:     time.Now,
	}
}

func (r *MemoryIntentRepository) Create(ctx context.Context, intent *domain.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.intents[intent.ID]; ok {
		return apperr.Newf(apperr.CodeAlreadyExists, "repository.IntentCreate", "intent %s already exists", intent.ID)
	}
	intent.UpdatedAt = intent.QuotedAt
	r.intents[intent.ID] = cloneIntent(intent)
	return nil
}

func (r *MemoryIntentRepository) Get(ctx context.Context, id string) (*domain.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok {
		return nil, apperr.Newf(apperr.CodeNotFound, "repository.IntentGet", "intent %s not found", id)
	}
	return cloneIntent(intent), nil
}

func (r *MemoryIntentRepository) Transition(ctx context.Context, id string, from, to domain.IntentStatus) (bool, error) {
	if !domain.CanTransition(from, to) {
		return false, fmt.Errorf("illegal intent transition %s -> %s", from, to)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok || intent.Status != from {
		return false, nil
	}
	intent.Status = to
	intent.UpdatedAt = r.now()
	return true, nil
}

func (r *MemoryIntentRepository) MarkExecuted(ctx context.Context, id string, result *domain.SubmitResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok || intent.Status != domain.IntentStatusExecuting {
		return fmt.Errorf("intent %s not found or not executing", id)
	}
	copied := *result
	intent.Status = domain.IntentStatusExecuted
	intent.Result = &copied
	intent.UpdatedAt = r.now()
	return nil
}

func (r *MemoryIntentRepository) MarkFailed(ctx context.Context, id, code, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	intent, ok := r.intents[id]
	if !ok || intent.Status != domain.IntentStatusExecuting {
		return fmt.Errorf("intent %s not found or not executing", id)
	}
	intent.Status = domain.IntentStatusFailed
	intent.FailureCode = code
	intent.FailureMessage = message
	intent.UpdatedAt = r.now()
	return nil
}

func (r *MemoryIntentRepository) ExpireStale(ctx context.Context, before time.Time) ([]*domain.Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*domain.Intent
	for _, intent := range r.intents {
		if intent.Status == domain.IntentStatusQuoted && !intent.ExpiresAt.After(before) {
			intent.Status = domain.IntentStatusExpired
			intent.UpdatedAt = r.now()
			expired = append(expired, cloneIntent(intent))
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].ID < expired[j].ID })
	return expired, nil
}

func cloneIntent(intent *domain.Intent) *domain.Intent {
	copied := *intent
	if intent.Result != nil {
		result := *intent.Result
		copied.Result = &result
	}
	return &copied
}
