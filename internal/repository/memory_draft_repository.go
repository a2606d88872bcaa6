package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

type memoryDraftEntry struct {
	payload   []byte
	expiresAt time.Time
}

type memoryDraftLock struct {
	token string
	until time.Time
}

// MemoryDraftRepository is the process-local draft store used when Redis is
// disabled. Drafts are stored encoded so callers never share mutable state.
type MemoryDraftRepository struct {
	mu     sync.Mutex
	drafts map[string]memoryDraftEntry
	locks  map[string]memoryDraftLock
	now    func() time.Time
}

// NewMemoryDraftRepository constructs an empty in-memory draft store.
func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{
		drafts: make(map[string]memoryDraftEntry),
		locks:  make(map[string]memoryDraftLock),
		now:    time.Now,
	}
}

func (r *MemoryDraftRepository) Save(ctx context.Context, draft *models.TeacherDraft, ttl time.Duration) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[draft.ID] = memoryDraftEntry{payload: payload, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *MemoryDraftRepository) Get(ctx context.Context, id string) (*models.TeacherDraft, error) {
	r.mu.Lock()
	entry, ok := r.drafts[id]
	if ok && !r.now().Before(entry.expiresAt) {
		delete(r.drafts, id)
		ok = false
	}
	r.mu.Unlock()
	if !ok {
		return nil, ErrDraftNotFound
	}
	var draft models.TeacherDraft
	if err := json.Unmarshal(entry.payload, &draft); err != nil {
		return nil, err
	}
	return &draft, nil
}

func (r *MemoryDraftRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, id)
	delete(r.locks, id)
	return nil
}

func (r *MemoryDraftRepository) AcquireLock(ctx context.Context, id string, ttl time.Duration) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if lock, held := r.locks[id]; held && now.Before(lock.until) {
		return "", false, nil
	}
	token := uuid.NewString()
	r.locks[id] = memoryDraftLock{token: token, until: now.Add(ttl)}
	return token, true, nil
}

func (r *MemoryDraftRepository) RefreshLock(ctx context.Context, id, token string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	lock, held := r.locks[id]
	if !held || lock.token != token || !now.Before(lock.until) {
		return false, nil
	}
	lock.until = now.Add(ttl)
	r.locks[id] = lock
	return true, nil
}

func (r *MemoryDraftRepository) ReleaseLock(ctx context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lock, held := r.locks[id]; held && lock.token == token {
		delete(r.locks, id)
	}
	return nil
}
