package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/sma-roster-api/internal/models"
)

// ErrDraftNotFound is returned when a draft has expired or never existed.
var ErrDraftNotFound = errors.New("draft not found")

const draftKeyPrefix = "draft:"

var (
	refreshLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)
)

func draftKey(id string) string     { return draftKeyPrefix + id }
func draftLockKey(id string) string { return draftKeyPrefix + id + ":lock" }

// RedisDraftRepository keeps teacher drafts as JSON values with a sliding TTL.
type RedisDraftRepository struct {
	client *redis.Client
}

// NewRedisDraftRepository constructs a Redis-backed draft store.
func NewRedisDraftRepository(client *redis.Client) *RedisDraftRepository {
	return &RedisDraftRepository{client: client}
}

// Save writes the draft and refreshes its expiry.
func (r *RedisDraftRepository) Save(ctx context.Context, draft *models.TeacherDraft, ttl time.Duration) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("marshal draft %s: %w", draft.ID, err)
	}
	if err := r.client.Set(ctx, draftKey(draft.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save draft %s: %w", draft.ID, err)
	}
	return nil
}

// Get loads a draft by id.
func (r *RedisDraftRepository) Get(ctx context.Context, id string) (*models.TeacherDraft, error) {
	raw, err := r.client.Get(ctx, draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrDraftNotFound
		}
		return nil, fmt.Errorf("get draft %s: %w", id, err)
	}
	var draft models.TeacherDraft
	if err := json.Unmarshal(raw, &draft); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &draft, nil
}

// Delete removes a draft together with any submit lock.
func (r *RedisDraftRepository) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, draftKey(id), draftLockKey(id)).Err(); err != nil {
		return fmt.Errorf("delete draft %s: %w", id, err)
	}
	return nil
}

// AcquireLock claims the draft lock. The returned token identifies this
// holder for RefreshLock and ReleaseLock.
func (r *RedisDraftRepository) AcquireLock(ctx context.Context, id string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, draftLockKey(id), token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("lock draft %s: %w", id, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// RefreshLock extends the lock if token still holds it.
func (r *RedisDraftRepository) RefreshLock(ctx context.Context, id, token string, ttl time.Duration) (bool, error) {
	n, err := refreshLockScript.Run(ctx, r.client, []string{draftLockKey(id)}, token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("refresh draft lock %s: %w", id, err)
	}
	return n == 1, nil
}

// ReleaseLock frees the lock if token still holds it. A lock that expired and
// was claimed by another holder is left alone.
func (r *RedisDraftRepository) ReleaseLock(ctx context.Context, id, token string) error {
	if err := releaseLockScript.Run(ctx, r.client, []string{draftLockKey(id)}, token).Err(); err != nil {
		return fmt.Errorf("unlock draft %s: %w", id, err)
	}
	return nil
}
