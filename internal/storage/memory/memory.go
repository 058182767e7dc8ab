// Package memory keeps accounts and the session denylist in process memory.
// It backs the "memory" storage driver and the service tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"feedback_service/internal/models"
	"feedback_service/internal/storage"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu         sync.RWMutex
	accounts   map[string]*models.Account
	byUsername map[string]string
	byEmail    map[string]string
}

func New() *MemoryRepo {
	return &MemoryRepo{
		accounts:   make(map[string]*models.Account),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

func (r *MemoryRepo) SaveUser(_ context.Context, user models.Account) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[user.Username]; ok {
		return "", storage.ErrUserExists
	}
	if _, ok := r.byEmail[user.Email]; ok {
		return "", storage.ErrUserExists
	}

	u := cloneAccount(user)
	u.ID = uuid.NewString()
	u.Messages = nil

	r.accounts[u.ID] = &u
	r.byUsername[u.Username] = u.ID
	r.byEmail[u.Email] = u.ID

	return u.ID, nil
}

func (r *MemoryRepo) User(_ context.Context, email string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byEmail, email)
}

func (r *MemoryRepo) UserByUsername(_ context.Context, username string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.lookup(r.byUsername, username)
}

func (r *MemoryRepo) UserByIdentifier(_ context.Context, identifier string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if u, err := r.lookup(r.byUsername, identifier); err == nil {
		return u, nil
	}

	return r.lookup(r.byEmail, identifier)
}

func (r *MemoryRepo) UserByID(_ context.Context, id string) (models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.accounts[id]
	if !ok {
		return models.Account{}, storage.ErrUserNotFound
	}

	return cloneAccount(*u), nil
}

func (r *MemoryRepo) UpdatePendingUser(_ context.Context, id string, passHash []byte, code string, expiresAt time.Time) error {
	return r.update(id, func(u *models.Account) {
		u.PassHash = slices.Clone(passHash)
		u.VerificationCode = code
		u.VerificationCodeExpiry = expiresAt
	})
}

func (r *MemoryRepo) SetVerificationCode(_ context.Context, id string, code string, expiresAt time.Time) error {
	return r.update(id, func(u *models.Account) {
		u.VerificationCode = code
		u.VerificationCodeExpiry = expiresAt
	})
}

func (r *MemoryRepo) SetEmailVerified(_ context.Context, id string, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.accounts[id]
	if !ok || u.IsVerified || u.VerificationCode != code {
		return storage.ErrUserNotFound
	}

	u.IsVerified = true
	u.VerificationCode = ""

	return nil
}

func (r *MemoryRepo) SetAcceptingMessages(_ context.Context, id string, accept bool) (models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.accounts[id]
	if !ok {
		return models.Account{}, storage.ErrUserNotFound
	}

	u.IsAcceptingMessages = accept

	return cloneAccount(*u), nil
}

func (r *MemoryRepo) AppendMessage(_ context.Context, id string, msg models.Message) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.accounts[id]
	if !ok {
		return models.Message{}, storage.ErrUserNotFound
	}

	msg.ID = uuid.NewString()
	u.Messages = append(u.Messages, msg)

	return msg, nil
}

// Messages returns the account's messages newest first.
func (r *MemoryRepo) Messages(_ context.Context, id string) ([]models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.accounts[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	out := slices.Clone(u.Messages)
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b models.Message) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	return out, nil
}

func (r *MemoryRepo) DeleteMessage(_ context.Context, id string, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.accounts[id]
	if !ok {
		return storage.ErrMessageNotFound
	}

	idx := slices.IndexFunc(u.Messages, func(m models.Message) bool { return m.ID == messageID })
	if idx < 0 {
		return storage.ErrMessageNotFound
	}

	u.Messages = slices.Delete(u.Messages, idx, idx+1)

	return nil
}

func (r *MemoryRepo) Close() {}

func (r *MemoryRepo) lookup(index map[string]string, key string) (models.Account, error) {
	id, ok := index[key]
	if !ok {
		return models.Account{}, storage.ErrUserNotFound
	}

	return cloneAccount(*r.accounts[id]), nil
}

func (r *MemoryRepo) update(id string, fn func(u *models.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.accounts[id]
	if !ok {
		return storage.ErrUserNotFound
	}

	fn(u)

	return nil
}

func cloneAccount(u models.Account) models.Account {
	u.PassHash = slices.Clone(u.PassHash)
	u.Messages = slices.Clone(u.Messages)

	return u
}
