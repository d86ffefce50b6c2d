// Package memory provides in-process implementations of the secret store and
// reminder ledger. Intended for development and tests; nothing survives a
// restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/burnbox/server/internal/model"
)

var _ model.SecretStore = (*Store)(nil)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	byUnique map[string]*model.Secret

	// now is swappable in tests.
	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		byUnique: make(map[string]*model.Secret),
		now:      time.Now,
	}
}

func (s *Store) Insert(_ context.Context, params model.InsertParams) (model.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byUnique[params.UniqueID]; ok {
		return model.Secret{}, model.ErrAlreadyExists
	}

	s.nextID++
	secret := model.Secret{
		MessageID:      s.nextID,
		UniqueID:       params.UniqueID,
		Ciphertext:     append([]byte(nil), params.Ciphertext...),
		BlobKey:        params.BlobKey,
		Passphrase:     params.Passphrase,
		RecipientEmail: params.RecipientEmail,
		MaxViewCount:   params.MaxViewCount,
		CreatedAt:      s.now(),
	}
	s.byUnique[params.UniqueID] = &secret

	return secret, nil
}

func (s *Store) Redeem(_ context.Context, uniqueID string) (model.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.byUnique[uniqueID]
	if !ok {
		return model.Secret{}, model.ErrNotFound
	}
	if secret.ViewCount >= secret.MaxViewCount {
		return model.Secret{}, model.ErrExhausted
	}

	secret.ViewCount++

	return copySecret(secret), nil
}

func (s *Store) Peek(_ context.Context, uniqueID string) (model.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.byUnique[uniqueID]
	if !ok {
		return model.Secret{}, model.ErrNotFound
	}

	return copySecret(secret), nil
}

func (s *Store) GetForReminderScan(_ context.Context, olderThan time.Duration, maxReminders int) ([]model.ReminderCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	cutoff := now.Add(-olderThan)

	var candidates []model.ReminderCandidate
	for _, secret := range s.byUnique {
		if secret.ViewCount != 0 || secret.RecipientEmail == "" {
			continue
		}
		if !secret.CreatedAt.Before(cutoff) {
			continue
		}
		candidates = append(candidates, model.ReminderCandidate{
			MessageID:      secret.MessageID,
			UniqueID:       secret.UniqueID,
			RecipientEmail: secret.RecipientEmail,
			CreatedAt:      secret.CreatedAt,
			DaysOld:        int(now.Sub(secret.CreatedAt).Hours() / 24),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})

	return candidates, nil
}

func (s *Store) ErasePayload(_ context.Context, uniqueID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	secret, ok := s.byUnique[uniqueID]
	if !ok || secret.ViewCount < secret.MaxViewCount {
		return model.ErrNotFound
	}

	now := s.now()
	secret.Ciphertext = nil
	secret.BlobKey = ""
	secret.ExhaustedAt = &now

	return nil
}

func (s *Store) DeleteExhaustedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for id, secret := range s.byUnique {
		if secret.ExhaustedAt == nil || !secret.ExhaustedAt.Before(cutoff) {
			continue
		}
		if secret.BlobKey != "" {
			keys = append(keys, secret.BlobKey)
		}
		delete(s.byUnique, id)
	}

	return keys, nil
}

func (s *Store) DeleteUnclaimedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var keys []string
	for id, secret := range s.byUnique {
		if secret.ViewCount != 0 || !secret.CreatedAt.Before(cutoff) {
			continue
		}
		if secret.BlobKey != "" {
			keys = append(keys, secret.BlobKey)
		}
		delete(s.byUnique, id)
	}

	return keys, nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func copySecret(secret *model.Secret) model.Secret {
	out := *secret
	out.Ciphertext = append([]byte(nil), secret.Ciphertext...)
	if secret.ExhaustedAt != nil {
		t := *secret.ExhaustedAt
		out.ExhaustedAt = &t
	}
	return out
}
