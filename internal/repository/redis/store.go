// Package redis provides redis-backed implementations of the secret store
// and reminder ledger. Redemption uses optimistic WATCH transactions, so the
// view budget holds under concurrent redeemers.
package redis

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/burnbox/server/internal/model"
)

const (
	createdIndexKey = "secrets:created"
	idCounterKey    = "secrets:next_id"

	// redeemRetries bounds the optimistic retry loop on WATCH conflicts.
	redeemRetries = 3
)

var _ model.SecretStore = (*Store)(nil)

type Store struct {
	client *redis.Client

	now func() time.Time
}

func NewStore(options *redis.Options) (*Store, error) {
	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewStoreWithClient(client), nil
}

// NewStoreWithClient wraps an existing client (used in tests).
func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

func (s *Store) Insert(ctx context.Context, params model.InsertParams) (model.Secret, error) {
	id, err := s.client.Incr(ctx, idCounterKey).Result()
	if err != nil {
		return model.Secret{}, err
	}

	secret := model.Secret{
		MessageID:      id,
		UniqueID:       params.UniqueID,
		Ciphertext:     append([]byte(nil), params.Ciphertext...),
		BlobKey:        params.BlobKey,
		Passphrase:     params.Passphrase,
		RecipientEmail: params.RecipientEmail,
		MaxViewCount:   params.MaxViewCount,
		CreatedAt:      s.now(),
	}

	data, err := encode(secret)
	if err != nil {
		return model.Secret{}, err
	}

	ok, err := s.client.SetNX(ctx, secretKey(params.UniqueID), data, 0).Result()
	if err != nil {
		return model.Secret{}, err
	}
	if !ok {
		return model.Secret{}, model.ErrAlreadyExists
	}

	err = s.client.ZAdd(ctx, createdIndexKey, redis.Z{
		Score:  float64(secret.CreatedAt.Unix()),
		Member: params.UniqueID,
	}).Err()
	if err != nil {
		return model.Secret{}, err
	}

	return secret, nil
}

func (s *Store) Redeem(ctx context.Context, uniqueID string) (model.Secret, error) {
	key := secretKey(uniqueID)
	var redeemed model.Secret

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}

		secret, err := decode(data)
		if err != nil {
			return err
		}

		if secret.ViewCount >= secret.MaxViewCount {
			return model.ErrExhausted
		}

		secret.ViewCount++
		redeemed = secret

		newData, err := encode(secret)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < redeemRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return redeemed, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return model.Secret{}, err
	}

	return model.Secret{}, redis.TxFailedErr
}

func (s *Store) Peek(ctx context.Context, uniqueID string) (model.Secret, error) {
	data, err := s.client.Get(ctx, secretKey(uniqueID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Secret{}, model.ErrNotFound
	}
	if err != nil {
		return model.Secret{}, err
	}

	return decode(data)
}

func (s *Store) GetForReminderScan(ctx context.Context, olderThan time.Duration, maxReminders int) ([]model.ReminderCandidate, error) {
	now := s.now()
	cutoff := now.Add(-olderThan)

	ids, err := s.client.ZRangeByScore(ctx, createdIndexKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, err
	}

	var candidates []model.ReminderCandidate
	for _, uniqueID := range ids {
		secret, err := s.Peek(ctx, uniqueID)
		if errors.Is(err, model.ErrNotFound) {
			// Stale index member left behind by a crashed delete.
			s.client.ZRem(ctx, createdIndexKey, uniqueID)
			continue
		}
		if err != nil {
			return nil, err
		}

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

func (s *Store) ErasePayload(ctx context.Context, uniqueID string) error {
	key := secretKey(uniqueID)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return model.ErrNotFound
		}
		if err != nil {
			return err
		}

		secret, err := decode(data)
		if err != nil {
			return err
		}
		if secret.ViewCount < secret.MaxViewCount {
			return model.ErrNotFound
		}

		now := s.now()
		secret.Ciphertext = nil
		secret.BlobKey = ""
		secret.ExhaustedAt = &now

		newData, err := encode(secret)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, newData, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < redeemRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}

	return redis.TxFailedErr
}

func (s *Store) DeleteExhaustedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.deleteWhere(ctx, func(secret model.Secret) bool {
		return secret.ExhaustedAt != nil && secret.ExhaustedAt.Before(cutoff)
	})
}

func (s *Store) DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	return s.deleteWhere(ctx, func(secret model.Secret) bool {
		return secret.ViewCount == 0 && secret.CreatedAt.Before(cutoff)
	})
}

func (s *Store) deleteWhere(ctx context.Context, match func(model.Secret) bool) ([]string, error) {
	ids, err := s.client.ZRange(ctx, createdIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	var keys []string
	for _, uniqueID := range ids {
		secret, err := s.Peek(ctx, uniqueID)
		if errors.Is(err, model.ErrNotFound) {
			s.client.ZRem(ctx, createdIndexKey, uniqueID)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !match(secret) {
			continue
		}

		if secret.BlobKey != "" {
			keys = append(keys, secret.BlobKey)
		}

		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, secretKey(uniqueID))
			pipe.ZRem(ctx, createdIndexKey, uniqueID)
			pipe.Del(ctx, reminderKey(secret.MessageID))
			return nil
		})
		if err != nil {
			return keys, err
		}
	}

	return keys, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func secretKey(uniqueID string) string {
	return "secret:" + uniqueID
}

func reminderKey(messageID int64) string {
	return "reminder:" + strconv.FormatInt(messageID, 10)
}

func encode(secret model.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(secret); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (model.Secret, error) {
	var secret model.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&secret); err != nil {
		return model.Secret{}, err
	}
	return secret, nil
}
