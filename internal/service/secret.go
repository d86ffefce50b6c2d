package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
)

const (
	// maxViewCountCeiling bounds caller-supplied budgets.
	maxViewCountCeiling = 100

	blobKeyPrefix = "secrets/"
)

// Secret is the lifecycle facade for insert, redemption and peek. It owns
// the view budget policy and the offload of oversized ciphertexts to blob
// storage; all per-record atomicity lives in the store underneath.
type Secret struct {
	store           model.SecretStore
	blobs           model.Storage
	logger          *logger.Logger
	defaultMaxViews int
	inlineMaxBytes  int
}

// NewSecret creates the facade. blobs may be nil, in which case every
// ciphertext is stored inline regardless of size.
func NewSecret(
	store model.SecretStore,
	blobs model.Storage,
	logger *logger.Logger,
	defaultMaxViews int,
	inlineMaxBytes int,
) *Secret {
	return &Secret{
		store:           store,
		blobs:           blobs,
		logger:          logger,
		defaultMaxViews: defaultMaxViews,
		inlineMaxBytes:  inlineMaxBytes,
	}
}

func (s *Secret) Insert(ctx context.Context, params model.InsertParams) (model.Secret, error) {
	if params.UniqueID == "" {
		return model.Secret{}, fmt.Errorf("%w: unique id is required", model.ErrInvalidInput)
	}
	if len(params.Ciphertext) == 0 {
		return model.Secret{}, fmt.Errorf("%w: content is required", model.ErrInvalidInput)
	}
	if params.MaxViewCount > maxViewCountCeiling {
		return model.Secret{}, fmt.Errorf("%w: max view count must not exceed %d", model.ErrInvalidInput, maxViewCountCeiling)
	}
	if params.MaxViewCount <= 0 {
		params.MaxViewCount = s.defaultMaxViews
	}

	if s.blobs != nil && len(params.Ciphertext) > s.inlineMaxBytes {
		key := blobKeyPrefix + params.UniqueID
		if err := s.blobs.Upload(ctx, key, bytes.NewReader(params.Ciphertext)); err != nil {
			return model.Secret{}, fmt.Errorf("failed to upload payload: %w", err)
		}
		params.BlobKey = key
		params.Ciphertext = nil
	}

	secret, err := s.store.Insert(ctx, params)
	if errors.Is(err, model.ErrAlreadyExists) {
		if params.BlobKey != "" {
			if delErr := s.blobs.Delete(ctx, params.BlobKey); delErr != nil {
				s.logger.Error("failed to delete orphaned payload blob", "key", params.BlobKey, "error", delErr)
			}
		}
		return model.Secret{}, model.ErrAlreadyExists
	}
	if err != nil {
		return model.Secret{}, fmt.Errorf("failed to insert secret: %w", err)
	}

	return secret, nil
}

// Redeem consumes one view and returns the content. The returned view count
// includes the redemption being answered. The exhausting redemption erases
// the stored payload; the tombstone row survives so later redeemers still
// see Exhausted rather than NotFound.
func (s *Secret) Redeem(ctx context.Context, uniqueID string) (model.Secret, error) {
	secret, err := s.store.Redeem(ctx, uniqueID)
	if err != nil {
		return model.Secret{}, err
	}

	if secret.BlobKey != "" {
		ciphertext, err := s.downloadPayload(ctx, secret.BlobKey)
		if err != nil {
			return model.Secret{}, fmt.Errorf("failed to fetch payload: %w", err)
		}
		secret.Ciphertext = ciphertext
	}

	if secret.Exhausted() {
		s.eraseExhausted(ctx, secret)
	}

	return secret, nil
}

// Peek returns metadata without consuming a view. The payload and the
// passphrase are stripped: reading content always costs a redemption.
func (s *Secret) Peek(ctx context.Context, uniqueID string) (model.Secret, error) {
	secret, err := s.store.Peek(ctx, uniqueID)
	if err != nil {
		return model.Secret{}, err
	}

	secret.Ciphertext = nil
	secret.Passphrase = ""

	return secret, nil
}

func (s *Secret) downloadPayload(ctx context.Context, key string) ([]byte, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("payload offloaded to %q but blob storage is not configured", key)
	}

	reader, err := s.blobs.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

func (s *Secret) eraseExhausted(ctx context.Context, secret model.Secret) {
	if err := s.store.ErasePayload(ctx, secret.UniqueID); err != nil {
		s.logger.Error("failed to erase exhausted payload", "unique_id", secret.UniqueID, "error", err)
	}
	if secret.BlobKey != "" && s.blobs != nil {
		if err := s.blobs.Delete(ctx, secret.BlobKey); err != nil {
			s.logger.Error("failed to delete exhausted payload blob", "key", secret.BlobKey, "error", err)
		}
	}
}
