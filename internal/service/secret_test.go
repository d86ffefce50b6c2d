package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/burnbox/server/internal/logger"
	"github.com/burnbox/server/internal/model"
)

// MockSecretStore mocks the SecretStore interface
type MockSecretStore struct {
	mock.Mock
}

func (m *MockSecretStore) Insert(ctx context.Context, params model.InsertParams) (model.Secret, error) {
	args := m.Called(ctx, params)
	return args.Get(0).(model.Secret), args.Error(1)
}

func (m *MockSecretStore) Redeem(ctx context.Context, uniqueID string) (model.Secret, error) {
	args := m.Called(ctx, uniqueID)
	return args.Get(0).(model.Secret), args.Error(1)
}

func (m *MockSecretStore) Peek(ctx context.Context, uniqueID string) (model.Secret, error) {
	args := m.Called(ctx, uniqueID)
	return args.Get(0).(model.Secret), args.Error(1)
}

func (m *MockSecretStore) GetForReminderScan(ctx context.Context, olderThan time.Duration, maxReminders int) ([]model.ReminderCandidate, error) {
	args := m.Called(ctx, olderThan, maxReminders)
	return args.Get(0).([]model.ReminderCandidate), args.Error(1)
}

func (m *MockSecretStore) ErasePayload(ctx context.Context, uniqueID string) error {
	args := m.Called(ctx, uniqueID)
	return args.Error(0)
}

func (m *MockSecretStore) DeleteExhaustedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSecretStore) DeleteUnclaimedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSecretStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSecretStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockStorage mocks the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *MockStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func TestSecret_Insert_AppliesDefaultBudget(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}
	log := logger.New(0)

	store.On("Insert", mock.Anything, mock.MatchedBy(func(p model.InsertParams) bool {
		return p.MaxViewCount == 5
	})).Return(model.Secret{MessageID: 1, UniqueID: "abc", MaxViewCount: 5}, nil)

	s := NewSecret(store, nil, log, 5, 1024)

	secret, err := s.Insert(ctx, model.InsertParams{UniqueID: "abc", Ciphertext: []byte("ct")})
	require.NoError(t, err)
	assert.Equal(t, int64(1), secret.MessageID)
	store.AssertExpectations(t)
}

func TestSecret_Insert_RejectsMissingFields(t *testing.T) {
	ctx := context.Background()
	s := NewSecret(&MockSecretStore{}, nil, logger.New(0), 5, 1024)

	_, err := s.Insert(ctx, model.InsertParams{Ciphertext: []byte("ct")})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	_, err = s.Insert(ctx, model.InsertParams{UniqueID: "abc"})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestSecret_Insert_RejectsExcessiveBudget(t *testing.T) {
	ctx := context.Background()
	s := NewSecret(&MockSecretStore{}, nil, logger.New(0), 5, 1024)

	_, err := s.Insert(ctx, model.InsertParams{UniqueID: "abc", Ciphertext: []byte("ct"), MaxViewCount: 101})
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestSecret_Insert_Duplicate(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}

	store.On("Insert", mock.Anything, mock.Anything).Return(model.Secret{}, model.ErrAlreadyExists)

	s := NewSecret(store, nil, logger.New(0), 5, 1024)

	_, err := s.Insert(ctx, model.InsertParams{UniqueID: "abc", Ciphertext: []byte("ct"), MaxViewCount: 1})
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}

func TestSecret_Insert_OffloadsLargePayload(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}
	blobs := &MockStorage{}
	payload := bytes.Repeat([]byte("x"), 2048)

	blobs.On("Upload", mock.Anything, "secrets/big", mock.Anything).Return(nil)
	store.On("Insert", mock.Anything, mock.MatchedBy(func(p model.InsertParams) bool {
		return p.BlobKey == "secrets/big" && p.Ciphertext == nil
	})).Return(model.Secret{MessageID: 7, UniqueID: "big", BlobKey: "secrets/big", MaxViewCount: 1}, nil)

	s := NewSecret(store, blobs, logger.New(0), 5, 1024)

	_, err := s.Insert(ctx, model.InsertParams{UniqueID: "big", Ciphertext: payload, MaxViewCount: 1})
	require.NoError(t, err)
	blobs.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestSecret_Insert_DuplicateCleansUpBlob(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}
	blobs := &MockStorage{}
	payload := bytes.Repeat([]byte("x"), 2048)

	blobs.On("Upload", mock.Anything, "secrets/dup", mock.Anything).Return(nil)
	blobs.On("Delete", mock.Anything, "secrets/dup").Return(nil)
	store.On("Insert", mock.Anything, mock.Anything).Return(model.Secret{}, model.ErrAlreadyExists)

	s := NewSecret(store, blobs, logger.New(0), 5, 1024)

	_, err := s.Insert(ctx, model.InsertParams{UniqueID: "dup", Ciphertext: payload, MaxViewCount: 1})
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
	blobs.AssertExpectations(t)
}

func TestSecret_Redeem_ReturnsContent(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}

	store.On("Redeem", mock.Anything, "abc").Return(model.Secret{
		MessageID:    1,
		UniqueID:     "abc",
		Ciphertext:   []byte("ct"),
		ViewCount:    1,
		MaxViewCount: 5,
	}, nil)

	s := NewSecret(store, nil, logger.New(0), 5, 1024)

	secret, err := s.Redeem(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("ct"), secret.Ciphertext)
	assert.Equal(t, 1, secret.ViewCount)
}

func TestSecret_Redeem_FetchesOffloadedPayload(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}
	blobs := &MockStorage{}

	store.On("Redeem", mock.Anything, "big").Return(model.Secret{
		MessageID:    2,
		UniqueID:     "big",
		BlobKey:      "secrets/big",
		ViewCount:    1,
		MaxViewCount: 5,
	}, nil)
	blobs.On("Download", mock.Anything, "secrets/big").
		Return(io.NopCloser(bytes.NewReader([]byte("offloaded"))), nil)

	s := NewSecret(store, blobs, logger.New(0), 5, 1024)

	secret, err := s.Redeem(ctx, "big")
	require.NoError(t, err)
	assert.Equal(t, []byte("offloaded"), secret.Ciphertext)
}

func TestSecret_Redeem_ExhaustingViewErasesPayload(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}
	blobs := &MockStorage{}

	store.On("Redeem", mock.Anything, "last").Return(model.Secret{
		MessageID:    3,
		UniqueID:     "last",
		BlobKey:      "secrets/last",
		ViewCount:    2,
		MaxViewCount: 2,
	}, nil)
	blobs.On("Download", mock.Anything, "secrets/last").
		Return(io.NopCloser(bytes.NewReader([]byte("ct"))), nil)
	store.On("ErasePayload", mock.Anything, "last").Return(nil)
	blobs.On("Delete", mock.Anything, "secrets/last").Return(nil)

	s := NewSecret(store, blobs, logger.New(0), 5, 1024)

	secret, err := s.Redeem(ctx, "last")
	require.NoError(t, err)
	assert.Equal(t, []byte("ct"), secret.Ciphertext)
	store.AssertExpectations(t)
	blobs.AssertExpectations(t)
}

func TestSecret_Redeem_Errors(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}

	store.On("Redeem", mock.Anything, "gone").Return(model.Secret{}, model.ErrNotFound)
	store.On("Redeem", mock.Anything, "burned").Return(model.Secret{}, model.ErrExhausted)

	s := NewSecret(store, nil, logger.New(0), 5, 1024)

	_, err := s.Redeem(ctx, "gone")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Redeem(ctx, "burned")
	assert.ErrorIs(t, err, model.ErrExhausted)
}

func TestSecret_Peek_StripsContent(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}

	store.On("Peek", mock.Anything, "abc").Return(model.Secret{
		MessageID:    4,
		UniqueID:     "abc",
		Ciphertext:   []byte("ct"),
		Passphrase:   "hunter2",
		ViewCount:    1,
		MaxViewCount: 5,
	}, nil)

	s := NewSecret(store, nil, logger.New(0), 5, 1024)

	secret, err := s.Peek(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, secret.Ciphertext)
	assert.Empty(t, secret.Passphrase)
	assert.Equal(t, 1, secret.ViewCount)
}

func TestSecret_Redeem_BlobDownloadFailure(t *testing.T) {
	ctx := context.Background()
	store := &MockSecretStore{}
	blobs := &MockStorage{}

	store.On("Redeem", mock.Anything, "big").Return(model.Secret{
		UniqueID:     "big",
		BlobKey:      "secrets/big",
		ViewCount:    1,
		MaxViewCount: 5,
	}, nil)
	blobs.On("Download", mock.Anything, "secrets/big").
		Return(nil, errors.New("connection refused"))

	s := NewSecret(store, blobs, logger.New(0), 5, 1024)

	_, err := s.Redeem(ctx, "big")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch payload")
}
