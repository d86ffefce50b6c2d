package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	minioLib "github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio implements minioAPI for testing without network.
type fakeMinio struct {
	bucketExists    bool
	bucketExistsErr error
	makeBucketErr   error
	madeBucket      bool

	putKey string
	putErr error

	getRC  io.ReadCloser
	getErr error

	removedKey string
	removeErr  error
}

func (f *fakeMinio) BucketExists(_ context.Context, _ string) (bool, error) {
	return f.bucketExists, f.bucketExistsErr
}
func (f *fakeMinio) MakeBucket(_ context.Context, _ string, _ minioLib.MakeBucketOptions) error {
	f.madeBucket = true
	return f.makeBucketErr
}
func (f *fakeMinio) PutObject(_ context.Context, _ string, objectName string, _ io.Reader, _ int64, _ minioLib.PutObjectOptions) (minioLib.UploadInfo, error) {
	f.putKey = objectName
	return minioLib.UploadInfo{}, f.putErr
}
func (f *fakeMinio) GetObject(_ context.Context, _ string, _ string, _ minioLib.GetObjectOptions) (io.ReadCloser, error) {
	return f.getRC, f.getErr
}
func (f *fakeMinio) RemoveObject(_ context.Context, _ string, objectName string, _ minioLib.RemoveObjectOptions) error {
	f.removedKey = objectName
	return f.removeErr
}

func TestNewClientWithAPI_BucketExists(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: true}

	c, err := NewClientWithAPI(ctx, api, "payloads")
	require.NoError(t, err)
	assert.Equal(t, "payloads", c.bucket)
	assert.False(t, api.madeBucket)
}

func TestNewClientWithAPI_CreatesBucket(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: false}

	_, err := NewClientWithAPI(ctx, api, "payloads")
	require.NoError(t, err)
	assert.True(t, api.madeBucket)
}

func TestNewClientWithAPI_BucketCheckError(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExistsErr: errors.New("network down")}

	_, err := NewClientWithAPI(ctx, api, "payloads")
	require.Error(t, err)
}

func TestClient_UploadDownloadDelete(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{
		bucketExists: true,
		getRC:        io.NopCloser(bytes.NewReader([]byte("payload"))),
	}

	c, err := NewClientWithAPI(ctx, api, "payloads")
	require.NoError(t, err)

	require.NoError(t, c.Upload(ctx, "secrets/abc", bytes.NewReader([]byte("payload"))))
	assert.Equal(t, "secrets/abc", api.putKey)

	rc, err := c.Download(ctx, "secrets/abc")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	require.NoError(t, c.Delete(ctx, "secrets/abc"))
	assert.Equal(t, "secrets/abc", api.removedKey)
}

func TestClient_UploadError(t *testing.T) {
	ctx := context.Background()
	api := &fakeMinio{bucketExists: true, putErr: errors.New("quota exceeded")}

	c, err := NewClientWithAPI(ctx, api, "payloads")
	require.NoError(t, err)

	err = c.Upload(ctx, "secrets/abc", bytes.NewReader(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload object")
}
