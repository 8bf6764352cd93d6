package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockObjectClient struct {
	mock.Mock
}

func (m *MockObjectClient) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectClient) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	args := m.Called(ctx, bucketName, opts)
	return args.Error(0)
}

func (m *MockObjectClient) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockObjectClient) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	args := m.Called(ctx, bucketName, objectName, reader, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockObjectClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestFSPutOpen(t *testing.T) {
	ctx := context.Background()
	s, err := NewFS(filepath.Join(t.TempDir(), "mods"), "")
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "abc", bytes.NewReader([]byte("archive body")), 12))
	assert.Equal(t, filepath.Join(s.Dir, "abc.zip"), s.Location("abc"))

	ok, err = s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	a, err := s.Open(ctx, "abc")
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, int64(12), a.Size())

	buf := make([]byte, 4)
	_, err = a.ReadAt(buf, 8)
	require.NoError(t, err)
	assert.Equal(t, "body", string(buf))
}

func TestFSPutFailureLeavesNothing(t *testing.T) {
	ctx := context.Background()
	s, err := NewFS(t.TempDir(), "zip")
	require.NoError(t, err)

	err = s.Put(ctx, "abc", failingReader{}, 10)
	require.Error(t, err)

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	entries, err := os.ReadDir(s.Dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFSPutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s, err := NewFS(t.TempDir(), "zip")
	require.NoError(t, err)

	err = s.Put(ctx, "abc", bytes.NewReader([]byte("data")), 4)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSOpenMissing(t *testing.T) {
	s, err := NewFS(t.TempDir(), "zip")
	require.NoError(t, err)
	_, err = s.Open(context.Background(), "missing")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewS3CreatesBucket(t *testing.T) {
	ctx := context.Background()
	client := new(MockObjectClient)
	client.On("BucketExists", ctx, "mods").Return(false, nil)
	client.On("MakeBucket", ctx, "mods", minio.MakeBucketOptions{}).Return(nil)

	s, err := NewS3(ctx, client, "mods", "zip")
	require.NoError(t, err)
	assert.Equal(t, "s3://mods/abc.zip", s.Location("abc"))
	client.AssertExpectations(t)
}

func TestS3Exists(t *testing.T) {
	ctx := context.Background()
	client := new(MockObjectClient)
	client.On("StatObject", ctx, "mods", "abc.zip", minio.StatObjectOptions{}).Return(minio.ObjectInfo{Key: "abc.zip"}, nil)
	client.On("StatObject", ctx, "mods", "def.zip", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"})
	client.On("StatObject", ctx, "mods", "ghi.zip", minio.StatObjectOptions{}).
		Return(minio.ObjectInfo{}, errors.New("network down"))

	s := &S3{Client: client, Bucket: "mods", Extension: "zip"}

	ok, err := s.Exists(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Exists(ctx, "def")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Exists(ctx, "ghi")
	assert.Error(t, err)
}

func TestS3PutOpen(t *testing.T) {
	ctx := context.Background()
	client := new(MockObjectClient)
	body := bytes.NewReader([]byte("archive body"))
	client.On("PutObject", ctx, "mods", "abc.zip", body, int64(12), mock.AnythingOfType("minio.PutObjectOptions")).
		Return(minio.UploadInfo{Key: "abc.zip"}, nil)
	client.On("GetObject", ctx, "mods", "abc.zip", minio.GetObjectOptions{}).
		Return(io.NopCloser(bytes.NewReader([]byte("archive body"))), nil)

	s := &S3{Client: client, Bucket: "mods", Extension: "zip"}
	require.NoError(t, s.Put(ctx, "abc", body, 12))

	a, err := s.Open(ctx, "abc")
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, int64(12), a.Size())

	buf := make([]byte, 7)
	_, err = a.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "archive", string(buf))
	client.AssertExpectations(t)
}

func TestS3OpenError(t *testing.T) {
	ctx := context.Background()
	client := new(MockObjectClient)
	client.On("GetObject", ctx, "mods", "abc.zip", minio.GetObjectOptions{}).Return(nil, errors.New("denied"))

	s := &S3{Client: client, Bucket: "mods", Extension: "zip"}
	_, err := s.Open(ctx, "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}
