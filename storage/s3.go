package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds the connection settings of an S3 compatible archive bucket.
type S3Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	Bucket         string
	Region         string
	UseSSL         bool
	TimeoutSeconds int
}

// ObjectClient is the subset of the minio client used by S3.
type ObjectClient interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
}

// S3 stores archives as <hash>.<ext> objects in a bucket.
type S3 struct {
	Client    ObjectClient
	Bucket    string
	Extension string
}

// NewObjectClient creates a minio client for cfg.
func NewObjectClient(cfg S3Config) (ObjectClient, error) {
	// Minio expects endpoint without scheme
	endpoint := strings.TrimPrefix(cfg.Endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return &minioClient{Client: client}, nil
}

type minioClient struct {
	*minio.Client
}

func (m *minioClient) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return m.Client.GetObject(ctx, bucketName, objectName, opts)
}

// NewS3 returns an S3 store, creating the bucket when it does not exist.
func NewS3(ctx context.Context, client ObjectClient, bucket, ext string) (*S3, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &S3{Client: client, Bucket: bucket, Extension: ext}, nil
}

func (s *S3) Location(hash string) string {
	return "s3://" + s.Bucket + "/" + objectName(hash, s.Extension)
}

func (s *S3) Exists(ctx context.Context, hash string) (bool, error) {
	_, err := s.Client.StatObject(ctx, s.Bucket, objectName(hash, s.Extension), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", s.Location(hash), err)
}

// Put uploads r. Object stores publish an object only once the upload
// completes, so a failed Put leaves nothing behind.
func (s *S3) Put(ctx context.Context, hash string, r io.Reader, size int64) error {
	if size <= 0 {
		size = -1
	}
	_, err := s.Client.PutObject(ctx, s.Bucket, objectName(hash, s.Extension), r, size, minio.PutObjectOptions{
		ContentType: "application/zip",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", s.Location(hash), err)
	}
	return nil
}

// Open downloads the object into memory.
func (s *S3) Open(ctx context.Context, hash string) (Archive, error) {
	rc, err := s.Client.GetObject(ctx, s.Bucket, objectName(hash, s.Extension), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.Location(hash), err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Location(hash), err)
	}
	return &memoryArchive{Reader: bytes.NewReader(data)}, nil
}

type memoryArchive struct {
	*bytes.Reader
}

func (a *memoryArchive) Close() error { return nil }
