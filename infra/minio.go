package infra

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/service"
)

// MinioClient stores document blobs in a single MinIO bucket.
type MinioClient struct {
	Admin    *madmin.AdminClient
	Client   *minio.Client
	Endpoint string
	Bucket   string
	Region   string
}

func InitMinioClient(cfg *config.EnvConfig) *MinioClient {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		panic("MinIO endpoint is not configured")
	}

	rootUser := cfg.Minio.RootUser
	if rootUser == "" {
		panic("MinIO root user is not configured")
	}

	rootPassword := cfg.Minio.RootPassword
	if rootPassword == "" {
		panic("MinIO root password is not configured")
	}

	madminClient, err := madmin.New(endpoint, rootUser, rootPassword, cfg.Minio.UseSSL)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO admin client: %v", err))
	}

	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(rootUser, rootPassword, ""),
		Secure: cfg.Minio.UseSSL,
		Region: cfg.Storage.Region,
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
	}

	return &MinioClient{
		Admin:    madminClient,
		Client:   minioClient,
		Endpoint: endpoint,
		Bucket:   cfg.Storage.Bucket,
		Region:   cfg.Storage.Region,
	}
}

func (m *MinioClient) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	_, err := m.Client.PutObject(ctx, m.Bucket, path, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", path, err)
	}
	return nil
}

// Get stats the object before opening it so a missing key is reported as
// service.ErrBlobNotFound instead of surfacing on the first Read.
func (m *MinioClient) Get(ctx context.Context, path string) (io.ReadCloser, service.BlobInfo, error) {
	stat, err := m.Client.StatObject(ctx, m.Bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return nil, service.BlobInfo{}, service.ErrBlobNotFound
		}
		return nil, service.BlobInfo{}, fmt.Errorf("failed to stat object %s: %w", path, err)
	}

	object, err := m.Client.GetObject(ctx, m.Bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, service.BlobInfo{}, fmt.Errorf("failed to get object %s: %w", path, err)
	}

	return object, service.BlobInfo{
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

func (m *MinioClient) Exists(ctx context.Context, path string) (bool, error) {
	_, err := m.Client.StatObject(ctx, m.Bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if isMinioNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", path, err)
	}
	return true, nil
}

// Delete removes the object. S3 deletes are idempotent, so the object is checked
// first to report a missing key.
func (m *MinioClient) Delete(ctx context.Context, path string) error {
	exists, err := m.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return service.ErrBlobNotFound
	}

	if err := m.Client.RemoveObject(ctx, m.Bucket, path, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object %s: %w", path, err)
	}
	return nil
}

func (m *MinioClient) Copy(ctx context.Context, srcPath, dstPath string) error {
	_, err := m.Client.CopyObject(ctx,
		minio.CopyDestOptions{Bucket: m.Bucket, Object: dstPath},
		minio.CopySrcOptions{Bucket: m.Bucket, Object: srcPath},
	)
	if err != nil {
		if isMinioNotFound(err) {
			return service.ErrBlobNotFound
		}
		return fmt.Errorf("failed to copy object %s to %s: %w", srcPath, dstPath, err)
	}
	return nil
}

func (m *MinioClient) SignedURL(ctx context.Context, path string, ttl time.Duration, method string) (string, error) {
	var (
		u   *url.URL
		err error
	)
	switch method {
	case http.MethodGet:
		u, err = m.Client.PresignedGetObject(ctx, m.Bucket, path, ttl, url.Values{})
	case http.MethodPut:
		u, err = m.Client.PresignedPutObject(ctx, m.Bucket, path, ttl)
	default:
		return "", fmt.Errorf("unsupported presign method %q", method)
	}
	if err != nil {
		return "", fmt.Errorf("failed to presign %s %s: %w", method, path, err)
	}
	return u.String(), nil
}

func (m *MinioClient) HasPrefix(ctx context.Context, prefix string) (bool, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for object := range m.Client.ListObjects(ctx, m.Bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
		MaxKeys:   1,
	}) {
		if object.Err != nil {
			return false, fmt.Errorf("failed to list prefix %s: %w", prefix, object.Err)
		}
		return true, nil
	}
	return false, nil
}

// EnsureBucket creates the document bucket if it doesn't exist
func (m *MinioClient) EnsureBucket(ctx context.Context) error {
	exists, err := m.Client.BucketExists(ctx, m.Bucket)
	if err != nil {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := m.Client.MakeBucket(ctx, m.Bucket, minio.MakeBucketOptions{Region: m.Region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StorageInfo reports the MinIO deployment state for health checks.
func (m *MinioClient) StorageInfo(ctx context.Context) (map[string]any, error) {
	info, err := m.Admin.ServerInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get MinIO server info: %w", err)
	}

	online := 0
	for _, server := range info.Servers {
		if server.State == "online" {
			online++
		}
	}

	return map[string]any{
		"backend":        config.BlobBackendMinio,
		"bucket":         m.Bucket,
		"mode":           info.Mode,
		"servers":        len(info.Servers),
		"servers_online": online,
		"buckets":        info.Buckets.Count,
		"objects":        info.Objects.Count,
	}, nil
}

func isMinioNotFound(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
