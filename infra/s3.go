package infra

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/tnqbao/gau-document-gateway/config"
	"github.com/tnqbao/gau-document-gateway/service"
)

// S3Client stores document blobs in an S3 compatible bucket through the AWS SDK.
type S3Client struct {
	Client  *s3.Client
	Presign *s3.PresignClient
	Bucket  string
	Region  string
}

func InitS3Client(cfg *config.EnvConfig) *S3Client {
	accessKey := cfg.S3.AccessKey
	if accessKey == "" {
		panic("S3 access key is not configured")
	}

	secretKey := cfg.S3.SecretKey
	if secretKey == "" {
		panic("S3 secret key is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		panic(fmt.Sprintf("Failed to load AWS config: %v", err))
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Client{
		Client:  client,
		Presign: s3.NewPresignClient(client),
		Bucket:  cfg.Storage.Bucket,
		Region:  cfg.S3.Region,
	}
}

// Put uploads body. size must be known for the SDK to stream a non seekable body.
func (s *S3Client) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(path),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.Client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to put object %s: %w", path, err)
	}
	return nil
}

func (s *S3Client) Get(ctx context.Context, path string) (io.ReadCloser, service.BlobInfo, error) {
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, service.BlobInfo{}, service.ErrBlobNotFound
		}
		return nil, service.BlobInfo{}, fmt.Errorf("failed to get object %s: %w", path, err)
	}

	return out.Body, service.BlobInfo{
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (s *S3Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to head object %s: %w", path, err)
	}
	return true, nil
}

func (s *S3Client) Delete(ctx context.Context, path string) error {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return err
	}
	if !exists {
		return service.ErrBlobNotFound
	}

	_, err = s.Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", path, err)
	}
	return nil
}

func (s *S3Client) Copy(ctx context.Context, srcPath, dstPath string) error {
	source := (&url.URL{Path: s.Bucket + "/" + srcPath}).EscapedPath()
	_, err := s.Client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.Bucket),
		Key:        aws.String(dstPath),
		CopySource: aws.String(source),
	})
	if err != nil {
		if isS3NotFound(err) {
			return service.ErrBlobNotFound
		}
		return fmt.Errorf("failed to copy object %s to %s: %w", srcPath, dstPath, err)
	}
	return nil
}

func (s *S3Client) SignedURL(ctx context.Context, path string, ttl time.Duration, method string) (string, error) {
	var (
		req *v4.PresignedHTTPRequest
		err error
	)
	switch method {
	case http.MethodGet:
		req, err = s.Presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(path),
		}, s3.WithPresignExpires(ttl))
	case http.MethodPut:
		req, err = s.Presign.PresignPutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.Bucket),
			Key:    aws.String(path),
		}, s3.WithPresignExpires(ttl))
	default:
		return "", fmt.Errorf("unsupported presign method %q", method)
	}
	if err != nil {
		return "", fmt.Errorf("failed to presign %s %s: %w", method, path, err)
	}
	return req.URL, nil
}

func (s *S3Client) HasPrefix(ctx context.Context, prefix string) (bool, error) {
	out, err := s.Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.Bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("failed to list prefix %s: %w", prefix, err)
	}
	return len(out.Contents) > 0, nil
}

func (s *S3Client) EnsureBucket(ctx context.Context) error {
	_, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.Bucket)})
	if err == nil {
		return nil
	}
	if !isS3NotFound(err) {
		return fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(s.Bucket)}
	if s.Region != "" && s.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.Region),
		}
	}
	if _, err := s.Client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (s *S3Client) StorageInfo(ctx context.Context) (map[string]any, error) {
	out, err := s.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.Bucket)})
	if err != nil {
		return nil, fmt.Errorf("failed to head bucket: %w", err)
	}
	return map[string]any{
		"backend": config.BlobBackendS3,
		"bucket":  s.Bucket,
		"region":  aws.ToString(out.BucketRegion),
	}, nil
}

func isS3NotFound(err error) bool {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
