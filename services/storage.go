package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"wardrobeapi/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// presigned read URLs stay valid this long
const presignedURLExpiration = 15 * time.Minute

// uploads from the app must start within this window
const presignedUploadExpiration = 30 * time.Minute

// maxDownloadBytes caps clothing photos pulled into the worker.
const maxDownloadBytes = 20 << 20

type StorageProvider interface {
	PresignUpload(ctx context.Context, objectKey string) (string, error)
	PresignRead(ctx context.Context, objectKey string) (string, error)
	Download(ctx context.Context, objectKey string) ([]byte, error)
}

// R2Storage talks to a Cloudflare R2 bucket through the S3 API.
type R2Storage struct {
	client     *s3.Client
	presign    *s3.PresignClient
	bucketName string
}

func NewR2Storage(ctx context.Context, cfg *config.Config) (*R2Storage, error) {
	accountID := cfg.R2AccountID
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID),
		}, nil
	})
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2AccessKeySecret, "")),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &R2Storage{
		client:     client,
		presign:    s3.NewPresignClient(client),
		bucketName: cfg.R2BucketName,
	}, nil
}

func (s *R2Storage) PresignUpload(ctx context.Context, objectKey string) (string, error) {
	request, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(presignedUploadExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign upload for %s: %w", objectKey, err)
	}
	return request.URL, nil
}

func (s *R2Storage) PresignRead(ctx context.Context, objectKey string) (string, error) {
	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	}, s3.WithPresignExpires(presignedURLExpiration))
	if err != nil {
		return "", fmt.Errorf("failed to presign read for %s: %w", objectKey, err)
	}
	return request.URL, nil
}

func (s *R2Storage) Download(ctx context.Context, objectKey string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", objectKey, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", objectKey, err)
	}
	if len(data) > maxDownloadBytes {
		return nil, fmt.Errorf("object %s is larger than %d bytes", objectKey, maxDownloadBytes)
	}
	return data, nil
}
