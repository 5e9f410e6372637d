package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appconfig "github.com/doaqui/doaqui/internal/config"
)

// S3Store stores images in an S3-compatible bucket. Works against AWS as
// well as MinIO-style endpoints when UsePathStyle is set.
type S3Store struct {
	client *s3.Client
	bucket string
	logger zerolog.Logger
}

// NewS3Store creates an S3Store from the storage configuration.
func NewS3Store(ctx context.Context, cfg appconfig.S3StorageConfig, logger zerolog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.With().Str("component", "image_store").Logger(),
	}, nil
}

// Save uploads the image under a fresh identifier.
func (s *S3Store) Save(ctx context.Context, reader io.Reader, contentType string) (string, error) {
	ext, ok := extensions[contentType]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrInvalidImageID, contentType)
	}

	id := uuid.New().String() + "." + ext

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(id)),
		Body:        reader,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	s.logger.Debug().Str("image_id", id).Msg("image uploaded")
	return id, nil
}

// Open downloads the image content.
func (s *S3Store) Open(ctx context.Context, id string) (io.ReadCloser, string, error) {
	contentType, err := ParseImageID(id)
	if err != nil {
		return nil, "", err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, "", ErrImageNotFound
		}
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	return out.Body, contentType, nil
}

// Delete removes the image object. S3 deletes are idempotent, so a missing
// object is not an error.
func (s *S3Store) Delete(ctx context.Context, id string) error {
	if _, err := ParseImageID(id); err != nil {
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(id)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// key returns the object key, sharded by identifier prefix.
func (s *S3Store) key(id string) string {
	return "images/" + id[0:2] + "/" + id
}
