package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alimikegami/point-of-sales/catalog-service/config"
	"github.com/alimikegami/point-of-sales/catalog-service/internal/domain"
	circuitbreaker "github.com/alimikegami/point-of-sales/catalog-service/internal/infrastructure/circuit-breaker"
	"github.com/alimikegami/point-of-sales/catalog-service/pkg/errs"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

const keyPrefix = "catalog/"

type objectClient interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3BlobStore keeps category and product images in an S3 compatible bucket.
// Calls go through a circuit breaker so a failing store is not hammered.
type S3BlobStore struct {
	client        objectClient
	bucket        string
	publicBaseURL string
	breaker       *gobreaker.CircuitBreaker[struct{}]
}

func CreateS3BlobStore(cfg config.BlobStoreConfig) (*S3BlobStore, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob store bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.PublicBaseURL
	if baseURL == "" {
		if cfg.Endpoint != "" {
			baseURL = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
		}
	}

	return newS3BlobStore(client, cfg.Bucket, baseURL), nil
}

func newS3BlobStore(client objectClient, bucket string, publicBaseURL string) *S3BlobStore {
	return &S3BlobStore{
		client:        client,
		bucket:        bucket,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		breaker:       circuitbreaker.CreateCircuitBreaker[struct{}]("blob-store"),
	}
}

func (s *S3BlobStore) Upload(ctx context.Context, data []byte, contentType string) (image domain.Image, err error) {
	key := keyPrefix + ulid.Make().String()

	_, err = s.breaker.Execute(func() (struct{}, error) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(key),
			Body:          bytes.NewReader(data),
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(int64(len(data))),
		})
		return struct{}{}, err
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", "BlobStore.Upload").Str("key", key).Msg("")
		return image, errs.Infrastructure("BlobStore.Upload", err)
	}

	return domain.Image{PublicID: key, URL: s.publicBaseURL + "/" + key}, nil
}

func (s *S3BlobStore) Delete(ctx context.Context, publicID string) (err error) {
	_, err = s.breaker.Execute(func() (struct{}, error) {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(publicID),
		})
		return struct{}{}, err
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("component", "BlobStore.Delete").Str("key", publicID).Msg("")
		return errs.Infrastructure("BlobStore.Delete", err)
	}

	return nil
}
