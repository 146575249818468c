// Package storage is the object-store gateway. Documents live under a
// per-solicitation prefix; the database only ever records the object key.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"

	awsv2 "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/defeso/backend/internal/config"
	"github.com/defeso/backend/internal/core"
)

// s3API is the slice of the S3 client the store uses. Narrowed so tests can
// stub the network.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Store uploads and fetches document bytes from a single bucket.
type Store struct {
	client    s3API
	bucket    string
	maxUpload int64
	logger    *log.Logger
}

// NewStore builds the gateway from the ambient AWS credential chain. The SDK
// retryer handles transient S3 failures; the pipeline never retries uploads
// itself.
func NewStore(ctx context.Context, cfg config.AWSConfig) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryer(func() awsv2.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = 5
			})
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &Store{
		client:    s3.NewFromConfig(awsCfg),
		bucket:    cfg.Bucket,
		maxUpload: int64(cfg.MaxUploadSizeMB) << 20,
		logger:    log.New(log.Writer(), "[STORAGE] ", log.LstdFlags),
	}, nil
}

// NewStoreWithClient injects a prebuilt client. Test constructor.
func NewStoreWithClient(client s3API, bucket string, maxUploadMB int) *Store {
	return &Store{
		client:    client,
		bucket:    bucket,
		maxUpload: int64(maxUploadMB) << 20,
		logger:    log.New(log.Writer(), "[STORAGE] ", log.LstdFlags),
	}
}

// BuildKey derives the object key for a new document of a solicitation. The
// random component keeps same-named re-uploads from colliding; the original
// file extension is preserved lowercased.
func BuildKey(solicitationID, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	random := strings.ReplaceAll(uuid.New().String(), "-", "")
	return fmt.Sprintf("solicitacoes/%s/docs/%s%s", solicitationID, random, ext)
}

// Upload stores the bytes under key. Payloads over the configured limit are
// rejected as invalid input before any network traffic.
func (s *Store) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	if s.maxUpload > 0 && int64(len(data)) > s.maxUpload {
		return core.NewError(core.KindInvalidInput,
			fmt.Sprintf("file exceeds the %dMB upload limit", s.maxUpload>>20))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      awsv2.String(s.bucket),
		Key:         awsv2.String(key),
		Body:        bytes.NewReader(data),
		ContentType: awsv2.String(contentType),
	})
	if err != nil {
		return core.WrapError(core.KindStorage, fmt.Sprintf("upload object %s", key), err)
	}
	s.logger.Printf("uploaded %s (%d bytes)", key, len(data))
	return nil
}

// Download fetches the full object bytes for key.
func (s *Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		return nil, core.WrapError(core.KindStorage, fmt.Sprintf("fetch object %s", key), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, core.WrapError(core.KindStorage, fmt.Sprintf("read object %s", key), err)
	}
	return data, nil
}

// Delete removes the object. Used to roll back uploads whose database row
// could not be written.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: awsv2.String(s.bucket),
		Key:    awsv2.String(key),
	})
	if err != nil {
		return core.WrapError(core.KindStorage, fmt.Sprintf("delete object %s", key), err)
	}
	return nil
}
