// Package minio reads catalogue exports from, and archives import run reports
// to, an S3-compatible object store.
package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/lifecycle"

	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/config"
	"github.com/mission-apprentissage/api-apprentissage-sub004/internal/infrastructure/monitoring/logging"
	"github.com/mission-apprentissage/api-apprentissage-sub004/pkg/errors"
)

// URLScheme prefixes object locations given on the command line.
const URLScheme = "s3://"

const connectTimeout = 10 * time.Second

// ObjectAPI is the subset of the minio SDK the store relies on. OpenObject
// stands in for GetObject, whose concrete *minio.Object result cannot be
// faked.
type ObjectAPI interface {
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	SetBucketLifecycle(ctx context.Context, bucketName string, config *lifecycle.Configuration) error
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error)
}

type sdkAPI struct {
	*minio.Client
}

func (a sdkAPI) OpenObject(ctx context.Context, bucketName, objectName string) (io.ReadCloser, error) {
	obj, err := a.GetObject(ctx, bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Store is the object store client.
type Store struct {
	api    ObjectAPI
	cfg    config.StorageConfig
	logger logging.Logger
}

// NewStore connects to the configured endpoint and prepares the report
// bucket.
func NewStore(cfg config.StorageConfig, log logging.Logger) (*Store, error) {
	if log == nil {
		return nil, errors.InvalidParam("logger is required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create object store client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return newStore(ctx, sdkAPI{client}, cfg, log)
}

func newStore(ctx context.Context, api ObjectAPI, cfg config.StorageConfig, log logging.Logger) (*Store, error) {
	if _, err := api.ListBuckets(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to object store").
			WithDetail(cfg.Endpoint)
	}

	s := &Store{api: api, cfg: cfg, logger: log}
	if err := s.ensureReportBucket(ctx); err != nil {
		return nil, err
	}

	log.Info("object store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.Bool("ssl", cfg.UseSSL),
		logging.String("report_bucket", cfg.ReportBucket))
	return s, nil
}

func (s *Store) ensureReportBucket(ctx context.Context) error {
	bucket := s.cfg.ReportBucket
	exists, err := s.api.BucketExists(ctx, bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check bucket existence").WithDetail(bucket)
	}
	if !exists {
		if err := s.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, fmt.Sprintf("failed to create bucket %s", bucket))
		}
		s.logger.Info("created bucket", logging.String("bucket", bucket))
	}

	if s.cfg.ReportRetentionDays > 0 {
		lc := lifecycle.NewConfiguration()
		lc.Rules = []lifecycle.Rule{{
			ID:     "report-expiry",
			Status: "Enabled",
			Expiration: lifecycle.Expiration{
				Days: lifecycle.ExpirationDays(s.cfg.ReportRetentionDays),
			},
		}}
		// A store without lifecycle support still accepts reports.
		if err := s.api.SetBucketLifecycle(ctx, bucket, lc); err != nil {
			s.logger.Warn("failed to set report lifecycle", logging.String("bucket", bucket), logging.Err(err))
		}
	}
	return nil
}

// ParseURL splits an s3://bucket/key location. ok is false when raw does not
// carry the scheme or lacks a bucket or key.
func ParseURL(raw string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(raw, URLScheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open streams an object. A missing bucket or key yields ErrCodeNotFound.
func (s *Store) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	info, err := s.api.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, s.wrap(err, "failed to stat object", bucket, key)
	}
	rc, err := s.api.OpenObject(ctx, bucket, key)
	if err != nil {
		return nil, s.wrap(err, "failed to open object", bucket, key)
	}
	s.logger.Debug("object opened",
		logging.String("bucket", bucket),
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return rc, nil
}

// ReportKey is the object key a report started at startedAt is archived
// under.
func ReportKey(id string, startedAt time.Time) string {
	return fmt.Sprintf("runs/%s/%s.json", startedAt.UTC().Format("2006/01/02"), id)
}

// ArchiveReport stores report as JSON in the report bucket and returns its
// key.
func (s *Store) ArchiveReport(ctx context.Context, id string, startedAt time.Time, report any) (string, error) {
	body, err := json.Marshal(report)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode run report")
	}
	key := ReportKey(id, startedAt)
	_, err = s.api.PutObject(ctx, s.cfg.ReportBucket, key, bytes.NewReader(body), int64(len(body)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return "", s.wrap(err, "failed to archive run report", s.cfg.ReportBucket, key)
	}
	s.logger.Info("run report archived", logging.String("bucket", s.cfg.ReportBucket), logging.String("key", key))
	return key, nil
}

// HealthCheck verifies the endpoint answers and the report bucket exists.
func (s *Store) HealthCheck(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.cfg.ReportBucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "object store unreachable")
	}
	if !exists {
		return errors.New(errors.ErrCodeServiceUnavailable, "report bucket missing").WithDetail(s.cfg.ReportBucket)
	}
	return nil
}

func (s *Store) wrap(err error, msg, bucket, key string) error {
	code := errors.ErrCodeExternalService
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		code = errors.ErrCodeNotFound
	}
	return errors.Wrap(err, code, msg).WithDetailf("%s%s/%s", URLScheme, bucket, key)
}
