package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"videoEditor/worker/domain"
)

// S3 stores objects in an S3-compatible bucket and resolves results into
// presigned, time-limited GET URLs.
type S3 struct {
	client *minio.Client
	bucket string
}

type S3Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

func NewS3(opts S3Options) (*S3, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, domain.NewError(domain.KindStorage, "connect object storage: %v", err)
	}
	return &S3{client: client, bucket: opts.Bucket}, nil
}

func (s *S3) Write(ctx context.Context, key string, r io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return "", domain.NewError(domain.KindStorage, "put %s: %v", key, err)
	}
	return key, nil
}

func (s *S3) Read(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, domain.NewError(domain.KindStorage, "get %s: %v", ref, err)
	}
	// GetObject is lazy; surface missing keys now instead of on first read.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		var resp minio.ErrorResponse
		if errors.As(err, &resp) && resp.Code == "NoSuchKey" {
			return nil, ErrNotFound
		}
		return nil, domain.NewError(domain.KindStorage, "get %s: %v", ref, err)
	}
	return obj, nil
}

func (s *S3) ResolveURL(ctx context.Context, ref string, ttl time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, ttl, nil)
	if err != nil {
		return "", domain.NewError(domain.KindStorage, "presign %s: %v", ref, err)
	}
	return u.String(), nil
}

func (s *S3) Delete(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return domain.NewError(domain.KindStorage, "remove %s: %v", ref, err)
	}
	return nil
}
