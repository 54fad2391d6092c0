package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config locates an object in an S3-compatible store.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Key       string
	UseSSL    bool
}

// S3 reads a log object from an S3-compatible store. Size and modification
// time come from StatObject; ranges are fetched with ranged GetObject calls.
type S3 struct {
	client *minio.Client
	bucket string
	key    string
}

// Ensure S3 implements Source at compile time.
var _ Source = (*S3)(nil)

// NewS3 validates cfg and builds an S3 source. No request is made until the
// first Stat or ReadRange.
func NewS3(cfg S3Config) (*S3, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	key := strings.TrimPrefix(strings.TrimSpace(cfg.Key), "/")
	if key == "" {
		return nil, fmt.Errorf("s3 object key is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3{client: client, bucket: bucket, key: key}, nil
}

// ParseS3URI splits "s3://bucket/key" into bucket and key.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(uri), "s3://")
	if !ok {
		return "", "", fmt.Errorf("not an s3 uri: %q", uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 uri %q needs a bucket and a key", uri)
	}
	return bucket, key, nil
}

// Name implements Source.
func (s *S3) Name() string { return "s3://" + s.bucket + "/" + s.key }

// Stat implements Source.
func (s *S3) Stat(ctx context.Context) (Info, error) {
	obj, err := s.client.StatObject(ctx, s.bucket, s.key, minio.StatObjectOptions{})
	if err != nil {
		return Info{}, &ReadError{Source: s.Name(), Err: fmt.Errorf("stat object: %w", err)}
	}
	return Info{Size: obj.Size, ModTime: obj.LastModified}, nil
}

// ReadRange implements Source.
func (s *S3) ReadRange(ctx context.Context, start, end int64) ([]byte, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	if start == end {
		return []byte{}, nil
	}
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end-1); err != nil {
		return nil, fmt.Errorf("set range: %w", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, opts)
	if err != nil {
		return nil, &ReadError{Source: s.Name(), Start: start, End: end, Err: fmt.Errorf("get object: %w", err)}
	}
	defer func() { _ = obj.Close() }()

	buf := make([]byte, end-start)
	if _, err := io.ReadFull(obj, buf); err != nil {
		return nil, &ReadError{Source: s.Name(), Start: start, End: end, Err: fmt.Errorf("read object: %w", err)}
	}
	return buf, nil
}
