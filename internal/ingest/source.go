package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"VisionTag/internal/config"
)

// Source lists and reads the per-image JSON documents.
type Source interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// DirSource reads *.json files from a local directory (not recursive).
type DirSource struct {
	Dir string
}

func (s DirSource) List(_ context.Context) ([]string, error) {
	fi, err := os.Stat(s.Dir)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", s.Dir)
	}
	names, err := filepath.Glob(filepath.Join(s.Dir, "*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s DirSource) Read(_ context.Context, name string) ([]byte, error) {
	return os.ReadFile(name)
}

// BucketSource reads *.json objects under a prefix of an S3-compatible bucket.
type BucketSource struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewBucketSource(client *minio.Client, bucket, prefix string) *BucketSource {
	return &BucketSource{client: client, bucket: bucket, prefix: prefix}
}

func (s *BucketSource) List(ctx context.Context) ([]string, error) {
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if strings.HasSuffix(obj.Key, ".json") {
			names = append(names, obj.Key)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *BucketSource) Read(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// SourceFor picks the bucket source when a bucket is configured, the
// directory source otherwise.
func SourceFor(cfg config.Config) (Source, string, error) {
	if cfg.Bucket == "" {
		return DirSource{Dir: cfg.JSONDir}, cfg.JSONDir, nil
	}
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, "", fmt.Errorf("bucket client: %w", err)
	}
	return NewBucketSource(cl, cfg.Bucket, cfg.Prefix), "s3://" + path.Join(cfg.Bucket, cfg.Prefix), nil
}
