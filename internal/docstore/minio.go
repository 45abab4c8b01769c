// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pdiddy/istat-engine/pkg/types"
)

// MinioStore keeps documents as objects {stage}/{name} in one bucket of an
// S3-compatible service.
type MinioStore struct {
	Client *minio.Client
	Bucket string
}

// NewMinioStore connects to cfg.Endpoint with static credentials. The
// bucket must already exist.
func NewMinioStore(cfg types.MinioConfig) (*MinioStore, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("minio store requires endpoint and bucket")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client for %s: %w", cfg.Endpoint, err)
	}
	return &MinioStore{Client: client, Bucket: cfg.Bucket}, nil
}

func objectKey(stage, name string) string { return stage + "/" + name }

// Put uploads doc in a single PutObject call; S3 never exposes a partially
// written object.
func (s *MinioStore) Put(ctx context.Context, stage, name string, doc any) error {
	if err := validName(stage, name); err != nil {
		return err
	}
	data, err := encode(doc)
	if err != nil {
		return err
	}
	_, err = s.Client.PutObject(ctx, s.Bucket, objectKey(stage, name),
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("uploading %s/%s: %w", stage, name, err)
	}
	return nil
}

// Get downloads and decodes {stage}/{name}.
func (s *MinioStore) Get(ctx context.Context, stage, name string, doc any) error {
	if err := validName(stage, name); err != nil {
		return err
	}
	obj, err := s.Client.GetObject(ctx, s.Bucket, objectKey(stage, name), minio.GetObjectOptions{})
	if err != nil {
		return translateError(err, stage, name)
	}
	defer obj.Close()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return translateError(err, stage, name)
	}
	return decode(data, doc, stage, name)
}

// List returns the sorted names under {stage}/ starting with prefix.
func (s *MinioStore) List(ctx context.Context, stage, prefix string) ([]string, error) {
	dir := stage + "/"
	var names []string
	for obj := range s.Client.ListObjects(ctx, s.Bucket, minio.ListObjectsOptions{Prefix: dir + prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("listing %s: %w", stage, obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, dir)
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// translateError maps S3 missing-object codes to ErrNotFound.
func translateError(err error, stage, name string) error {
	if isNotFound(err) {
		return fmt.Errorf("%s/%s: %w", stage, name, ErrNotFound)
	}
	return fmt.Errorf("downloading %s/%s: %w", stage, name, err)
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}
