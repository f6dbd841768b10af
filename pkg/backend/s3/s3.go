// Package s3 provides a Backend backed by Amazon S3 or S3-compatible
// object storage (MinIO, Localstack, etc.).
//
// Path-Based Key Design:
//   - The resolved node location is used directly as the object key
//     (with an optional prefix), so the bucket mirrors the namespace
//   - Containers are represented by a zero-byte marker object whose key
//     ends in "/"
//   - Human-readable and inspectable bucket contents
//
// S3 has no rename: MoveBytes is implemented as server-side copy plus
// delete. Subtree operations list the key prefix and act per object.
//
// Thread Safety: safe for concurrent use. Concurrent writes to the same
// key are last-write-wins, per S3's consistency model.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/voservices/vospace/pkg/backend"
)

// Backend stores bytes in an S3 bucket.
type Backend struct {
	client    *awss3.Client
	bucket    string
	keyPrefix string
}

// Config contains configuration for the S3 backend.
type Config struct {
	// Client is the configured S3 client
	Client *awss3.Client

	// Bucket is the S3 bucket name. The bucket must already exist.
	Bucket string

	// KeyPrefix is an optional prefix for all object keys
	KeyPrefix string
}

// New creates an S3 backend and verifies bucket access.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("S3 backend: client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 backend: bucket name is required")
	}

	_, err := cfg.Client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: aws.String(cfg.Bucket),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to access bucket %q: %w", cfg.Bucket, err)
	}

	return &Backend{
		client:    cfg.Client,
		bucket:    cfg.Bucket,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

var _ backend.Backend = (*Backend)(nil)

// key returns the full object key for a location.
func (b *Backend) key(location string) string {
	return b.keyPrefix + strings.TrimPrefix(location, "/")
}

func (b *Backend) CreateContainer(ctx context.Context, location string) error {
	_, err := b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(location) + "/"),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("create container marker: %w", err)
	}
	return nil
}

func (b *Backend) Touch(ctx context.Context, location string) error {
	key := b.key(location)
	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) && !isNotFound(err) {
		return fmt.Errorf("head object %s: %w", key, err)
	}

	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(nil),
	})
	if err != nil {
		return fmt.Errorf("touch object %s: %w", key, err)
	}
	return nil
}

// CreateLink is a no-op: S3 has no symbolic links, and link targets are
// resolved from node metadata.
func (b *Backend) CreateLink(ctx context.Context, location, target string) error {
	return nil
}

func (b *Backend) Size(ctx context.Context, location string) (int64, error) {
	out, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(location)),
	})
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return aws.ToInt64(out.ContentLength), nil
}

func (b *Backend) CopyBytes(ctx context.Context, src, dst string) error {
	srcKey, dstKey := b.key(src), b.key(dst)

	keys, err := b.listSubtree(ctx, srcKey)
	if err != nil {
		return err
	}
	for _, k := range keys {
		target := dstKey + strings.TrimPrefix(k, srcKey)
		_, err := b.client.CopyObject(ctx, &awss3.CopyObjectInput{
			Bucket:     aws.String(b.bucket),
			CopySource: aws.String(b.bucket + "/" + k),
			Key:        aws.String(target),
		})
		if err != nil {
			return fmt.Errorf("copy %s to %s: %w", k, target, err)
		}
	}
	return nil
}

func (b *Backend) MoveBytes(ctx context.Context, src, dst string) error {
	if err := b.CopyBytes(ctx, src, dst); err != nil {
		return err
	}
	return b.RemoveBytes(ctx, src)
}

func (b *Backend) RemoveBytes(ctx context.Context, location string) error {
	keys, err := b.listSubtree(ctx, b.key(location))
	if err != nil {
		return err
	}
	for _, k := range keys {
		_, err := b.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
			Bucket: aws.String(b.bucket),
			Key:    aws.String(k),
		})
		if err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	return nil
}

func (b *Backend) Read(ctx context.Context, location string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(location)),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", b.key(location), err)
	}
	return out.Body, nil
}

func (b *Backend) Write(ctx context.Context, location string, r io.Reader) (int64, error) {
	// PutObject needs a seekable or fully buffered body for signing.
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	_, err = b.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(location)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return 0, fmt.Errorf("put object %s: %w", b.key(location), err)
	}
	return int64(len(data)), nil
}

// listSubtree returns the exact key (if present) plus every key under
// "<key>/".
func (b *Backend) listSubtree(ctx context.Context, key string) ([]string, error) {
	var keys []string

	_, err := b.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		keys = append(keys, key)
	} else if !isNotFound(err) {
		return nil, err
	}

	prefix := key + "/"
	var token *string
	for {
		out, err := b.client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
			Bucket:            aws.String(b.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("list prefix %s: %w", prefix, err)
		}
		for _, obj := range out.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return keys, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
