package storage

import (
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bk-go/internal/bk"
	"bk-go/internal/config"
)

// remoteMaxRetries bounds retry attempts around object-store calls.
// Local filesystem errors are never retried; remote ones are network
// failures and get a short exponential backoff.
const remoteMaxRetries = 3

// Remote stores archive artifacts in an S3-compatible object store.
// Handles are object keys. The authenticated session is established
// lazily on first use and cached for the lifetime of this backend
// instance.
type Remote struct {
	cfg    config.RemoteConfig
	logger bk.Logger

	mu     sync.Mutex
	client *minio.Client
}

// NewRemote creates a remote backend. No connection is made until the
// first operation.
func NewRemote(cfg config.RemoteConfig, logger bk.Logger) *Remote {
	return &Remote{cfg: cfg, logger: logger}
}

func (r *Remote) Kind() string { return bk.StorageRemote }

// session returns the cached client, logging in on first use.
// A failed login is fatal to the operation and propagated.
func (r *Remote) session(ctx context.Context) (*minio.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client != nil {
		return r.client, nil
	}

	if r.cfg.Endpoint == "" || r.cfg.AccessKey == "" || r.cfg.SecretKey == "" || r.cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: remote storage requires endpoint, bucket and credentials", bk.ErrInvalidConfig)
	}

	client, err := minio.New(r.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(r.cfg.AccessKey, r.cfg.SecretKey, ""),
		Secure: r.cfg.Secure,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bk.ErrAuth, err)
	}

	// Probe the bucket so credential problems surface here rather than
	// midway through an upload.
	ok, err := client.BucketExists(ctx, r.cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bk.ErrAuth, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: bucket %s", bk.ErrNotFound, r.cfg.Bucket)
	}

	r.logger.Info("remote storage session established", "endpoint", r.cfg.Endpoint, "bucket", r.cfg.Bucket)
	r.client = client
	return client, nil
}

// retry runs op with bounded exponential backoff.
func (r *Remote) retry(ctx context.Context, op func() error) error {
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), remoteMaxRetries), ctx)
	return backoff.Retry(op, bo)
}

// Store uploads the artifact and returns its object key.
func (r *Remote) Store(ctx context.Context, localPath, name string) (bk.Handle, error) {
	client, err := r.session(ctx)
	if err != nil {
		return "", err
	}

	key := path.Join(r.cfg.Prefix, name)
	err = r.retry(ctx, func() error {
		_, err := client.FPutObject(ctx, r.cfg.Bucket, key, localPath, minio.PutObjectOptions{})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s: %w", name, err)
	}

	r.logger.Info("archive uploaded", "key", key)
	return bk.Handle(key), nil
}

// Retrieve locates the artifact by its exact filename and downloads it.
func (r *Remote) Retrieve(ctx context.Context, handle bk.Handle, destPath string) error {
	client, err := r.session(ctx)
	if err != nil {
		return err
	}

	key, found, err := r.find(ctx, client, path.Base(string(handle)))
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: archive %s in bucket %s", bk.ErrNotFound, handle, r.cfg.Bucket)
	}

	err = r.retry(ctx, func() error {
		return client.FGetObject(ctx, r.cfg.Bucket, key, destPath, minio.GetObjectOptions{})
	})
	if err != nil {
		return fmt.Errorf("downloading %s: %w", key, err)
	}
	return nil
}

// Delete locates the artifact by its exact filename and removes it.
// An absent artifact is a logged no-op.
func (r *Remote) Delete(ctx context.Context, handle bk.Handle) error {
	client, err := r.session(ctx)
	if err != nil {
		return err
	}

	key, found, err := r.find(ctx, client, path.Base(string(handle)))
	if err != nil {
		return err
	}
	if !found {
		r.logger.Warn("archive not found in remote storage, skipping delete", "archive", handle)
		return nil
	}

	err = r.retry(ctx, func() error {
		return client.RemoveObject(ctx, r.cfg.Bucket, key, minio.RemoveObjectOptions{})
	})
	if err != nil {
		return fmt.Errorf("deleting %s: %w", key, err)
	}
	return nil
}

// Exists reports whether an artifact with the handle's filename is in
// the bucket.
func (r *Remote) Exists(ctx context.Context, handle bk.Handle) (bool, error) {
	client, err := r.session(ctx)
	if err != nil {
		return false, err
	}

	_, found, err := r.find(ctx, client, path.Base(string(handle)))
	return found, err
}

// find searches the configured prefix for an object whose base name
// matches name exactly. With several matches the first one wins; archive
// names embed a timestamp, which keeps them unique in practice.
func (r *Remote) find(ctx context.Context, client *minio.Client, name string) (string, bool, error) {
	var key string
	var found bool

	err := r.retry(ctx, func() error {
		key, found = "", false
		for object := range client.ListObjects(ctx, r.cfg.Bucket, minio.ListObjectsOptions{
			Prefix:    r.cfg.Prefix,
			Recursive: true,
		}) {
			if object.Err != nil {
				return object.Err
			}
			if path.Base(object.Key) == name {
				key, found = object.Key, true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("searching for %s: %w", name, err)
	}
	return key, found, nil
}

// Compile-time check that Remote implements bk.Storage.
var _ bk.Storage = (*Remote)(nil)
