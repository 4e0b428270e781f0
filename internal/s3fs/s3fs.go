// Package s3fs implements an io/fs.FS backed by an S3 compatible object store.
package s3fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned when the circuit breaker is open.
var ErrUnavailable = errors.New("object store unavailable")

// An FS is a read-only file system of the objects under a prefix in a bucket.
// Requests are guarded by a circuit breaker: after repeated failures further
// requests fail fast with ErrUnavailable until the breaker half-opens. Missing
// objects are not failures.
type FS struct {
	ctx         context.Context
	client      *minio.Client
	bucket      string
	prefix      string
	maxFailures uint32
	openTimeout time.Duration
	breaker     *gobreaker.CircuitBreaker
}

// An Option sets an option on an FS.
type Option func(*FS)

// WithContext sets the context used for requests.
func WithContext(ctx context.Context) Option {
	return func(f *FS) {
		f.ctx = ctx
	}
}

// WithMaxFailures sets the number of consecutive failures that open the
// circuit breaker.
func WithMaxFailures(maxFailures uint32) Option {
	return func(f *FS) {
		f.maxFailures = maxFailures
	}
}

// WithOpenTimeout sets how long the circuit breaker stays open.
func WithOpenTimeout(openTimeout time.Duration) Option {
	return func(f *FS) {
		f.openTimeout = openTimeout
	}
}

// New returns a new FS.
func New(client *minio.Client, bucket, prefix string, options ...Option) *FS {
	f := &FS{
		ctx:         context.Background(),
		client:      client,
		bucket:      bucket,
		prefix:      strings.Trim(prefix, "/"),
		maxFailures: 5,
		openTimeout: time.Minute,
	}
	for _, option := range options {
		option(f)
	}
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "s3:" + bucket,
		MaxRequests: 1,
		Timeout:     f.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= f.maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isNotExist(err)
		},
	})
	return f
}

// ParseURL splits an s3://bucket/prefix URL into its bucket and prefix.
func ParseURL(rawURL string) (bucket, prefix string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%s: not an s3://bucket/prefix URL", rawURL)
	}
	return u.Host, strings.Trim(u.Path, "/"), nil
}

// IsURL returns if s is an s3:// URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// Open implements fs.FS.Open.
func (f *FS) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) || name == "." {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	key := f.key(name)

	result, err := f.breaker.Execute(func() (any, error) {
		return f.client.StatObject(f.ctx, f.bucket, key, minio.StatObjectOptions{})
	})
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: mapError(err)}
	}
	objectInfo := result.(minio.ObjectInfo)

	object, err := f.client.GetObject(f.ctx, f.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: mapError(err)}
	}
	return &file{
		object: object,
		info: &fileInfo{
			name:       path.Base(name),
			objectInfo: objectInfo,
		},
	}, nil
}

// ReadDir implements fs.ReadDirFS.ReadDir.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	prefix := ""
	if key := f.key(name); key != "" {
		prefix = key + "/"
	}

	result, err := f.breaker.Execute(func() (any, error) {
		var objectInfos []minio.ObjectInfo
		for objectInfo := range f.client.ListObjects(f.ctx, f.bucket, minio.ListObjectsOptions{
			Prefix: prefix,
		}) {
			if objectInfo.Err != nil {
				return nil, objectInfo.Err
			}
			objectInfos = append(objectInfos, objectInfo)
		}
		return objectInfos, nil
	})
	if err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: mapError(err)}
	}

	var dirEntries []fs.DirEntry
	for _, objectInfo := range result.([]minio.ObjectInfo) {
		entryName := strings.TrimPrefix(objectInfo.Key, prefix)
		info := &fileInfo{
			objectInfo: objectInfo,
		}
		if dirName, ok := strings.CutSuffix(entryName, "/"); ok {
			info.name = dirName
			info.dir = true
		} else {
			info.name = entryName
		}
		if info.name == "" {
			continue
		}
		dirEntries = append(dirEntries, fs.FileInfoToDirEntry(info))
	}
	slices.SortFunc(dirEntries, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return dirEntries, nil
}

// State returns the state of the circuit breaker.
func (f *FS) State() gobreaker.State {
	return f.breaker.State()
}

func (f *FS) key(name string) string {
	if name == "." {
		return f.prefix
	}
	if f.prefix == "" {
		return name
	}
	return f.prefix + "/" + name
}

func isNotExist(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	default:
		return false
	}
}

func mapError(err error) error {
	switch {
	case isNotExist(err):
		return fs.ErrNotExist
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

// NewClient returns a new minio client for endpoint.
func NewClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return client, nil
}
