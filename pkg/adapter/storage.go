package adapter

import (
	"context"
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned by Get when the key does not exist
var ErrObjectNotFound = goerr.New("object not found")

// Storage is a flat key-value store for image files. Keys are plain file names; writing
// an existing key replaces it.
type Storage interface {
	// Put returns a writer that stores the object when closed
	Put(ctx context.Context, key string) (io.WriteCloser, error)
	// Get opens the object for reading
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// List returns keys starting with prefix in lexical order
	List(ctx context.Context, prefix string) ([]string, error)
	// Locate returns a human readable location of the object
	Locate(key string) string
}

// storageClient implements Storage interface using Cloud Storage
type storageClient struct {
	bucketName string
	prefix     string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client. Objects are stored under prefix, which
// lets several logical stores share one bucket.
func NewStorage(ctx context.Context, bucketName, prefix string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &storageClient{
		bucketName: bucketName,
		prefix:     prefix,
		client:     client,
	}, nil
}

func (s *storageClient) objectName(key string) string {
	return s.prefix + key
}

func (s *storageClient) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.objectName(key))
	writer := obj.NewWriter(ctx)
	if strings.HasSuffix(key, ".jpg") {
		writer.ContentType = "image/jpeg"
	}
	return writer, nil
}

func (s *storageClient) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	bucket := s.client.Bucket(s.bucketName)
	obj := bucket.Object(s.objectName(key))
	reader, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(ErrObjectNotFound, "object does not exist", goerr.V("key", key))
		}
		return nil, goerr.Wrap(err, "failed to read from storage", goerr.Value("key", key))
	}

	return reader, nil
}

func (s *storageClient) List(ctx context.Context, prefix string) ([]string, error) {
	bucket := s.client.Bucket(s.bucketName)
	it := bucket.Objects(ctx, &storage.Query{Prefix: s.objectName(prefix)})

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("prefix", prefix))
		}

		key := strings.TrimPrefix(attrs.Name, s.prefix)
		// Flat store: ignore anything in a nested "directory"
		if key == "" || strings.Contains(key, "/") {
			continue
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	return keys, nil
}

func (s *storageClient) Locate(key string) string {
	return "gs://" + path.Join(s.bucketName, s.objectName(key))
}
