package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cloud.google.com/go/storage"
)

const publicBaseURL = "https://storage.googleapis.com"

// GCSStore writes to the Firebase Cloud Storage bucket and serves objects
// from their public URL.
type GCSStore struct {
	bucket     *storage.BucketHandle
	bucketName string
	open       func(ctx context.Context, obj Object) io.WriteCloser
}

func NewGCSStore(bucket *storage.BucketHandle, bucketName string) *GCSStore {
	s := &GCSStore{bucket: bucket, bucketName: bucketName}
	s.open = s.newWriter
	return s
}

func (s *GCSStore) Name() string { return "storage" }

func (s *GCSStore) newWriter(ctx context.Context, obj Object) io.WriteCloser {
	w := s.bucket.Object(obj.Name).NewWriter(ctx)
	w.ContentType = obj.ContentType
	w.CacheControl = "public, max-age=31536000"
	return w
}

// Put streams body into a new object. Closing the writer commits what was
// copied, so a failed copy cancels the writer's context instead and nothing
// is stored.
func (s *GCSStore) Put(ctx context.Context, obj Object, body io.Reader) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := s.open(ctx, obj)
	if _, err := io.Copy(w, body); err != nil {
		cancel()
		return "", fmt.Errorf("write %s: %w", obj.Name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", obj.Name, err)
	}
	return PublicURL(s.bucketName, obj.Name), nil
}

func (s *GCSStore) Delete(ctx context.Context, name string) error {
	err := s.bucket.Object(name).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return ErrObjectNotFound
	}
	return err
}

// PublicURL is the download URL of a publicly readable object.
func PublicURL(bucket, name string) string {
	return publicBaseURL + "/" + bucket + "/" + (&url.URL{Path: name}).EscapedPath()
}
