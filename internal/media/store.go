package media

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Store.Delete for a missing object.
var ErrObjectNotFound = errors.New("object not found")

// Object describes bytes handed to a Store.
type Object struct {
	Name        string
	ContentType string
	Category    Category
	Size        int64
}

// Store is a media backend. Put returns the public URL of the stored object.
type Store interface {
	Put(ctx context.Context, obj Object, body io.Reader) (string, error)
	Delete(ctx context.Context, name string) error
	Name() string
}
