// Package gcs implements the remote store over a Google Cloud Storage
// bucket. One space is one object prefix; the object generation number
// serves as the version tag for conditional writes.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/etnz/earmark"
)

// Store is an earmark.RemoteStore over one bucket prefix.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewStore opens a store for one space. Credentials follow the usual client
// options; pass option.WithCredentialsFile for a service account key.
func NewStore(ctx context.Context, bucket, space string, opts ...option.ClientOption) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	if space == "" {
		return nil, fmt.Errorf("space must not be empty")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Store{
		client: client,
		bucket: bucket,
		prefix: "spaces/" + space + "/",
	}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) object(name string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.prefix + name)
}

// ReadFile implements earmark.RemoteStore.
func (s *Store) ReadFile(ctx context.Context, name string) (earmark.RemoteFile, error) {
	r, err := s.object(name).NewReader(ctx)
	if err != nil {
		return earmark.RemoteFile{}, mapErr(err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return earmark.RemoteFile{}, mapErr(err)
	}
	return earmark.RemoteFile{
		Data:       data,
		VersionTag: strconv.FormatInt(r.Attrs.Generation, 10),
		UpdatedAt:  r.Attrs.LastModified,
	}, nil
}

// WriteFile implements earmark.RemoteStore. The tag is the object generation
// the caller read; earmark.IfAbsent demands the object not exist yet. Either
// way the write is atomic: it lands fully or not at all.
func (s *Store) WriteFile(ctx context.Context, name string, data []byte, ifTag string) (string, error) {
	obj := s.object(name)
	if ifTag == earmark.IfAbsent {
		obj = obj.If(storage.Conditions{DoesNotExist: true})
	} else {
		gen, err := strconv.ParseInt(ifTag, 10, 64)
		if err != nil {
			return "", fmt.Errorf("invalid version tag %q: %w", ifTag, err)
		}
		obj = obj.If(storage.Conditions{GenerationMatch: gen})
	}

	w := obj.NewWriter(ctx)
	w.ContentType = contentType(name)
	w.CacheControl = "no-cache, no-store, must-revalidate"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return "", mapErr(err)
	}
	if err := w.Close(); err != nil {
		return "", mapErr(err)
	}
	return strconv.FormatInt(w.Attrs().Generation, 10), nil
}

// DeleteFile implements earmark.RemoteStore. Deleting a missing object is
// not an error.
func (s *Store) DeleteFile(ctx context.Context, name string) error {
	err := s.object(name).Delete(ctx)
	if err == nil || errors.Is(mapErr(err), earmark.ErrNotFound) {
		return nil
	}
	return mapErr(err)
}

// ListFiles implements earmark.RemoteStore. Names are returned relative to
// the space, with the given prefix intact.
func (s *Store) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix + prefix})
	var names []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return names, nil
		}
		if err != nil {
			return nil, mapErr(err)
		}
		names = append(names, strings.TrimPrefix(attrs.Name, s.prefix))
	}
}

func contentType(name string) string {
	if strings.HasSuffix(name, ".ndjson") {
		return "application/x-ndjson"
	}
	return "application/json"
}

// mapErr translates transport failures into the sentinel errors the sync
// layer branches on.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrObjectNotExist), errors.Is(err, storage.ErrBucketNotExist):
		return fmt.Errorf("%w: %v", earmark.ErrNotFound, err)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 404:
			return fmt.Errorf("%w: %v", earmark.ErrNotFound, err)
		case 412:
			return fmt.Errorf("%w: %v", earmark.ErrPreconditionFailed, err)
		case 401:
			return fmt.Errorf("%w: %v", earmark.ErrUnauthorized, err)
		case 403:
			return fmt.Errorf("%w: %v", earmark.ErrForbidden, err)
		case 429:
			return fmt.Errorf("%w: %v", earmark.ErrRateLimited, err)
		}
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", earmark.ErrNetwork, err)
	}
	return err
}
