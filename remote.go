package earmark

import (
	"context"
	"errors"
	"time"
)

// This file defines the remote blob contract the Syncer is written against.
// The gcs subpackage implements it over Cloud Storage; tests use an
// in-memory fake.

// Sentinel errors a RemoteStore maps transport failures to. The Syncer's
// save and load logic branches on these, never on transport-specific types.
var (
	// ErrNotFound means the object does not exist.
	ErrNotFound = errors.New("remote object not found")
	// ErrPreconditionFailed means a conditional write lost: the object's
	// version tag no longer matches the one the caller read.
	ErrPreconditionFailed = errors.New("remote version tag mismatch")
	// ErrRateLimited means the store asked the caller to back off.
	ErrRateLimited = errors.New("remote rate limited")
	// ErrUnauthorized means the caller carries no valid credentials.
	ErrUnauthorized = errors.New("remote unauthorized")
	// ErrForbidden means the credentials are valid but lack access to the
	// space.
	ErrForbidden = errors.New("remote access forbidden")
	// ErrNetwork means the request never reached the store.
	ErrNetwork = errors.New("remote unreachable")
)

// IfAbsent is the version tag to pass WriteFile when the object must not
// exist yet.
const IfAbsent = ""

// RemoteFile is one object read from the store, with the opaque version tag
// to use for a later conditional write.
type RemoteFile struct {
	Data       []byte
	VersionTag string
	UpdatedAt  time.Time
}

// RemoteStore is a versioned blob store scoped to one space. Object names
// are relative to the space ("snapshot.json", "events/chunk-00000000.ndjson").
//
// WriteFile is conditional: the write succeeds only if the object's current
// version tag equals ifTag (IfAbsent demands the object not exist) and
// returns the new tag. A lost race surfaces as ErrPreconditionFailed.
type RemoteStore interface {
	ReadFile(ctx context.Context, name string) (RemoteFile, error)
	WriteFile(ctx context.Context, name string, data []byte, ifTag string) (string, error)
	DeleteFile(ctx context.Context, name string) error
	ListFiles(ctx context.Context, prefix string) ([]string, error)
}

// SnapshotCache holds the last good snapshot per space for offline reads.
type SnapshotCache interface {
	Get(space string) ([]byte, bool)
	Put(space string, data []byte) error
	Close() error
}

// Authorizer reports whether the current user may read and write a space.
// Space membership is managed out of band; the Syncer only consumes the
// verdict.
type Authorizer interface {
	// Authorize returns whether the space exists for this user and whether
	// the access is read-only.
	Authorize(ctx context.Context, space string) (found, readOnly bool, err error)
}

// StaticAuthorizer authorizes a fixed set of spaces. The zero value
// authorizes nothing.
type StaticAuthorizer struct {
	Writable []string
	ReadOnly []string
}

// Authorize implements Authorizer.
func (a StaticAuthorizer) Authorize(_ context.Context, space string) (bool, bool, error) {
	for _, s := range a.Writable {
		if s == space {
			return true, false, nil
		}
	}
	for _, s := range a.ReadOnly {
		if s == space {
			return true, true, nil
		}
	}
	return false, false, nil
}
