package earmark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// The lease is advisory: it lets other members of a shared space see who
// has unsaved edits, it never blocks anything. It is held and
// refreshed only while the pending queue contains user edits; repair-only
// queues do not count.

const (
	leaseTTL     = 5 * time.Minute
	leaseRefresh = time.Minute
)

// LeaseRecord is the content of the lease object: who is editing, from
// which device, and until when the claim stands.
type LeaseRecord struct {
	HolderLabel string    `json:"holderLabel"`
	DeviceID    string    `json:"deviceId"`
	LeaseUntil  time.Time `json:"leaseUntil"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Expired reports whether the lease is past its TTL.
func (l LeaseRecord) Expired(now time.Time) bool { return now.After(l.LeaseUntil) }

type leaseKeeper struct {
	store  RemoteStore
	log    zerolog.Logger
	holder string
	device string

	mu      sync.Mutex
	dirty   bool
	held    bool
	tag     string
	stop    chan struct{}
	stopped chan struct{}
}

func newLeaseKeeper(store RemoteStore, log zerolog.Logger, holder, device string) *leaseKeeper {
	if device == "" {
		device = uuid.NewString()
	}
	return &leaseKeeper{store: store, log: log, holder: holder, device: device}
}

// markDirty records that unsaved user edits exist and starts the refresh
// loop. The lease itself is acquired on that goroutine, so a mutation never
// waits on the store.
func (k *leaseKeeper) markDirty() {
	if k == nil {
		return
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dirty {
		return
	}
	k.dirty = true
	k.stop = make(chan struct{})
	k.stopped = make(chan struct{})
	go k.loop(k.stop, k.stopped)
}

// markClean records that the pending queue drained; the refresh loop is
// stopped and the lease released.
func (k *leaseKeeper) markClean() {
	if k == nil {
		return
	}
	k.mu.Lock()
	if !k.dirty {
		k.mu.Unlock()
		return
	}
	k.dirty = false
	stop, stopped := k.stop, k.stopped
	k.mu.Unlock()

	close(stop)
	<-stopped

	k.mu.Lock()
	defer k.mu.Unlock()
	k.releaseLocked(context.Background())
}

// close releases the lease if held and stops the refresh loop.
func (k *leaseKeeper) close(ctx context.Context) error {
	if k == nil {
		return nil
	}
	k.mu.Lock()
	if k.dirty {
		k.dirty = false
		stop, stopped := k.stop, k.stopped
		k.mu.Unlock()
		close(stop)
		<-stopped
		k.mu.Lock()
	}
	defer k.mu.Unlock()
	k.releaseLocked(ctx)
	return nil
}

func (k *leaseKeeper) loop(stop, stopped chan struct{}) {
	defer close(stopped)
	k.mu.Lock()
	if k.dirty {
		k.refreshLocked(context.Background())
	}
	k.mu.Unlock()
	ticker := time.NewTicker(leaseRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			k.mu.Lock()
			if k.dirty {
				k.refreshLocked(context.Background())
			}
			k.mu.Unlock()
		}
	}
}

// refreshLocked writes the lease object, conditionally on the tag observed
// last time. Failures are logged, never surfaced: the lease is a courtesy.
func (k *leaseKeeper) refreshLocked(ctx context.Context) {
	now := time.Now().UTC()
	tag := k.tag
	if !k.held {
		file, err := k.store.ReadFile(ctx, leaseObject)
		switch {
		case err == nil:
			var rec LeaseRecord
			if jerr := json.Unmarshal(file.Data, &rec); jerr == nil {
				if rec.DeviceID != k.device && !rec.Expired(now) {
					k.log.Warn().Str("holder", rec.HolderLabel).Str("device", rec.DeviceID).
						Msg("space lease held elsewhere, editing anyway")
				}
			}
			tag = file.VersionTag
		case errors.Is(err, ErrNotFound):
			tag = IfAbsent
		default:
			k.log.Debug().Err(err).Msg("lease read failed")
			return
		}
	}

	rec := LeaseRecord{HolderLabel: k.holder, DeviceID: k.device, LeaseUntil: now.Add(leaseTTL), UpdatedAt: now}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return
	}
	newTag, err := k.store.WriteFile(ctx, leaseObject, buf.Bytes(), tag)
	if err != nil {
		k.log.Debug().Err(err).Msg("lease refresh failed")
		k.held = false
		return
	}
	k.held = true
	k.tag = newTag
}

// releaseLocked deletes the lease object if we hold it.
func (k *leaseKeeper) releaseLocked(ctx context.Context) {
	if !k.held {
		return
	}
	if err := k.store.DeleteFile(ctx, leaseObject); err != nil {
		k.log.Debug().Err(err).Msg("lease release failed")
	}
	k.held = false
	k.tag = ""
}
