package earmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Syncer orchestrates one space: it loads the remote snapshot, applies
// mutations locally, and saves them back with optimistic concurrency. The
// remote snapshot object is the single source of truth; its version tag
// guards every write, and a lost race discards local changes and reloads.
//
// All methods are safe for concurrent use; mutations and saves serialize on
// one mutex.
type Syncer struct {
	store RemoteStore
	cache SnapshotCache
	auth  Authorizer
	log   zerolog.Logger
	newID func() string
	now   func() time.Time

	mu           sync.Mutex
	space        string
	readOnly     bool
	invalidSpace bool
	activity     Activity
	loaded       bool
	fromCache    bool

	state   *NormalizedState
	version int64
	etag    string // snapshot version tag; IfAbsent for a fresh space

	pending []PendingEvent
	retry   []retryChunk
	open    *openChunk
	next    int64 // id for the next new chunk

	lease *leaseKeeper
}

// Activity is what the Syncer is currently doing, for UI surfaces.
type Activity string

const (
	ActivityIdle    Activity = "idle"
	ActivityLoading Activity = "loading"
	ActivitySaving  Activity = "saving"
)

// SaveReason classifies the outcome of a Save call.
type SaveReason string

const (
	// SaveSaved: everything was written.
	SaveSaved SaveReason = "saved"
	// SaveNoChanges: nothing was pending.
	SaveNoChanges SaveReason = "no_changes"
	// SaveNoSnapshot: Load has not succeeded yet.
	SaveNoSnapshot SaveReason = "no_snapshot"
	// SaveReadOnly: the space is read-only for this user.
	SaveReadOnly SaveReason = "read_only"
	// SaveInvalidSpace: the space does not exist for this user.
	SaveInvalidSpace SaveReason = "invalid_space"
	// SaveMissingEtag: the state came from the offline cache, so there is no
	// version tag to write against. A fresh online Load is required first.
	SaveMissingEtag SaveReason = "missing_etag"
	// SaveOffline: the snapshot write never reached the store. Nothing was
	// written; the pending queue is kept.
	SaveOffline SaveReason = "offline"
	// SaveUnauthenticated: the store rejected the credentials.
	SaveUnauthenticated SaveReason = "unauthenticated"
	// SaveConflict: someone else saved first. Local changes were discarded
	// and the state reloaded.
	SaveConflict SaveReason = "conflict"
	// SavePartialFailure: the snapshot was written but at least one event
	// chunk was not. The chunks are queued and retried on the next save.
	SavePartialFailure SaveReason = "partial_failure"
	// SaveError: an unclassified failure. Nothing was discarded.
	SaveError SaveReason = "error"
)

// SaveResult reports a Save outcome. Saved is true when the snapshot write
// went through, even if chunks remain queued.
type SaveResult struct {
	Reason SaveReason
	Saved  bool
}

// retryChunk is a chunk whose write failed after the snapshot went through.
// The encoded bytes are kept verbatim and retried on the next save.
type retryChunk struct {
	id   int64
	data []byte
	tag  string // version tag to write against; IfAbsent for a new object
}

// openChunk is the latest chunk when it is not yet full. New events are
// appended to it and the object is rewritten in place until it fills up.
type openChunk struct {
	chunk *EventChunk
	tag   string
}

const (
	snapshotObject = "snapshot.json"
	chunkPrefix    = "events/"
	leaseObject    = "lease.json"

	// undoWindow bounds how long after a spend it can still be undone.
	undoWindow = 24 * time.Hour
)

// Errors returned by Syncer methods.
var (
	ErrNotLoaded     = errors.New("space not loaded")
	ErrSpaceNotFound = errors.New("space not found")
	ErrReadOnlySpace = errors.New("space is read-only")
	ErrUndoExpired   = errors.New("spend is older than the undo window")
)

// NewSyncer creates a Syncer for one space. The cache may be nil to disable
// offline reads. Holder and device identify this writer on the advisory
// lease, so other members of a shared space can see who is editing.
func NewSyncer(space, holder, device string, store RemoteStore, cache SnapshotCache, auth Authorizer, log zerolog.Logger) *Syncer {
	l := log.With().Str("space", space).Logger()
	return &Syncer{
		store:    store,
		cache:    cache,
		auth:     auth,
		log:      l,
		newID:    newID,
		now:      now,
		space:    space,
		activity: ActivityIdle,
		lease:    newLeaseKeeper(store, l, holder, device),
	}
}

// metaNow mints the EventMeta for one mutation: the wall clock at the time
// of the call, fresh ids.
func (s *Syncer) metaNow() EventMeta {
	return EventMeta{Now: s.now(), NewID: s.newID}
}

// Status is a point-in-time view of the Syncer for status surfaces.
type Status struct {
	Space    string
	Activity Activity
	Loaded   bool
	Offline  bool
	ReadOnly bool
	Version  int64
	Pending  int
	Queued   int
}

// Status reports the Syncer's current condition.
func (s *Syncer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Space:    s.space,
		Activity: s.activity,
		Loaded:   s.loaded,
		Offline:  s.fromCache,
		ReadOnly: s.readOnly,
		Version:  s.version,
		Pending:  len(s.pending),
		Queued:   len(s.retry),
	}
}

// State returns the current state. The returned value must be treated as
// read-only; all writes go through the mutation methods.
func (s *Syncer) State() (*NormalizedState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	return s.state, nil
}

// Load fetches the space's snapshot, repairs it, and primes the chunk
// cursor. When the store is unreachable and a cached snapshot exists, the
// Syncer comes up offline: readable, not savable until a fresh online Load.
func (s *Syncer) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = ActivityLoading
	defer func() { s.activity = ActivityIdle }()
	return s.loadLocked(ctx)
}

func (s *Syncer) loadLocked(ctx context.Context) error {
	found, readOnly, err := s.auth.Authorize(ctx, s.space)
	if err != nil {
		return fmt.Errorf("authorizing space %q: %w", s.space, err)
	}
	if !found {
		s.invalidSpace = true
		return fmt.Errorf("%w: %q", ErrSpaceNotFound, s.space)
	}
	s.invalidSpace = false
	s.readOnly = readOnly

	var snap *Snapshot
	fromCache := false
	etag := IfAbsent
	file, err := s.store.ReadFile(ctx, snapshotObject)
	switch {
	case err == nil:
		snap, err = DecodeSnapshot(bytes.NewReader(file.Data))
		if err != nil {
			return fmt.Errorf("loading space %q: %w", s.space, err)
		}
		etag = file.VersionTag
		if s.cache != nil {
			if err := s.cache.Put(s.space, file.Data); err != nil {
				s.log.Warn().Err(err).Msg("caching snapshot failed")
			}
		}
	case errors.Is(err, ErrNotFound):
		// Fresh space: start empty, first save creates the object.
		snap = &Snapshot{Version: 0, State: NewState()}
	case errors.Is(err, ErrNetwork) && s.cache != nil:
		data, ok := s.cache.Get(s.space)
		if !ok {
			return fmt.Errorf("loading space %q: %w", s.space, err)
		}
		snap, err = DecodeSnapshot(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("loading cached space %q: %w", s.space, err)
		}
		fromCache = true
		s.log.Warn().Msg("store unreachable, loaded snapshot from cache")
	default:
		return fmt.Errorf("loading space %q: %w", s.space, err)
	}

	// Every load is followed by a repair pass; a snapshot written by an
	// older or buggy writer must not poison the invariants.
	repaired := Repair(snap.State, s.metaNow())
	for _, w := range repaired.Warnings {
		s.log.Warn().Str("repair", w).Msg("integrity repair")
	}

	s.state = repaired.State
	s.version = snap.Version
	s.etag = etag
	s.loaded = true
	s.fromCache = fromCache
	s.pending = nil
	s.open = nil
	s.next = 0
	if repaired.Changed {
		s.pending = append(s.pending, repaired.Events...)
	}

	if !fromCache {
		if err := s.scanChunksLocked(ctx); err != nil {
			// Not fatal: the state is usable, but saving would misplace
			// events, so treat the session as offline for writes.
			s.log.Warn().Err(err).Msg("scanning chunks failed")
			s.fromCache = true
		}
	}
	s.log.Info().Int64("version", s.version).Bool("offline", s.fromCache).Msg("space loaded")
	return nil
}

// scanChunksLocked finds the last chunk and decides where the next events
// go: appended to it while it has room, or into a new chunk.
func (s *Syncer) scanChunksLocked(ctx context.Context) error {
	names, err := s.store.ListFiles(ctx, chunkPrefix)
	if err != nil {
		return err
	}
	last := int64(-1)
	for _, name := range names {
		id, err := ParseChunkName(name[len(chunkPrefix):])
		if err != nil {
			continue
		}
		if id > last {
			last = id
		}
	}
	s.next = last + 1
	s.open = nil
	// Chunks queued for retry after a partial failure are not on the remote,
	// but their ids are taken; reusing one would lose its events when the
	// retry write is dropped as already landed. The newest queued chunk is
	// sealed, so nothing gets appended to a stale remote copy of it either.
	sealed := false
	for _, rc := range s.retry {
		if rc.id >= last {
			sealed = true
		}
		if rc.id >= s.next {
			s.next = rc.id + 1
		}
	}
	if last < 0 || sealed {
		return nil
	}
	file, err := s.store.ReadFile(ctx, chunkPrefix+ChunkName(last))
	if err != nil {
		return err
	}
	chunk, err := DecodeEventChunk(bytes.NewReader(file.Data))
	if err != nil {
		return err
	}
	if !chunk.Full() {
		s.open = &openChunk{chunk: chunk, tag: file.VersionTag}
	}
	return nil
}

// Save pushes the local state to the store: first the snapshot under its
// version tag, then any chunks left over from earlier partial failures, then
// the new events. Only the snapshot write can conflict; once it lands the
// save counts as done even if chunk writes are deferred.
func (s *Syncer) Save(ctx context.Context) (SaveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.invalidSpace:
		return SaveResult{Reason: SaveInvalidSpace}, nil
	case !s.loaded:
		return SaveResult{Reason: SaveNoSnapshot}, nil
	case s.readOnly:
		return SaveResult{Reason: SaveReadOnly}, nil
	case s.fromCache:
		return SaveResult{Reason: SaveMissingEtag}, nil
	case len(s.pending) == 0 && len(s.retry) == 0:
		return SaveResult{Reason: SaveNoChanges}, nil
	}
	s.activity = ActivitySaving
	defer func() { s.activity = ActivityIdle }()

	version := s.version
	if len(s.pending) > 0 {
		version++
	}
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, &Snapshot{Version: version, State: s.state, UpdatedAt: s.now()}); err != nil {
		return SaveResult{Reason: SaveError}, err
	}
	data := buf.Bytes()

	tag, err := s.store.WriteFile(ctx, snapshotObject, data, s.etag)
	switch {
	case err == nil:
	case errors.Is(err, ErrPreconditionFailed):
		// Someone else saved first. Local changes are discarded, not merged.
		s.log.Warn().Msg("snapshot conflict, discarding local changes and reloading")
		if lerr := s.loadLocked(ctx); lerr != nil {
			return SaveResult{Reason: SaveConflict}, lerr
		}
		return SaveResult{Reason: SaveConflict}, nil
	case errors.Is(err, ErrNetwork), errors.Is(err, ErrRateLimited):
		return SaveResult{Reason: SaveOffline}, nil
	case errors.Is(err, ErrUnauthorized):
		return SaveResult{Reason: SaveUnauthenticated}, nil
	case errors.Is(err, ErrForbidden):
		return SaveResult{Reason: SaveReadOnly}, nil
	default:
		return SaveResult{Reason: SaveError}, err
	}

	s.version = version
	s.etag = tag
	if s.cache != nil {
		if err := s.cache.Put(s.space, data); err != nil {
			s.log.Warn().Err(err).Msg("caching snapshot failed")
		}
	}

	// The snapshot is durable; from here on the save has happened. Events
	// are stamped with the version they produced and packed into chunks.
	stamped := make([]StoredEvent, 0, len(s.pending))
	for _, ev := range s.pending {
		stamped = append(stamped, StoredEvent{PendingEvent: ev, Version: version})
	}
	s.pending = nil
	s.lease.markClean()

	partial := !s.flushRetryLocked(ctx)
	if !s.writeEventsLocked(ctx, stamped) {
		partial = true
	}

	if partial {
		s.log.Warn().Int("queued", len(s.retry)).Msg("saved snapshot, some event chunks deferred")
		return SaveResult{Reason: SavePartialFailure, Saved: true}, nil
	}
	s.log.Info().Int64("version", version).Int("events", len(stamped)).Msg("saved")
	return SaveResult{Reason: SaveSaved, Saved: true}, nil
}

// flushRetryLocked rewrites chunks left over from earlier partial failures,
// byte for byte. Reports whether the queue drained.
func (s *Syncer) flushRetryLocked(ctx context.Context) bool {
	remaining := s.retry[:0]
	ok := true
	for i, rc := range s.retry {
		if !ok {
			remaining = append(remaining, s.retry[i:]...)
			break
		}
		_, err := s.store.WriteFile(ctx, chunkPrefix+ChunkName(rc.id), rc.data, rc.tag)
		switch {
		case err == nil:
		case errors.Is(err, ErrPreconditionFailed):
			// Chunk ids are allocated under the snapshot's version tag, so a
			// tag mismatch means an earlier attempt of ours already landed.
		default:
			s.log.Warn().Err(err).Int64("chunk", rc.id).Msg("chunk retry failed")
			remaining = append(remaining, rc)
			ok = false
		}
	}
	s.retry = remaining
	return ok
}

// writeEventsLocked packs stamped events into chunks and writes them: the
// open chunk is rewritten in place until full, further events open new
// chunks. Failed writes are queued for retry. Reports whether every chunk
// landed.
func (s *Syncer) writeEventsLocked(ctx context.Context, events []StoredEvent) bool {
	ok := true
	for len(events) > 0 {
		if s.open == nil {
			s.open = &openChunk{
				tag: IfAbsent,
				chunk: &EventChunk{Header: ChunkHeader{
					ChunkID:     s.next,
					FromVersion: events[0].Version,
					CreatedAt:   s.now(),
				}},
			}
			s.next++
		}
		oc := s.open
		room := MaxChunkEvents - len(oc.chunk.Events)
		take := min(room, len(events))
		oc.chunk.Events = append(oc.chunk.Events, events[:take]...)
		oc.chunk.Header.ToVersion = oc.chunk.Events[len(oc.chunk.Events)-1].Version
		events = events[take:]

		var buf bytes.Buffer
		if err := EncodeEventChunk(&buf, oc.chunk); err != nil {
			s.log.Error().Err(err).Int64("chunk", oc.chunk.Header.ChunkID).Msg("encoding chunk failed")
			return false
		}
		tag, err := s.store.WriteFile(ctx, chunkPrefix+ChunkName(oc.chunk.Header.ChunkID), buf.Bytes(), oc.tag)
		if err != nil {
			// Seal the chunk and queue its bytes; later events go to fresh
			// chunks so the retry can replay these bytes verbatim.
			s.log.Warn().Err(err).Int64("chunk", oc.chunk.Header.ChunkID).Msg("chunk write failed, queued for retry")
			s.retry = append(s.retry, retryChunk{id: oc.chunk.Header.ChunkID, data: buf.Bytes(), tag: oc.tag})
			s.open = nil
			ok = false
			continue
		}
		oc.tag = tag
		if oc.chunk.Full() {
			s.open = nil
		}
	}
	return ok
}

// apply runs one domain mutation under the lock and absorbs its outcome.
func (s *Syncer) apply(fn func(*NormalizedState, EventMeta) (Mutation, error)) (*AllocationNotice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return nil, ErrNotLoaded
	}
	if s.readOnly {
		return nil, ErrReadOnlySpace
	}
	m, err := fn(s.state, s.metaNow())
	if err != nil {
		return nil, err
	}
	s.state = m.State
	s.pending = append(s.pending, m.Events...)
	for _, ev := range m.Events {
		if !ev.IsRepair() {
			s.lease.markDirty()
			break
		}
	}
	return m.Notice, nil
}

// --- mutation surface ---

func (s *Syncer) CreateAccount(in NewAccount) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.CreateAccount(in, meta)
	})
}

func (s *Syncer) RenameAccount(accountID, name string) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.RenameAccount(accountID, name, meta)
	})
}

func (s *Syncer) DeleteAccount(accountID string) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.DeleteAccount(accountID, meta)
	})
}

func (s *Syncer) CreatePosition(in NewPosition) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.CreatePosition(in, meta)
	})
}

func (s *Syncer) UpdatePosition(in PositionUpdate) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.UpdatePosition(in, meta)
	})
}

func (s *Syncer) DeletePosition(positionID string) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.DeletePosition(positionID, meta)
	})
}

func (s *Syncer) CreateGoal(in NewGoal) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.CreateGoal(in, meta)
	})
}

func (s *Syncer) UpdateGoal(in GoalUpdate) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.UpdateGoal(in, meta)
	})
}

func (s *Syncer) CloseGoal(goalID string) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.CloseGoal(goalID, meta)
	})
}

func (s *Syncer) ReopenGoal(goalID string) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.ReopenGoal(goalID, meta)
	})
}

func (s *Syncer) DeleteGoal(goalID string) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.DeleteGoal(goalID, meta)
	})
}

func (s *Syncer) SetAllocation(goalID, positionID string, amount int64) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.SetAllocation(goalID, positionID, amount, meta)
	})
}

func (s *Syncer) ReduceAllocations(reductions []AllocationReduction) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.ReduceAllocations(reductions, meta)
	})
}

func (s *Syncer) SpendGoal(goalID string, payments map[string]int64) (*AllocationNotice, error) {
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.SpendGoal(goalID, payments, meta)
	})
}

// UndoSpend reverses a spend from its recorded payload. The domain allows an
// undo at any time; the Syncer bounds it to a 24h window, after which the
// spend is final.
func (s *Syncer) UndoSpend(payload GoalSpent) (*AllocationNotice, error) {
	if time.Since(payload.SpentAt) > undoWindow {
		return nil, ErrUndoExpired
	}
	return s.apply(func(st *NormalizedState, meta EventMeta) (Mutation, error) {
		return st.UndoSpend(payload, meta)
	})
}

// --- history ---

// ListChunks implements ChunkSource over the remote store.
func (s *Syncer) ListChunks(ctx context.Context) ([]int64, error) {
	names, err := s.store.ListFiles(ctx, chunkPrefix)
	if err != nil {
		return nil, err
	}
	var ids []int64
	for _, name := range names {
		id, err := ParseChunkName(name[len(chunkPrefix):])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// ReadChunk implements ChunkSource over the remote store.
func (s *Syncer) ReadChunk(ctx context.Context, chunkID int64) (*EventChunk, error) {
	file, err := s.store.ReadFile(ctx, chunkPrefix+ChunkName(chunkID))
	if err != nil {
		return nil, err
	}
	return DecodeEventChunk(bytes.NewReader(file.Data))
}

// LoadHistoryPage returns one page of the space's persisted history.
func (s *Syncer) LoadHistoryPage(ctx context.Context, q HistoryQuery) (HistoryPage, error) {
	return LoadHistoryPage(ctx, s, q)
}

// Close releases the advisory lease, if held.
func (s *Syncer) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lease.close(ctx)
}
