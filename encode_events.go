package earmark

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// This file persists the audit trail. A chunk is one remote JSONL file: the
// first line is the header, every following line is one stored event. Chunk
// ids are dense and increasing; a fully written chunk is never mutated.

// MaxChunkEvents bounds the number of events in one chunk file.
const MaxChunkEvents = 500

// ChunkHeader is the first line of a chunk file.
type ChunkHeader struct {
	ChunkID     int64     `json:"chunkId"`
	FromVersion int64     `json:"fromVersion"`
	ToVersion   int64     `json:"toVersion"`
	CreatedAt   time.Time `json:"createdAt"`
	EventCount  int       `json:"eventCount"`
}

// EventChunk is a bounded run of stored events. Skipped counts records that
// could not be decoded (unknown type or malformed payload); it is not
// persisted.
type EventChunk struct {
	Header  ChunkHeader
	Events  []StoredEvent
	Skipped int
}

// Full reports whether the chunk cannot take any more events.
func (c *EventChunk) Full() bool { return len(c.Events) >= MaxChunkEvents }

// ChunkName returns the remote file name for a chunk id.
func ChunkName(chunkID int64) string {
	return fmt.Sprintf("chunk-%08d.ndjson", chunkID)
}

// ParseChunkName extracts the chunk id from a remote file name.
func ParseChunkName(name string) (int64, error) {
	var id int64
	if _, err := fmt.Sscanf(name, "chunk-%d.ndjson", &id); err != nil {
		return 0, fmt.Errorf("not a chunk file name: %q", name)
	}
	return id, nil
}

// storedEventJSON is the wire envelope of one event line. The payload is a
// tagged union discriminated by the type field.
type storedEventJSON struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"createdAt"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON implements json.Marshaler for StoredEvent.
func (e StoredEvent) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(storedEventJSON{
		ID:        e.ID,
		Type:      e.Type(),
		Version:   e.Version,
		CreatedAt: e.CreatedAt,
		Payload:   payload,
	})
}

// UnmarshalJSON implements json.Unmarshaler for StoredEvent, dispatching the
// payload on the type discriminator and validating its shape.
func (e *StoredEvent) UnmarshalJSON(b []byte) error {
	var env storedEventJSON
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if env.ID == "" {
		return fmt.Errorf("event without id")
	}
	payload, err := decodePayload(env.Type, env.Payload)
	if err != nil {
		return err
	}
	e.ID = env.ID
	e.CreatedAt = env.CreatedAt
	e.Version = env.Version
	e.Payload = payload
	return nil
}

// decodePayload decodes the typed payload for an event type. Unknown types
// are an error; callers that tolerate them (the history reader) skip the
// record instead of trusting its shape.
func decodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case EvAccountCreated:
		p = &AccountCreated{}
	case EvAccountRenamed:
		p = &AccountRenamed{}
	case EvAccountDeleted:
		p = &AccountDeleted{}
	case EvPositionCreated:
		p = &PositionCreated{}
	case EvPositionUpdated:
		p = &PositionUpdated{}
	case EvPositionDeleted:
		p = &PositionDeleted{}
	case EvGoalCreated:
		p = &GoalCreated{}
	case EvGoalUpdated:
		p = &GoalUpdated{}
	case EvGoalClosed:
		p = &GoalClosed{}
	case EvGoalReopened:
		p = &GoalReopened{}
	case EvGoalDeleted:
		p = &GoalDeleted{}
	case EvAllocationSet:
		p = &AllocationSet{}
	case EvAllocationsReduced:
		p = &AllocationsReduced{}
	case EvGoalSpent:
		p = &GoalSpent{}
	case EvSpendUndone:
		p = &SpendUndone{}
	case EvStateRepaired:
		p = &StateRepaired{}
	default:
		return nil, fmt.Errorf("unknown event type %q", t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("malformed %s payload: %w", t, err)
	}
	return deref(p), nil
}

// deref converts the pointer used for unmarshalling back to the value form
// the rest of the package works with.
func deref(p Payload) Payload {
	switch v := p.(type) {
	case *AccountCreated:
		return *v
	case *AccountRenamed:
		return *v
	case *AccountDeleted:
		return *v
	case *PositionCreated:
		return *v
	case *PositionUpdated:
		return *v
	case *PositionDeleted:
		return *v
	case *GoalCreated:
		return *v
	case *GoalUpdated:
		return *v
	case *GoalClosed:
		return *v
	case *GoalReopened:
		return *v
	case *GoalDeleted:
		return *v
	case *AllocationSet:
		return *v
	case *AllocationsReduced:
		return *v
	case *GoalSpent:
		return *v
	case *SpendUndone:
		return *v
	case *StateRepaired:
		return *v
	default:
		return p
	}
}

// EncodeEventChunk writes a chunk as JSONL: header first, one event per
// line. The header's EventCount is taken from the actual event list.
func EncodeEventChunk(w io.Writer, c *EventChunk) error {
	header := c.Header
	header.EventCount = len(c.Events)
	line, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
		return err
	}
	for _, ev := range c.Events {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encoding event %q: %w", ev.ID, err)
		}
		if _, err := fmt.Fprintf(w, "%s\n", line); err != nil {
			return err
		}
	}
	return nil
}

// DecodeEventChunk reads a chunk file back. Event lines that cannot be
// decoded (unknown type, malformed payload) are skipped and counted rather
// than trusted; a malformed header is fatal.
func DecodeEventChunk(r io.Reader) (*EventChunk, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	chunk := &EventChunk{}
	seenHeader := false
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !seenHeader {
			if err := json.Unmarshal(line, &chunk.Header); err != nil {
				return nil, fmt.Errorf("invalid chunk header: %w", err)
			}
			seenHeader = true
			continue
		}
		var ev StoredEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			chunk.Skipped++
			continue
		}
		chunk.Events = append(chunk.Events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if !seenHeader {
		return nil, fmt.Errorf("empty chunk file")
	}
	return chunk, nil
}
