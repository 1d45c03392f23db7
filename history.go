package earmark

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// ChunkSource gives the history reader access to stored chunks without
// binding it to a particular transport. The Syncer adapts the remote store
// to this interface.
type ChunkSource interface {
	// ListChunks returns the ids of all chunks of the space, in any order.
	ListChunks(ctx context.Context) ([]int64, error)
	// ReadChunk fetches and decodes one chunk.
	ReadChunk(ctx context.Context, chunkID int64) (*EventChunk, error)
}

// HistoryFilter restricts a history page to events touching a goal and/or a
// position. Empty fields match everything.
type HistoryFilter struct {
	GoalID     string
	PositionID string
}

// HistoryQuery asks for one page of history. Cursor is the opaque
// continuation token of a previous page, empty for the first one.
type HistoryQuery struct {
	Limit  int
	Cursor string
	Filter HistoryFilter
}

// HistoryItem is one stored event plus a short human-readable summary.
type HistoryItem struct {
	Event   StoredEvent
	Summary string
}

// HistoryPage is one page of reverse-chronological history. A non-empty
// NextCursor means there may be more: a page can even be empty with a cursor
// when the per-call chunk scan limit was reached before anything matched.
type HistoryPage struct {
	Items      []HistoryItem
	NextCursor string
}

// historyChunkScanLimit bounds how many chunk files one page call will
// fetch. Filtered scans over a long history stay cheap and resumable.
const historyChunkScanLimit = 5

// historyCursor is the decoded continuation token. EventIndex is the next
// event to examine within the chunk, scanning downward; -1 means "start from
// the end of the chunk".
type historyCursor struct {
	ChunkID    int64 `json:"chunkId"`
	EventIndex int   `json:"eventIndex"`
}

func encodeCursor(c historyCursor) string {
	b, _ := json.Marshal(c)
	return string(b)
}

func decodeCursor(s string) (historyCursor, error) {
	var c historyCursor
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return c, fmt.Errorf("invalid history cursor: %w", err)
	}
	return c, nil
}

// LoadHistoryPage reconstructs one page of human-readable history from the
// chunked log, newest first, without loading the whole log.
func LoadHistoryPage(ctx context.Context, src ChunkSource, q HistoryQuery) (HistoryPage, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	ids, err := src.ListChunks(ctx)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("listing chunks: %w", err)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	start := 0
	startEvent := -1
	if q.Cursor != "" {
		cur, err := decodeCursor(q.Cursor)
		if err != nil {
			return HistoryPage{}, err
		}
		for start < len(ids) && ids[start] > cur.ChunkID {
			start++
		}
		if start < len(ids) && ids[start] == cur.ChunkID {
			startEvent = cur.EventIndex
		}
	}

	var page HistoryPage
	scanned := 0
	for i := start; i < len(ids); i++ {
		if scanned == historyChunkScanLimit {
			page.NextCursor = encodeCursor(historyCursor{ChunkID: ids[i], EventIndex: -1})
			return page, nil
		}
		chunk, err := src.ReadChunk(ctx, ids[i])
		if err != nil {
			// Transient failures leave the page resumable: the caller retries
			// with the same cursor.
			return HistoryPage{}, fmt.Errorf("reading chunk %d: %w", ids[i], err)
		}
		scanned++

		from := len(chunk.Events) - 1
		if i == start && startEvent >= 0 && startEvent < len(chunk.Events) {
			from = startEvent
		}
		for j := from; j >= 0; j-- {
			ev := chunk.Events[j]
			if !eventMatches(ev, q.Filter) {
				continue
			}
			page.Items = append(page.Items, HistoryItem{Event: ev, Summary: Summarize(ev.Payload)})
			if len(page.Items) == limit {
				switch {
				case j > 0:
					page.NextCursor = encodeCursor(historyCursor{ChunkID: ids[i], EventIndex: j - 1})
				case i+1 < len(ids):
					page.NextCursor = encodeCursor(historyCursor{ChunkID: ids[i+1], EventIndex: -1})
				}
				return page, nil
			}
		}
	}
	return page, nil
}

// eventMatches reports whether an event touches the filtered goal and
// position.
func eventMatches(ev StoredEvent, f HistoryFilter) bool {
	if f.GoalID == "" && f.PositionID == "" {
		return true
	}
	goals, positions := payloadRefs(ev.Payload)
	if f.GoalID != "" && !contains(goals, f.GoalID) {
		return false
	}
	if f.PositionID != "" && !contains(positions, f.PositionID) {
		return false
	}
	return true
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// payloadRefs extracts the goal and position ids an event touches.
func payloadRefs(p Payload) (goals, positions []string) {
	switch v := p.(type) {
	case PositionCreated:
		return nil, []string{v.PositionID}
	case PositionUpdated:
		return nil, []string{v.PositionID}
	case PositionDeleted:
		return nil, []string{v.PositionID}
	case GoalCreated:
		return []string{v.GoalID}, nil
	case GoalUpdated:
		return []string{v.GoalID}, nil
	case GoalClosed:
		return []string{v.GoalID}, nil
	case GoalReopened:
		return []string{v.GoalID}, nil
	case GoalDeleted:
		return []string{v.GoalID}, nil
	case AllocationSet:
		return []string{v.GoalID}, []string{v.PositionID}
	case AllocationsReduced:
		for _, c := range v.Changes {
			goals = append(goals, c.GoalID)
			positions = append(positions, c.PositionID)
		}
		return goals, positions
	case GoalSpent:
		for _, d := range v.Payments {
			positions = append(positions, d.PositionID)
		}
		return []string{v.GoalID}, positions
	case SpendUndone:
		return []string{v.GoalID}, nil
	default:
		return nil, nil
	}
}

// Summarize renders a one-line human-readable description of an event
// payload.
func Summarize(p Payload) string {
	switch v := p.(type) {
	case AccountCreated:
		return fmt.Sprintf("created %s account %q", v.Scope, v.Name)
	case AccountRenamed:
		return fmt.Sprintf("renamed account %q to %q", v.From, v.To)
	case AccountDeleted:
		return fmt.Sprintf("deleted account %q with %d positions", v.Name, v.RemovedPositions)
	case PositionCreated:
		return fmt.Sprintf("added %s position %q worth %d", v.AssetType, v.Label, v.MarketValue)
	case PositionUpdated:
		if v.OldValue != v.NewValue {
			return fmt.Sprintf("updated position %q value from %d to %d", v.Label, v.OldValue, v.NewValue)
		}
		return fmt.Sprintf("updated position %q", v.Label)
	case PositionDeleted:
		return fmt.Sprintf("deleted position %q", v.Label)
	case GoalCreated:
		return fmt.Sprintf("created goal %q targeting %d", v.Name, v.Target)
	case GoalUpdated:
		if v.OldTarget != v.NewTarget {
			return fmt.Sprintf("updated goal %q target from %d to %d", v.Name, v.OldTarget, v.NewTarget)
		}
		return fmt.Sprintf("updated goal %q", v.Name)
	case GoalClosed:
		return "closed goal"
	case GoalReopened:
		return fmt.Sprintf("reopened goal at priority %d", v.Priority)
	case GoalDeleted:
		return fmt.Sprintf("deleted goal %q", v.Name)
	case AllocationSet:
		switch {
		case v.After == 0:
			return fmt.Sprintf("removed the allocation of %d", v.Before)
		case v.Before == 0:
			return fmt.Sprintf("allocated %d", v.After)
		default:
			return fmt.Sprintf("changed an allocation from %d to %d", v.Before, v.After)
		}
	case AllocationsReduced:
		return fmt.Sprintf("reduced %d allocations (%s)", len(v.Changes), v.Reason)
	case GoalSpent:
		var total int64
		for _, d := range v.Payments {
			total += d.Amount
		}
		return fmt.Sprintf("spent goal for %d across %d positions", total, len(v.Payments))
	case SpendUndone:
		return "undid a spend"
	case StateRepaired:
		return fmt.Sprintf("repaired state: %d dropped, %d reduced allocations",
			v.DroppedAllocations, v.ReducedAllocations)
	default:
		return string(p.Kind())
	}
}
