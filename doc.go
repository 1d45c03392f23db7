// Package earmark provides the domain engine and synchronization protocol for
// a small savings tracker: financial accounts hold positions, savings goals
// receive funds earmarked from those positions, and the whole state is kept
// consistent under every edit by pure, side-effect-free mutation functions.
//
// The core functionalities include:
//   - Normalized State Store: an immutable, relational snapshot of accounts,
//     positions, goals and allocations. Every mutation validates its input and
//     returns a brand new state value, never a partially applied one.
//   - Allocation Recalculation: deterministic algorithms that keep allocation
//     totals within position and goal capacity after value changes, target
//     changes, deletions and spend events.
//   - Integrity Repair: a pure, idempotent pass run on every loaded snapshot
//     that closes gaps left by prior bugs or partial failures.
//   - Event Log: an append-only audit trail, chunked into bounded JSONL files,
//     with a paginated reverse-chronological history reader.
//   - Synchronization: an optimistic "draft over last-known-remote" lifecycle
//     against a single-file blob store, with conditional writes, conflict
//     recovery, a partial-failure retry queue and an advisory editing lease.
//
// This package serves as the foundational logic for the `emk` command-line
// tool, ensuring that all operations are consistent and based on a single
// source of truth.
package earmark
