// Package dedup decides which log records fetched from an overlapping
// poll window are genuinely new. It is the only stateful stage of the
// forwarding pipeline: per source it remembers a bounded set of record
// signatures and prunes oldest-first when the cap is crossed.
package dedup

import (
	"encoding/binary"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/railscope/railscope/internal/railway"
)

// Source identifies one log stream. A composite key rather than a
// joined string, so project or service names containing a separator
// cannot collide.
type Source struct {
	Project string
	Service string
}

// Signature is the reduced identity of a log record: a BLAKE3 digest
// of the raw timestamp and a fixed-length message prefix. The
// fixed-size digest bounds per-entry memory regardless of line length.
type Signature [32]byte

// sourceWindow is the per-source seen state. The order slice holds
// signatures oldest-first; a signature enters it exactly once because
// the set check precedes every insert.
type sourceWindow struct {
	seen  map[Signature]struct{}
	order []Signature
}

// Window classifies fetched records as new or already seen. It owns
// all dedup state; there is no external mutation path. Window is not
// safe for concurrent use; the poll scheduler serializes access.
type Window struct {
	cfg     Config
	sources map[Source]*sourceWindow
}

// NewWindow creates a new Window. Config defaults are applied
// automatically. A cap below 1 reverts to the default; a prune target
// at or above the cap is clamped to half the cap, so prune stays in
// range for any input.
func NewWindow(cfg Config) *Window {
	cfg.ApplyDefaults()
	if cfg.MaxSignatures < 1 {
		cfg.MaxSignatures = DefaultMaxSignatures
	}
	if cfg.PruneTarget < 1 || cfg.PruneTarget >= cfg.MaxSignatures {
		cfg.PruneTarget = cfg.MaxSignatures / 2
	}
	return &Window{
		cfg:     cfg,
		sources: make(map[Source]*sourceWindow),
	}
}

// Classify returns the subsequence of records not yet seen for the
// source, in fetch order, and marks them seen. Records whose message
// normalizes to empty are dropped before signature computation. A
// never-seen source classifies every record as new: after a restart
// the window is empty and recent history is replayed, which is the
// intended at-least-once bias.
//
// Classification is final: a record stays seen whether or not its
// batch is later delivered.
func (w *Window) Classify(src Source, records []railway.LogRecord) []railway.LogRecord {
	sw := w.sources[src]
	if sw == nil {
		sw = &sourceWindow{seen: make(map[Signature]struct{})}
		w.sources[src] = sw
	}

	var fresh []railway.LogRecord
	for _, r := range records {
		if normalizesToEmpty(r.Message) {
			continue
		}
		sig := w.signature(r)
		if _, ok := sw.seen[sig]; ok {
			continue
		}
		sw.seen[sig] = struct{}{}
		sw.order = append(sw.order, sig)
		fresh = append(fresh, r)
	}

	if len(sw.seen) > w.cfg.MaxSignatures {
		sw.prune(w.cfg.PruneTarget)
	}
	return fresh
}

// signature hashes the raw timestamp and message prefix. The timestamp
// is length-framed so (timestamp, prefix) pairs cannot collide across
// the field boundary.
func (w *Window) signature(r railway.LogRecord) Signature {
	msg := r.Message
	if len(msg) > w.cfg.MessagePrefixLen {
		msg = msg[:w.cfg.MessagePrefixLen]
	}
	buf := make([]byte, 0, binary.MaxVarintLen64+len(r.Timestamp)+len(msg))
	buf = binary.AppendUvarint(buf, uint64(len(r.Timestamp)))
	buf = append(buf, r.Timestamp...)
	buf = append(buf, msg...)
	return blake3.Sum256(buf)
}

// prune rebuilds the seen set from the newest target insertions.
// Insertion order approximates recency well enough here: a signature
// is inserted at most once, so the tail of order is always the most
// recently first-seen records.
func (sw *sourceWindow) prune(target int) {
	kept := sw.order[len(sw.order)-target:]
	seen := make(map[Signature]struct{}, target)
	for _, sig := range kept {
		seen[sig] = struct{}{}
	}
	sw.seen = seen
	sw.order = append(make([]Signature, 0, target), kept...)
}

// normalizesToEmpty reports whether a message is empty once NUL bytes
// are stripped and surrounding whitespace trimmed. Such records carry
// nothing forwardable and must never occupy window capacity.
func normalizesToEmpty(msg string) bool {
	return strings.TrimSpace(strings.ReplaceAll(msg, "\x00", "")) == ""
}
