// Package loki converts classified log records into Loki's JSON push
// format and delivers them. Delivery is fire-and-forget per batch: a
// failed push is reported and dropped, never retried, because the
// dedup window has already marked the records seen.
package loki

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/railscope/railscope/internal/railway"
)

// PushRequest is the Loki push payload:
// {"streams":[{"stream":{...labels},"values":[["<ns>","line"],...]}]}
type PushRequest struct {
	Streams []Stream `json:"streams"`
}

// Stream is one labelled value sequence. Values pair a decimal
// nanosecond timestamp string with a log line.
type Stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

// BuildStream converts records into one labelled stream. It returns
// false when no stream should be sent: empty input, or every message
// cleaned to nothing. Unparsable timestamps never drop a record; the
// value is stamped with the current wall clock instead.
func BuildStream(records []railway.LogRecord, labels map[string]string) (Stream, bool) {
	return buildStream(records, labels, time.Now)
}

func buildStream(records []railway.LogRecord, labels map[string]string, now func() time.Time) (Stream, bool) {
	values := make([][2]string, 0, len(records))
	for _, r := range records {
		msg := cleanMessage(r.Message)
		if msg == "" {
			continue
		}
		values = append(values, [2]string{epochNanos(r.Timestamp, now), msg})
	}
	if len(values) == 0 {
		return Stream{}, false
	}
	return Stream{Stream: labels, Values: values}, true
}

// cleanMessage strips NUL bytes and trims surrounding whitespace.
func cleanMessage(msg string) string {
	return strings.TrimSpace(strings.ReplaceAll(msg, "\x00", ""))
}

// epochNanos converts a record timestamp to decimal nanoseconds since
// epoch. Accepted inputs: RFC 3339 with or without fractional seconds
// (a trailing Z reads as UTC), and all-digit epoch instants sized by
// digit count: 10 digits are seconds, 13 milliseconds, 19 nanoseconds.
// Anything else substitutes the current wall clock.
func epochNanos(ts string, now func() time.Time) string {
	s := strings.TrimSpace(ts)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return strconv.FormatInt(t.UnixNano(), 10)
	}
	if ns, ok := epochValue(s); ok {
		return strconv.FormatInt(ns, 10)
	}
	return strconv.FormatInt(now().UnixNano(), 10)
}

// epochValue parses an all-digit string as an epoch instant in
// nanoseconds, sized by digit count. Values whose nanosecond form does
// not fit int64 are rejected rather than wrapped.
func epochValue(s string) (int64, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	switch len(s) {
	case 10:
		if v > math.MaxInt64/int64(time.Second) {
			return 0, false
		}
		return v * int64(time.Second), true
	case 13:
		if v > math.MaxInt64/int64(time.Millisecond) {
			return 0, false
		}
		return v * int64(time.Millisecond), true
	case 19:
		return v, true
	}
	return 0, false
}
