// ABOUTME: Transaction archive contract: records, items, terminal records, and their queries
// ABOUTME: Implementations keep field typing (time.Time, int64, string) on the way back out

package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultLimit caps query results when a query sets no limit.
const DefaultLimit = 2000

// TimeLayout is the compact timestamp format used by card terminals.
const TimeLayout = "20060102150405"

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("store closed")

// Record is one framed POS transaction.
type Record struct {
	ID       int64
	PosID    int
	PosName  string
	Start    time.Time
	Stop     time.Time
	Channels []int
	Items    []string
	// Partial marks a transaction that never saw its stop tag.
	Partial bool
}

// TerminalRecord is one card-terminal payment. Time is the terminal's own
// timestamp as sent; DevTime is when the recorder received it.
type TerminalRecord struct {
	ID            int64
	PosID         int
	PosName       string
	Channels      []int
	TerminalCode  string
	CardID        string
	Money         string
	TerminalModel string
	Serial        string
	Time          string
	DevTime       time.Time
}

// Query selects records of one POS whose start lies in [Begin, End]. Keywords
// match item text by substring; MatchAll requires every keyword, otherwise any.
type Query struct {
	PosID    int
	Begin    time.Time
	End      time.Time
	Keywords []string
	MatchAll bool
	Limit    int
}

// TerminalQuery selects terminal records of one POS by terminal time range.
// Non-empty field filters match by substring.
type TerminalQuery struct {
	PosID         int
	Begin         time.Time
	End           time.Time
	TerminalCode  string
	CardID        string
	TerminalModel string
	Serial        string
	Limit         int
}

// Store persists transactions. Calls are atomic individually; callers
// serialize writes.
type Store interface {
	Write(ctx context.Context, rec Record) (int64, error)
	QueryRecords(ctx context.Context, q Query) ([]Record, error)
	QueryItems(ctx context.Context, recordID int64) ([]string, error)
	WriteTerminal(ctx context.Context, rec TerminalRecord) (int64, error)
	QueryTerminal(ctx context.Context, q TerminalQuery) ([]TerminalRecord, error)
	Close() error
}

// JoinChannels encodes channel ids the way they are persisted: "1;7;8;".
func JoinChannels(ch []int) string {
	var b strings.Builder
	for _, c := range ch {
		b.WriteString(strconv.Itoa(c))
		b.WriteByte(';')
	}
	return b.String()
}

// SplitChannels decodes a persisted channel list. Malformed entries are skipped.
func SplitChannels(s string) []int {
	var out []int
	for _, f := range strings.Split(s, ";") {
		if f == "" {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(f)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func limitOf(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return n
}
