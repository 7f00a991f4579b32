// ABOUTME: Exports archived transactions and terminal payments for auditors
// ABOUTME: Collects records with their items from a store; html.go and jsonl.go format them

package export

import (
	"context"
	"fmt"
	"time"

	"github.com/mauromedda/posoverlay/internal/store"
)

// Transaction is a record together with its items.
type Transaction struct {
	store.Record
}

// Report is everything one export writes.
type Report struct {
	Title        string
	Generated    time.Time
	Transactions []Transaction
	Terminal     []store.TerminalRecord
}

// Archive is the part of the store an export reads.
type Archive interface {
	QueryRecords(ctx context.Context, q store.Query) ([]store.Record, error)
	QueryItems(ctx context.Context, recordID int64) ([]string, error)
	QueryTerminal(ctx context.Context, q store.TerminalQuery) ([]store.TerminalRecord, error)
}

// Transactions runs q and loads the items of every matching record.
func Transactions(ctx context.Context, a Archive, q store.Query) ([]Transaction, error) {
	recs, err := a.QueryRecords(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]Transaction, 0, len(recs))
	for _, r := range recs {
		items, err := a.QueryItems(ctx, r.ID)
		if err != nil {
			return nil, fmt.Errorf("items of record %d: %w", r.ID, err)
		}
		r.Items = items
		out = append(out, Transaction{Record: r})
	}
	return out, nil
}

// Duration is how long the transaction was open.
func (t Transaction) Duration() time.Duration { return t.Stop.Sub(t.Start) }
