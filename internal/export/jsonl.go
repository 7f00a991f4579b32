// ABOUTME: JSONL exporter: one envelope per line for transactions and terminal payments
// ABOUTME: Envelopes carry a version, a type, and an RFC 3339 timestamp around the data

package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/mauromedda/posoverlay/internal/store"
)

// EntryType identifies the type of a JSONL entry.
type EntryType string

const (
	EntryTransaction EntryType = "transaction"
	EntryTerminal    EntryType = "terminal"
)

// Entry is the envelope for all JSONL lines.
type Entry struct {
	Version int             `json:"v"`
	Type    EntryType       `json:"type"`
	TS      string          `json:"ts"`
	Data    json.RawMessage `json:"data"`
}

// TransactionData is the JSONL form of a transaction.
type TransactionData struct {
	ID       int64    `json:"id"`
	PosID    int      `json:"pos_id"`
	PosName  string   `json:"pos_name"`
	Start    string   `json:"start"`
	Stop     string   `json:"stop"`
	Channels []int    `json:"relate_channels"`
	Partial  bool     `json:"partial"`
	Items    []string `json:"items"`
}

// TerminalData is the JSONL form of a terminal payment. Field names follow
// the payload the terminal sent.
type TerminalData struct {
	ID            int64  `json:"id"`
	PosID         int    `json:"pos_id"`
	PosName       string `json:"pos_name"`
	Channels      []int  `json:"relate_channels"`
	TerminalCode  string `json:"terminal_code"`
	CardID        string `json:"card_id"`
	Money         string `json:"money"`
	TerminalModel string `json:"terminal_model"`
	Serial        string `json:"serial"`
	Time          string `json:"time"`
	DevTime       string `json:"dev_time,omitempty"`
}

// JSONL writes every transaction, then every terminal payment, one entry per
// line. Entry timestamps are when the row was opened or received.
func JSONL(r Report, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, t := range r.Transactions {
		data := TransactionData{
			ID:       t.ID,
			PosID:    t.PosID,
			PosName:  t.PosName,
			Start:    t.Start.Format(time.RFC3339),
			Stop:     t.Stop.Format(time.RFC3339),
			Channels: nonNil(t.Channels),
			Partial:  t.Partial,
			Items:    t.Items,
		}
		if data.Items == nil {
			data.Items = []string{}
		}
		if err := writeEntry(bw, EntryTransaction, t.Start, data); err != nil {
			return err
		}
	}
	for _, t := range r.Terminal {
		if err := writeEntry(bw, EntryTerminal, t.DevTime, terminalData(t)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func terminalData(t store.TerminalRecord) TerminalData {
	d := TerminalData{
		ID:            t.ID,
		PosID:         t.PosID,
		PosName:       t.PosName,
		Channels:      nonNil(t.Channels),
		TerminalCode:  t.TerminalCode,
		CardID:        t.CardID,
		Money:         t.Money,
		TerminalModel: t.TerminalModel,
		Serial:        t.Serial,
		Time:          t.Time,
	}
	if !t.DevTime.IsZero() {
		d.DevTime = t.DevTime.Format(time.RFC3339)
	}
	return d
}

func writeEntry(w io.Writer, typ EntryType, ts time.Time, data any) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling %s data: %w", typ, err)
	}
	entry := Entry{Version: 1, Type: typ, Data: dataBytes}
	if !ts.IsZero() {
		entry.TS = ts.UTC().Format(time.RFC3339)
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}
	line = append(line, '\n')
	if _, err := w.Write(line); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}
	return nil
}

// ReadJSONL reads entries written by JSONL. Malformed lines are skipped.
func ReadJSONL(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return entries, fmt.Errorf("scanning export: %w", err)
	}
	return entries, nil
}

func nonNil(ch []int) []int {
	if ch == nil {
		return []int{}
	}
	return ch
}
