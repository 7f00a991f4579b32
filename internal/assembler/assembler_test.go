// ABOUTME: Tests for transaction assembly across receipt, plaintext, and terminal modes
// ABOUTME: A stepping clock and recording display/sink fakes make records deterministic

package assembler

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mauromedda/posoverlay/internal/store"
	"github.com/mauromedda/posoverlay/internal/terminal"
	"github.com/mauromedda/posoverlay/pkg/framer"
)

type recorder struct {
	texts     []string
	records   []store.Record
	terminals []store.TerminalRecord
}

func (r *recorder) Append(text string)                      { r.texts = append(r.texts, text) }
func (r *recorder) Submit(rec store.Record)                 { r.records = append(r.records, rec) }
func (r *recorder) SubmitTerminal(rec store.TerminalRecord) { r.terminals = append(r.terminals, rec) }

// stepClock advances one second on every call.
func stepClock() func() time.Time {
	t := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func newTest(t *testing.T, mutate func(*Options)) (*Assembler, *recorder) {
	t.Helper()
	r := &recorder{}
	opts := Options{
		Mode:    framer.ModeReceipt,
		Binding: Binding{PosID: 3, PosName: "till 3", Channels: []int{1, 7}},
		Display: r,
		Sink:    r,
		Clock:   stepClock(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), r
}

func events(kinds ...any) []framer.Event {
	var out []framer.Event
	for _, k := range kinds {
		switch v := k.(type) {
		case framer.Kind:
			out = append(out, framer.Event{Kind: v})
		case string:
			out = append(out, framer.Event{Kind: framer.Item, Text: v})
		}
	}
	return out
}

func TestReceipt_CompleteTransaction(t *testing.T) {
	t.Parallel()

	a, r := newTest(t, nil)
	for _, ev := range events(framer.Start, "milk", "bread", framer.Stop) {
		a.Handle(ev)
	}

	if len(r.records) != 1 {
		t.Fatalf("records = %d, want 1", len(r.records))
	}
	rec := r.records[0]
	if rec.PosID != 3 || rec.PosName != "till 3" {
		t.Errorf("identity = %d %q", rec.PosID, rec.PosName)
	}
	if strings.Join(rec.Items, ",") != "milk,bread" {
		t.Errorf("items = %v", rec.Items)
	}
	if rec.Partial {
		t.Error("complete record marked partial")
	}
	if !rec.Stop.After(rec.Start) {
		t.Errorf("stop %v not after start %v", rec.Stop, rec.Start)
	}
	if got := strings.Join(r.texts, "|"); got != "milk|bread|\n" {
		t.Errorf("display = %q", got)
	}
	if _, ok := a.Pending(); ok {
		t.Error("nothing should be pending after STOP")
	}
}

func TestReceipt_StopWithoutItems(t *testing.T) {
	t.Parallel()

	a, r := newTest(t, nil)
	a.Handle(framer.Event{Kind: framer.Start})
	a.Handle(framer.Event{Kind: framer.Stop})

	if len(r.records) != 1 {
		t.Fatalf("records = %d, want 1", len(r.records))
	}
	rec := r.records[0]
	if len(rec.Items) != 0 {
		t.Errorf("items = %v, want none", rec.Items)
	}
	if rec.Stop.Before(rec.Start) {
		t.Errorf("stop %v before start %v", rec.Stop, rec.Start)
	}
}

func TestReceipt_StopWithoutItemsFrozenClock(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	a, r := newTest(t, func(o *Options) { o.Clock = func() time.Time { return now } })
	a.Handle(framer.Event{Kind: framer.Start})
	a.Handle(framer.Event{Kind: framer.Stop})
	if rec := r.records[0]; !rec.Start.Equal(rec.Stop) {
		t.Errorf("start %v stop %v, want equal", rec.Start, rec.Stop)
	}
}

func TestReceipt_OrphanPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		policy      Policy
		wantRecords int
		wantPartial bool
	}{
		{name: "flush", policy: OrphanFlush, wantRecords: 2, wantPartial: true},
		{name: "discard", policy: OrphanDiscard, wantRecords: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, r := newTest(t, func(o *Options) { o.Policy = tt.policy })
			for _, ev := range events(framer.Start, "lost", framer.Start, "kept", framer.Stop) {
				a.Handle(ev)
			}
			if len(r.records) != tt.wantRecords {
				t.Fatalf("records = %d, want %d", len(r.records), tt.wantRecords)
			}
			if tt.wantPartial {
				first := r.records[0]
				if !first.Partial || first.Items[0] != "lost" {
					t.Errorf("first record = %+v, want partial with 'lost'", first)
				}
			}
			last := r.records[len(r.records)-1]
			if last.Partial || last.Items[0] != "kept" {
				t.Errorf("last record = %+v", last)
			}
		})
	}
}

func TestReceipt_StrayEventsIgnored(t *testing.T) {
	t.Parallel()

	a, r := newTest(t, nil)
	a.Handle(framer.Event{Kind: framer.Stop})
	a.Handle(framer.Event{Kind: framer.Item, Text: "stray"})
	if len(r.records) != 0 || len(r.texts) != 0 {
		t.Errorf("records %v texts %v, want nothing", r.records, r.texts)
	}
	if got := a.Stats().Ignored; got != 2 {
		t.Errorf("Ignored = %d, want 2", got)
	}
}

func TestReceipt_BindingSnapshot(t *testing.T) {
	t.Parallel()

	a, r := newTest(t, nil)
	a.Handle(framer.Event{Kind: framer.Start})
	a.SetBinding(Binding{PosID: 9, PosName: "new", Channels: []int{2}})
	a.Handle(framer.Event{Kind: framer.Stop})
	a.Handle(framer.Event{Kind: framer.Start})
	a.Handle(framer.Event{Kind: framer.Stop})

	if r.records[0].PosID != 3 || r.records[1].PosID != 9 {
		t.Errorf("pos ids = %d, %d, want 3, 9", r.records[0].PosID, r.records[1].PosID)
	}
	if r.records[1].Channels[0] != 2 {
		t.Errorf("channels = %v", r.records[1].Channels)
	}
}

func TestClose_FlushesPending(t *testing.T) {
	t.Parallel()

	a, r := newTest(t, nil)
	a.Handle(framer.Event{Kind: framer.Start})
	a.Handle(framer.Event{Kind: framer.Item, Text: "half"})
	if p, ok := a.Pending(); !ok || len(p.Items) != 1 {
		t.Fatalf("Pending = %+v, %v", p, ok)
	}
	a.Close()
	if len(r.records) != 1 || !r.records[0].Partial {
		t.Fatalf("records = %+v, want one partial", r.records)
	}
	a.Close()
	if len(r.records) != 1 {
		t.Error("second Close should not flush again")
	}
}

func TestPlaintext_OneRecordPerItem(t *testing.T) {
	t.Parallel()

	a, r := newTest(t, func(o *Options) { o.Mode = framer.ModePlaintext })
	a.Handle(framer.Event{Kind: framer.Item, Text: "hello"})
	a.Handle(framer.Event{Kind: framer.Item, Text: ""})
	a.Handle(framer.Event{Kind: framer.Item, Text: "world"})

	if len(r.records) != 2 {
		t.Fatalf("records = %d, want 2", len(r.records))
	}
	for _, rec := range r.records {
		if !rec.Start.Equal(rec.Stop) || len(rec.Items) != 1 {
			t.Errorf("record = %+v, want one item with start == stop", rec)
		}
	}
	if got := strings.Join(r.texts, ""); got != "hello\nworld\n" {
		t.Errorf("display = %q", got)
	}
}

func TestTerminal_ValidPayload(t *testing.T) {
	t.Parallel()

	v, err := terminal.NewValidator()
	if err != nil {
		t.Fatalf("NewValidator: %v", err)
	}
	a, r := newTest(t, func(o *Options) {
		o.Mode = framer.ModeTerminal
		o.Validator = v
	})
	payload := `{"terminal_code":"T1","card_id":"6222","money":"12.50","terminal_model":"M9","serial":"S1","time":"20240301120000"}`
	a.Handle(framer.Event{Kind: framer.Item, Text: payload})

	if len(r.terminals) != 1 {
		t.Fatalf("terminal records = %d, want 1", len(r.terminals))
	}
	tr := r.terminals[0]
	if tr.CardID != "6222" || tr.PosID != 3 || tr.DevTime.IsZero() {
		t.Errorf("terminal record = %+v", tr)
	}
	if len(r.records) != 1 {
		t.Fatalf("records = %d, want 1", len(r.records))
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(r.records[0].Items[0]), &doc); err != nil {
		t.Fatalf("record item is not JSON: %v", err)
	}
	if doc["pos_name"] != "till 3" {
		t.Errorf("pos_name = %v", doc["pos_name"])
	}
	if len(r.texts) != 1 || !strings.HasPrefix(r.texts[0], "terminal_code:T1\n") {
		t.Errorf("display = %q", r.texts)
	}
}

func TestTerminal_InvalidPayloadDropped(t *testing.T) {
	t.Parallel()

	v, _ := terminal.NewValidator()
	a, r := newTest(t, func(o *Options) {
		o.Mode = framer.ModeTerminal
		o.Validator = v
	})
	a.Handle(framer.Event{Kind: framer.Item, Text: `{"terminal_code":"much too long code"}`})
	a.Handle(framer.Event{Kind: framer.Item, Text: `not json`})

	if len(r.records)+len(r.terminals)+len(r.texts) != 0 {
		t.Errorf("invalid payloads produced output: %v %v %v", r.records, r.terminals, r.texts)
	}
	if got := a.Stats().Invalid; got != 2 {
		t.Errorf("Invalid = %d, want 2", got)
	}
}

func TestParsePolicy(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Policy{"": OrphanFlush, "flush": OrphanFlush, "discard": OrphanDiscard} {
		if got, ok := ParsePolicy(in); !ok || got != want {
			t.Errorf("ParsePolicy(%q) = %v, %v", in, got, ok)
		}
	}
	if _, ok := ParsePolicy("keep"); ok {
		t.Error("ParsePolicy(keep) should fail")
	}
}
