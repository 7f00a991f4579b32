// ABOUTME: Tests for result tables: alignment by display width and sanitizing device text
// ABOUTME: Output is compared after stripping any styling escapes

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/mauromedda/posoverlay/internal/store"
	"github.com/mauromedda/posoverlay/pkg/textwidth"
)

func TestTable_AlignsWideText(t *testing.T) {
	t.Parallel()

	tb := table{header: []string{"#", "ITEM", "QTY"}}
	tb.add(false, "1", "咖啡", "2")
	tb.add(false, "2", "tea", "10")
	lines := strings.Split(strings.TrimRight(textwidth.StripANSI(tb.render()), "\n"), "\n")

	want := []string{
		"#  ITEM  QTY",
		"1  咖啡  2",
		"2  tea   10",
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %q", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestTable_SanitizesAndTruncates(t *testing.T) {
	t.Parallel()

	tb := table{header: []string{"ITEM"}}
	tb.add(false, "\x1b]0;pwned\x07bread\tand\x1b[31m jam")
	tb.add(false, strings.Repeat("x", maxCell+10))
	out := textwidth.StripANSI(tb.render())

	if strings.ContainsAny(out, "\x07\t") || strings.Contains(out, "pwned") {
		t.Errorf("control content leaked: %q", out)
	}
	if !strings.Contains(out, "bread and jam") {
		t.Errorf("text lost: %q", out)
	}
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if w := textwidth.Width(l); w > maxCell {
			t.Errorf("line %q is %d cells wide, max %d", l, w, maxCell)
		}
	}
}

func TestRecordTable_MarksPartial(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 5, 1, 9, 30, 0, 0, time.Local)
	out := textwidth.StripANSI(recordTable([]store.Record{
		{ID: 7, PosName: "Till", Start: start, Stop: start.Add(time.Minute), Channels: []int{1, 3}},
		{ID: 8, PosName: "Till", Start: start, Stop: start, Partial: true},
	}))
	if !strings.Contains(out, "2024-05-01 09:30:00  2024-05-01 09:31:00  1,3") {
		t.Errorf("times or channels missing:\n%s", out)
	}
	if !strings.Contains(out, "partial") || !strings.Contains(out, "complete") {
		t.Errorf("status column missing:\n%s", out)
	}
}

func TestTerminalTime(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"20240309140500", "2024-03-09 14:05:00"},
		{"2024/03/09", "2024/03/09"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := terminalTime(tt.in); got != tt.want {
			t.Errorf("terminalTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
