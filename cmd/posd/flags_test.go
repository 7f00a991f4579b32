// ABOUTME: Tests for subcommand flag parsing and the -from/-to time formats
// ABOUTME: Flag sets write their errors to a discarded buffer

package main

import (
	"errors"
	"flag"
	"io"
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	t.Parallel()

	want := time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local)
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{in: "", want: time.Time{}},
		{in: "20240309140500", want: want},
		{in: "2024-03-09 14:05:00", want: want},
		{in: "2024-03-09T14:05:00", want: want},
		{in: "2024-03-09 14:05", want: want},
		{in: "2024-03-09", want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.Local)},
		{in: "  2024-03-09  ", want: time.Date(2024, 3, 9, 0, 0, 0, 0, time.Local)},
		{in: "yesterday", wantErr: true},
		{in: "2024-13-01", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseTime(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseTime(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseQueryFlags(t *testing.T) {
	t.Parallel()

	a, err := parseQueryFlags([]string{
		"-db", "/tmp/x.db", "-pos", "3",
		"-from", "2024-01-01", "-to", "20240102000000",
		"-key", "milk", "-key", "bread", "-all", "-limit", "5",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseQueryFlags: %v", err)
	}
	q := a.query
	if a.db != "/tmp/x.db" || q.PosID != 3 || !q.MatchAll || q.Limit != 5 {
		t.Errorf("args = %+v", a)
	}
	if len(q.Keywords) != 2 || q.Keywords[0] != "milk" || q.Keywords[1] != "bread" {
		t.Errorf("keywords = %v", q.Keywords)
	}
	if !q.Begin.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)) || !q.End.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.Local)) {
		t.Errorf("range = %v .. %v", q.Begin, q.End)
	}
}

func TestParseQueryFlags_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
	}{
		{name: "bad time", args: []string{"-from", "soon"}},
		{name: "reversed range", args: []string{"-from", "2024-02-01", "-to", "2024-01-01"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := parseQueryFlags(tt.args, io.Discard); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseFeedFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		args      []string
		wantInput string
		wantChunk int
		wantErr   bool
	}{
		{name: "stdin by default", args: []string{"-source", "1"}, wantInput: "-", wantChunk: 4096},
		{name: "file", args: []string{"-source", "1", "-chunk", "7", "cap.bin"}, wantInput: "cap.bin", wantChunk: 7},
		{name: "two files", args: []string{"a", "b"}, wantErr: true},
		{name: "zero chunk", args: []string{"-chunk", "0"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := parseFeedFlags(tt.args, io.Discard)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if a.input != tt.wantInput || a.chunk != tt.wantChunk {
				t.Errorf("input = %q chunk = %d, want %q %d", a.input, a.chunk, tt.wantInput, tt.wantChunk)
			}
		})
	}
}

func TestParseItemsFlags_RequiresID(t *testing.T) {
	t.Parallel()

	if _, err := parseItemsFlags(nil, io.Discard); err == nil {
		t.Error("expected error without -id")
	}
	a, err := parseItemsFlags([]string{"-id", "42"}, io.Discard)
	if err != nil || a.id != 42 {
		t.Errorf("parseItemsFlags = %+v, %v", a, err)
	}
}

func TestParseTerminalFlags_Filters(t *testing.T) {
	t.Parallel()

	a, err := parseTerminalFlags([]string{"-pos", "2", "-card", "6222", "-serial", "SN"}, io.Discard)
	if err != nil {
		t.Fatalf("parseTerminalFlags: %v", err)
	}
	if a.query.PosID != 2 || a.query.CardID != "6222" || a.query.Serial != "SN" || a.query.TerminalCode != "" {
		t.Errorf("query = %+v", a.query)
	}
}

func TestParse_HelpIsNotWrapped(t *testing.T) {
	t.Parallel()

	_, err := parseConfigFlags([]string{"-h"}, io.Discard)
	if !errors.Is(err, flag.ErrHelp) {
		t.Errorf("err = %v, want flag.ErrHelp", err)
	}
}
