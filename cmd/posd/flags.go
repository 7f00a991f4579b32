// ABOUTME: Per-subcommand flag parsing using the stdlib flag package
// ABOUTME: Also holds the repeatable -key flag and the time formats accepted by -from and -to

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mauromedda/posoverlay/internal/store"
)

// timeLayouts are tried in order by -from and -to. Times are local.
var timeLayouts = []string{
	store.TimeLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseTime accepts any of timeLayouts. An empty string is the zero time,
// which the store treats as unbounded.
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want YYYYMMDDhhmmss or YYYY-MM-DD[ hh:mm[:ss]])", s)
}

// timeFlag is a flag.Value over parseTime.
type timeFlag struct {
	t   *time.Time
	raw string
}

func (f *timeFlag) String() string { return f.raw }

func (f *timeFlag) Set(s string) error {
	t, err := parseTime(s)
	if err != nil {
		return err
	}
	f.raw = s
	*f.t = t
	return nil
}

// listFlag collects every occurrence of a repeatable flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(s string) error {
	*l = append(*l, s)
	return nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("posd "+name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// parse runs fs and maps -h to flag.ErrHelp so callers can exit cleanly.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return fmt.Errorf("%s: %w", fs.Name(), err)
	}
	return nil
}

type feedArgs struct {
	config  string
	source  int
	chunk   int
	verbose bool
	preview bool
	cols    int
	input   string
}

func parseFeedFlags(args []string, stderr io.Writer) (feedArgs, error) {
	var a feedArgs
	fs := newFlagSet("feed", stderr)
	fs.StringVar(&a.config, "config", "", "Config file (default: /etc/posd and ~/.posd merged)")
	fs.IntVar(&a.source, "source", 0, "Source id to feed")
	fs.IntVar(&a.chunk, "chunk", 4096, "Bytes per read, to mimic transport packet sizes")
	fs.BoolVar(&a.verbose, "v", false, "Print framing events as they happen")
	fs.BoolVar(&a.preview, "preview", false, "Print the overlay when the input ends")
	fs.IntVar(&a.cols, "cols", 0, "Preview width in columns (default: terminal width)")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	if a.chunk <= 0 {
		return a, fmt.Errorf("feed: -chunk must be positive, got %d", a.chunk)
	}
	switch fs.NArg() {
	case 0:
		a.input = "-"
	case 1:
		a.input = fs.Arg(0)
	default:
		return a, fmt.Errorf("feed: at most one input file, got %d", fs.NArg())
	}
	return a, nil
}

type watchArgs struct {
	config string
	source int
}

func parseWatchFlags(args []string, stderr io.Writer) (watchArgs, error) {
	var a watchArgs
	fs := newFlagSet("watch", stderr)
	fs.StringVar(&a.config, "config", "", "Config file (default: /etc/posd and ~/.posd merged)")
	fs.IntVar(&a.source, "source", 0, "Source id fed from stdin")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	return a, nil
}

type queryArgs struct {
	db    string
	query store.Query
	keys  listFlag
}

func parseQueryFlags(args []string, stderr io.Writer) (queryArgs, error) {
	var a queryArgs
	fs := newFlagSet("query", stderr)
	fs.StringVar(&a.db, "db", "", "Archive database (default: ~/.posd/posd.db)")
	fs.IntVar(&a.query.PosID, "pos", 0, "POS id")
	fs.Var(&timeFlag{t: &a.query.Begin}, "from", "Earliest transaction start")
	fs.Var(&timeFlag{t: &a.query.End}, "to", "Latest transaction start")
	fs.Var(&a.keys, "key", "Item keyword; repeat for more")
	fs.BoolVar(&a.query.MatchAll, "all", false, "Require every keyword instead of any")
	fs.IntVar(&a.query.Limit, "limit", store.DefaultLimit, "Maximum rows")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	a.query.Keywords = a.keys
	if err := checkRange(a.query.Begin, a.query.End); err != nil {
		return a, err
	}
	return a, nil
}

type itemsArgs struct {
	db string
	id int64
}

func parseItemsFlags(args []string, stderr io.Writer) (itemsArgs, error) {
	var a itemsArgs
	fs := newFlagSet("items", stderr)
	fs.StringVar(&a.db, "db", "", "Archive database (default: ~/.posd/posd.db)")
	fs.Int64Var(&a.id, "id", 0, "Transaction id, as printed by query")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	if a.id <= 0 {
		return a, errors.New("items: -id is required")
	}
	return a, nil
}

type terminalArgs struct {
	db    string
	query store.TerminalQuery
}

func parseTerminalFlags(args []string, stderr io.Writer) (terminalArgs, error) {
	var a terminalArgs
	fs := newFlagSet("terminal", stderr)
	fs.StringVar(&a.db, "db", "", "Archive database (default: ~/.posd/posd.db)")
	fs.IntVar(&a.query.PosID, "pos", 0, "POS id")
	fs.Var(&timeFlag{t: &a.query.Begin}, "from", "Earliest terminal time")
	fs.Var(&timeFlag{t: &a.query.End}, "to", "Latest terminal time")
	fs.StringVar(&a.query.TerminalCode, "code", "", "Terminal code contains")
	fs.StringVar(&a.query.CardID, "card", "", "Card id contains")
	fs.StringVar(&a.query.TerminalModel, "model", "", "Terminal model contains")
	fs.StringVar(&a.query.Serial, "serial", "", "Serial contains")
	fs.IntVar(&a.query.Limit, "limit", store.DefaultLimit, "Maximum rows")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	if err := checkRange(a.query.Begin, a.query.End); err != nil {
		return a, err
	}
	return a, nil
}

type exportArgs struct {
	db       string
	query    store.Query
	keys     listFlag
	terminal bool
	format   string
	output   string
}

func parseExportFlags(args []string, stderr io.Writer) (exportArgs, error) {
	var a exportArgs
	fs := newFlagSet("export", stderr)
	fs.StringVar(&a.db, "db", "", "Archive database (default: ~/.posd/posd.db)")
	fs.IntVar(&a.query.PosID, "pos", 0, "POS id")
	fs.Var(&timeFlag{t: &a.query.Begin}, "from", "Earliest transaction start")
	fs.Var(&timeFlag{t: &a.query.End}, "to", "Latest transaction start")
	fs.Var(&a.keys, "key", "Item keyword; repeat for more")
	fs.BoolVar(&a.query.MatchAll, "all", false, "Require every keyword instead of any")
	fs.IntVar(&a.query.Limit, "limit", store.DefaultLimit, "Maximum transactions")
	fs.BoolVar(&a.terminal, "terminal", false, "Also export card-terminal payments in the same range")
	fs.StringVar(&a.format, "format", "html", "Output format: html or jsonl")
	fs.StringVar(&a.output, "o", "-", "Output file")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	a.query.Keywords = a.keys
	switch a.format {
	case "html", "jsonl":
	default:
		return a, fmt.Errorf("export: unknown format %q", a.format)
	}
	if err := checkRange(a.query.Begin, a.query.End); err != nil {
		return a, err
	}
	return a, nil
}

type configArgs struct {
	config string
}

func parseConfigFlags(args []string, stderr io.Writer) (configArgs, error) {
	var a configArgs
	fs := newFlagSet("config", stderr)
	fs.StringVar(&a.config, "config", "", "Config file (default: /etc/posd and ~/.posd merged)")
	if err := parse(fs, args); err != nil {
		return a, err
	}
	return a, nil
}

func checkRange(begin, end time.Time) error {
	if !begin.IsZero() && !end.IsZero() && end.Before(begin) {
		return fmt.Errorf("-to %s is before -from %s", end.Format(time.DateTime), begin.Format(time.DateTime))
	}
	return nil
}
