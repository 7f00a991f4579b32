// ABOUTME: CLI entry point for posd: feeds POS captures into a station and searches the archive
// ABOUTME: Dispatches subcommands; each one parses its own flags and returns an error

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	// termfix must be imported before any package that imports bubbletea.
	_ "github.com/mauromedda/posoverlay/internal/termfix"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const usage = `usage: posd <command> [flags]

commands:
  feed      stream a capture file or stdin into a configured source
  watch     live overlay preview while stdin is fed
  query     search archived transactions
  items     list the items of one transaction
  terminal  search archived card-terminal payments
  export    write transactions as an HTML report or JSONL
  config    print the effective configuration
  version   print the build version

Run "posd <command> -h" for the flags of a command.
`

// errUsage asks run to print the usage text.
var errUsage = errors.New("usage")

// env is what a subcommand may touch besides its flags.
type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := env{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	if err := run(ctx, os.Args[1:], e); err != nil {
		stop()
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, e env) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "feed":
		a, err := parseFeedFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runFeed(ctx, a, e)
	case "watch":
		a, err := parseWatchFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runWatch(ctx, a, e)
	case "query":
		a, err := parseQueryFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runQuery(ctx, a, e)
	case "items":
		a, err := parseItemsFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runItems(ctx, a, e)
	case "terminal":
		a, err := parseTerminalFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runTerminal(ctx, a, e)
	case "export":
		a, err := parseExportFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runExport(ctx, a, e)
	case "config":
		a, err := parseConfigFlags(rest, e.stderr)
		if err != nil {
			return err
		}
		return runConfig(a, e)
	case "version", "-version", "--version":
		fmt.Fprintf(e.stdout, "posd %s (%s) built %s\n", version, commit, date)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(e.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}
