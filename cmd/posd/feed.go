// ABOUTME: The feed command: runs a station and streams a capture into one source
// ABOUTME: Reads in fixed-size chunks, waits for the archive, and optionally prints the overlay

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"

	"github.com/mauromedda/posoverlay/internal/config"
	"github.com/mauromedda/posoverlay/internal/device"
	"github.com/mauromedda/posoverlay/internal/station"
	"github.com/mauromedda/posoverlay/internal/store"
	"github.com/mauromedda/posoverlay/pkg/preview"
)

// session is a running station over an opened archive.
type session struct {
	st     *station.Station
	db     *store.SQLite
	source config.Source
	cancel context.CancelFunc
	done   chan error
}

// startSession loads the config, opens the archive, and runs a station until
// close is called. It returns once the configured sources are running.
func startSession(ctx context.Context, configPath string, sourceID int) (*session, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	src, ok := settings.Source(sourceID)
	if !ok {
		return nil, fmt.Errorf("%w: %d is not configured", station.ErrUnknownSource, sourceID)
	}
	db, err := store.Open(ctx, settings.Store.Path)
	if err != nil {
		return nil, err
	}

	opts := station.Options{Settings: settings, Store: db}
	if configPath != "" {
		opts.Watch = []string{configPath}
		opts.Reload = func() (*config.Settings, error) { return config.Load(configPath) }
	}
	st, err := station.New(opts)
	if err != nil {
		db.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{st: st, db: db, source: src, cancel: cancel, done: make(chan error, 1)}
	go func() { s.done <- st.Run(runCtx) }()

	select {
	case <-st.Ready():
		return s, nil
	case err := <-s.done:
		cancel()
		db.Close()
		if err == nil {
			err = errors.New("station stopped before it was ready")
		}
		return nil, err
	}
}

// close stops the station, which archives open transactions, then closes the
// archive.
func (s *session) close() error {
	s.cancel()
	err := <-s.done
	return errors.Join(err, s.db.Close())
}

func runFeed(ctx context.Context, a feedArgs, e env) error {
	in, closeIn, err := openInput(a.input, e.stdin)
	if err != nil {
		return err
	}
	defer closeIn()

	s, err := startSession(ctx, a.config, a.source)
	if err != nil {
		return err
	}

	stopPrinter := func() {}
	if a.verbose {
		stopPrinter = printEvents(s.st, e.stdout)
	}

	feedErr := pump(ctx, in, a.chunk, func(chunk []byte) error {
		return s.st.Feed(a.source, chunk)
	})
	if feedErr == nil {
		feedErr = s.st.Sync(ctx)
	}

	var lines []string
	if feedErr == nil && a.preview {
		lines, feedErr = snapshot(ctx, s.st, a.source, a.cols, e.stdout)
	}
	stats, _ := s.st.Stats(a.source)

	if err := s.close(); err != nil {
		feedErr = errors.Join(feedErr, err)
	}
	stopPrinter()
	for _, l := range lines {
		fmt.Fprintln(e.stdout, l)
	}
	// Writer counters include the partial records archived during shutdown.
	ws := s.st.WriterStats()
	fmt.Fprintf(e.stderr, "pos %d: %d bytes, %d overflows; %d records archived, %d dropped\n",
		a.source, stats.Bytes, stats.Overflows, ws.Written, ws.Dropped)
	return feedErr
}

// snapshot repaints the source's overlay and returns it as terminal art.
func snapshot(ctx context.Context, st *station.Station, posID, cols int, out io.Writer) ([]string, error) {
	if _, err := st.Render(ctx, posID); err != nil {
		return nil, err
	}
	f, err := st.Frame(posID)
	if err != nil {
		return nil, err
	}
	if cols <= 0 {
		cols = termCols(out)
	}
	return preview.Frame(f, cols), nil
}

// pump reads r in chunks of size bytes and hands each to feed. The buffer is
// reused, so feed must copy what it keeps.
func pump(ctx context.Context, r io.Reader, size int, feed func([]byte) error) error {
	buf := make([]byte, size)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if ferr := feed(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}
	}
}

func openInput(name string, stdin io.Reader) (io.Reader, func(), error) {
	if name == "" || name == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

// printEvents writes every framing event to w until the returned function is
// called; that function waits for the printer to finish.
func printEvents(st *station.Station, w io.Writer) func() {
	events, unsubscribe := st.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			if line := describe(ev); line != "" {
				fmt.Fprintln(w, line)
			}
		}
	}()
	return func() {
		unsubscribe()
		wg.Wait()
	}
}

// describe formats one device event for -v output. Render events are skipped.
func describe(ev device.Event) string {
	switch ev.Kind {
	case device.Framed:
		return fmt.Sprintf("%s pos %d %s", ev.At.Format("15:04:05.000"), ev.PosID, ev.Framed)
	case device.Overflow:
		return fmt.Sprintf("%s pos %d overflow: framing buffer reset", ev.At.Format("15:04:05.000"), ev.PosID)
	default:
		return ""
	}
}

// termCols returns the width of w if it is a terminal, else 80.
func termCols(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		fd := int(f.Fd())
		if term.IsTerminal(fd) {
			if cols, _, err := term.GetSize(fd); err == nil && cols > 0 {
				return cols
			}
		}
	}
	return 80
}
