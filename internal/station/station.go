// ABOUTME: The station runs every configured POS source against one store and one compositor
// ABOUTME: Feeding and reconfiguration run on one reactor; store writes and queries on another

package station

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mauromedda/posoverlay/internal/compositor"
	"github.com/mauromedda/posoverlay/internal/config"
	"github.com/mauromedda/posoverlay/internal/device"
	"github.com/mauromedda/posoverlay/internal/eventbus"
	"github.com/mauromedda/posoverlay/internal/log"
	"github.com/mauromedda/posoverlay/internal/reactor"
	"github.com/mauromedda/posoverlay/internal/store"
	"github.com/mauromedda/posoverlay/internal/terminal"
	"github.com/mauromedda/posoverlay/pkg/display"
	"github.com/mauromedda/posoverlay/pkg/raster"
)

// ErrUnknownSource is returned for a pos id with no running device.
var ErrUnknownSource = errors.New("unknown pos source")

// EventBuffer is the channel size used by Subscribe.
const EventBuffer = 256

// Options configures a Station.
type Options struct {
	Settings *config.Settings
	Store    store.Store
	// Media defaults to a SoftMedia.
	Media compositor.Media
	// Watch lists config files whose changes are loaded and applied while the
	// station runs; Reload decides how they are read.
	Watch  []string
	Reload func() (*config.Settings, error)
	Clock  func() time.Time
}

type running struct {
	dev    *device.Device
	cancel context.CancelFunc
	done   chan struct{}
}

// Station owns the devices. Its methods are safe for concurrent use.
type Station struct {
	feed    *reactor.Reactor
	io      *reactor.Reactor
	store   store.Store
	writer  *store.Writer
	cc      *compositor.Context
	check   *terminal.Validator
	bus     *eventbus.Bus[device.Event]
	watcher *config.Watcher
	reload  func() (*config.Settings, error)
	clock   func() time.Time

	ready chan struct{}

	mu       sync.RWMutex
	devices  map[int]*running
	settings *config.Settings
	started  bool
}

// New builds a station. Nothing runs until Run.
func New(opts Options) (*Station, error) {
	if opts.Settings == nil {
		return nil, errors.New("station needs settings")
	}
	if opts.Store == nil {
		return nil, errors.New("station needs a store")
	}
	media := opts.Media
	if media == nil {
		media = compositor.NewSoftMedia()
	}
	cc, err := compositor.NewContext(opts.Settings.Channels, media)
	if err != nil {
		return nil, fmt.Errorf("compositor: %w", err)
	}
	check, err := terminal.NewValidator()
	if err != nil {
		return nil, err
	}

	s := &Station{
		feed:    reactor.New(0),
		io:      reactor.New(0),
		store:   opts.Store,
		cc:      cc,
		check:   check,
		bus:     eventbus.New[device.Event](),
		reload:  opts.Reload,
		clock:   opts.Clock,
		ready:   make(chan struct{}),
		devices: make(map[int]*running),
	}
	s.writer = store.NewWriter(opts.Store, s.io, store.WriterOptions{
		Backlog:  opts.Settings.Store.Backlog,
		Attempts: opts.Settings.Store.Attempts,
	})
	s.settings = opts.Settings
	if len(opts.Watch) > 0 && opts.Reload != nil {
		s.watcher = config.NewWatcher(opts.Watch, s.onConfigChange)
	}
	return s, nil
}

// Run starts the reactors, the devices, and the background loops, and blocks
// until ctx is cancelled. Open transactions are then archived as partial and
// queued store writes finish before Run returns.
func (s *Station) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("station already running")
	}
	s.started = true
	initial := s.settings
	s.mu.Unlock()

	// The reactors outlive ctx so that shutdown can still use them.
	base := context.WithoutCancel(ctx)
	feedDone := make(chan error, 1)
	ioDone := make(chan error, 1)
	go func() { ioDone <- s.io.Run(base) }()
	go func() { feedDone <- s.feed.Run(base) }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return s.writer.Run(gctx, initial.Store.RetryInterval())
	})
	if s.watcher != nil {
		g.Go(func() error { return s.watcher.Run(gctx) })
	}

	err := s.Apply(gctx, initial)
	if err != nil {
		cancel()
	} else {
		log.Info("station running with %d sources", len(s.Devices()))
		close(s.ready)
		<-gctx.Done()
	}
	werr := g.Wait()

	s.shutdown()
	<-feedDone
	<-ioDone
	st := s.writer.Stats()
	log.Info("station stopped: %d records written, %d dropped", st.Written, st.Dropped)
	return errors.Join(err, werr)
}

// Ready is closed once the initial sources are running.
func (s *Station) Ready() <-chan struct{} { return s.ready }

func (s *Station) shutdown() {
	err := s.feed.Do(context.Background(), func() error {
		s.stopAll()
		return nil
	})
	if err != nil {
		log.Warn("station shutdown: %v", err)
	}
	s.feed.Stop()
	<-s.feed.Done()
	s.io.Stop()
}

// Apply makes the running devices match settings. A source whose settings
// changed is stopped and started again; unchanged sources keep running.
func (s *Station) Apply(ctx context.Context, settings *config.Settings) error {
	if settings.Channels != s.cc.Channels() {
		log.Warn("channel count change to %d needs a restart; keeping %d", settings.Channels, s.cc.Channels())
	}
	return s.feed.Do(ctx, func() error {
		log.SetLevel(log.ParseLevel(settings.LogLevel))
		want := make(map[int]config.Source, len(settings.Sources))
		for _, src := range settings.Sources {
			want[src.ID] = src
		}

		s.mu.RLock()
		current := maps.Clone(s.devices)
		s.mu.RUnlock()

		for id, r := range current {
			src, keep := want[id]
			if keep && reflect.DeepEqual(src, r.dev.Source()) && displayEqual(s.settings, settings) {
				delete(want, id)
				continue
			}
			s.stop(id, r)
		}

		var errs []error
		for _, id := range slices.Sorted(maps.Keys(want)) {
			if err := s.start(want[id], settings.Display); err != nil {
				errs = append(errs, err)
			}
		}

		s.mu.Lock()
		s.settings = settings
		s.mu.Unlock()
		return errors.Join(errs...)
	})
}

func displayEqual(a, b *config.Settings) bool {
	return a != nil && b != nil && a.Display == b.Display
}

// start runs on the feed reactor.
func (s *Station) start(src config.Source, ds config.DisplaySettings) error {
	dev, err := device.New(device.Options{
		Source:     src,
		Display:    ds,
		Compositor: s.cc,
		Sink:       s.writer,
		Validator:  s.check,
		OnEvent:    s.bus.Publish,
		Clock:      s.clock,
	})
	if err != nil {
		log.Error("%v", err)
		return err
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{dev: dev, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(r.done)
		_ = dev.Run(ctx)
	}()

	s.mu.Lock()
	s.devices[src.ID] = r
	s.mu.Unlock()
	return nil
}

// stop runs on the feed reactor.
func (s *Station) stop(id int, r *running) {
	s.mu.Lock()
	delete(s.devices, id)
	s.mu.Unlock()

	r.cancel()
	<-r.done
	if err := r.dev.Close(); err != nil {
		log.Warn("pos %d: %v", id, err)
	}
}

func (s *Station) stopAll() {
	s.mu.RLock()
	current := maps.Clone(s.devices)
	s.mu.RUnlock()
	for id, r := range current {
		s.stop(id, r)
	}
}

func (s *Station) onConfigChange() {
	settings, err := s.reload()
	if err != nil {
		log.Error("config reload: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Apply(ctx, settings); err != nil {
		log.Error("config reload: %v", err)
		return
	}
	log.Info("config reloaded: %d sources", len(settings.Sources))
}

func (s *Station) lookup(posID int) (*device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.devices[posID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSource, posID)
	}
	return r.dev, nil
}

// Feed hands a chunk received from posID's transport to its framer. It returns
// once the chunk is queued; chunk may be reused afterwards.
func (s *Station) Feed(posID int, chunk []byte) error {
	if _, err := s.lookup(posID); err != nil {
		return err
	}
	data := slices.Clone(chunk)
	return s.feed.Go(func() {
		dev, err := s.lookup(posID)
		if err != nil {
			log.Debug("dropping %d bytes for detached pos %d", len(data), posID)
			return
		}
		dev.Feed(data)
	})
}

// Sync waits until every chunk fed so far is framed and every resulting
// record has reached the store or the retry backlog.
func (s *Station) Sync(ctx context.Context) error {
	if err := s.feed.Do(ctx, func() error { return nil }); err != nil {
		return err
	}
	return s.io.Do(ctx, func() error { return nil })
}

// Render repaints posID's overlay now instead of at the next tick.
func (s *Station) Render(ctx context.Context, posID int) (display.RenderResult, error) {
	var res display.RenderResult
	err := s.feed.Do(ctx, func() error {
		dev, err := s.lookup(posID)
		if err != nil {
			return err
		}
		res = dev.Render()
		return nil
	})
	return res, err
}

// Frame returns posID's last published overlay frame.
func (s *Station) Frame(posID int) (*raster.Frame, error) {
	dev, err := s.lookup(posID)
	if err != nil {
		return nil, err
	}
	return dev.Frame(), nil
}

// Pause stops compositing posID's overlay on ch.
func (s *Station) Pause(ctx context.Context, posID, ch int) error {
	return s.feed.Do(ctx, func() error {
		dev, err := s.lookup(posID)
		if err != nil {
			return err
		}
		return dev.Pause(ch)
	})
}

// Resume restarts compositing posID's overlay on ch.
func (s *Station) Resume(ctx context.Context, posID, ch int) error {
	return s.feed.Do(ctx, func() error {
		dev, err := s.lookup(posID)
		if err != nil {
			return err
		}
		return dev.Resume(ch)
	})
}

// Subscribe returns a channel of device events. Events that do not fit the
// buffer are dropped. cancel unsubscribes and closes the channel.
func (s *Station) Subscribe() (events <-chan device.Event, cancel func()) {
	return s.bus.Channel(EventBuffer)
}

// Devices returns the running pos ids in ascending order.
func (s *Station) Devices() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.devices))
}

// Stats returns posID's counters.
func (s *Station) Stats(posID int) (device.Stats, error) {
	dev, err := s.lookup(posID)
	if err != nil {
		return device.Stats{}, err
	}
	return dev.Stats(), nil
}

// WriterStats returns the store queue counters.
func (s *Station) WriterStats() store.WriterStats { return s.writer.Stats() }

// Compositor returns the shared compositor context.
func (s *Station) Compositor() *compositor.Context { return s.cc }

// QueryRecords searches the archive. It runs after every write queued before it.
func (s *Station) QueryRecords(ctx context.Context, q store.Query) ([]store.Record, error) {
	var out []store.Record
	err := s.io.Do(ctx, func() error {
		var err error
		out, err = s.store.QueryRecords(ctx, q)
		return err
	})
	if err != nil {
		log.Warn("query records for pos %d: %v", q.PosID, err)
	}
	return out, err
}

// QueryItems returns a record's items in order.
func (s *Station) QueryItems(ctx context.Context, recordID int64) ([]string, error) {
	var out []string
	err := s.io.Do(ctx, func() error {
		var err error
		out, err = s.store.QueryItems(ctx, recordID)
		return err
	})
	if err != nil {
		log.Warn("query items of record %d: %v", recordID, err)
	}
	return out, err
}

// QueryTerminal searches the card-terminal archive.
func (s *Station) QueryTerminal(ctx context.Context, q store.TerminalQuery) ([]store.TerminalRecord, error) {
	var out []store.TerminalRecord
	err := s.io.Do(ctx, func() error {
		var err error
		out, err = s.store.QueryTerminal(ctx, q)
		return err
	})
	if err != nil {
		log.Warn("query terminal records for pos %d: %v", q.PosID, err)
	}
	return out, err
}
