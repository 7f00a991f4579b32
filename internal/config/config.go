// ABOUTME: Station settings: store, display, and per-POS sources, loaded from YAML or TOML
// ABOUTME: The station-wide file is merged with the per-user file; sources merge by id

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Defaults applied by Load to zero fields.
const (
	DefaultChannels = 16
	DefaultWidth    = 600
	DefaultHeight   = 700
	DefaultRenderMS = 100
	DefaultRetryMS  = 1000
)

// Settings holds the merged configuration.
type Settings struct {
	LogLevel string          `yaml:"log_level,omitempty" toml:"log_level,omitempty"`
	Channels int             `yaml:"channels,omitempty" toml:"channels,omitempty"`
	Store    StoreSettings   `yaml:"store,omitempty" toml:"store,omitempty"`
	Display  DisplaySettings `yaml:"display,omitempty" toml:"display,omitempty"`
	Sources  []Source        `yaml:"sources,omitempty" toml:"sources,omitempty"`
}

// StoreSettings configures the archive and its write-behind queue.
type StoreSettings struct {
	Path     string `yaml:"path,omitempty" toml:"path,omitempty"`
	Backlog  int    `yaml:"backlog,omitempty" toml:"backlog,omitempty"`
	Attempts int    `yaml:"attempts,omitempty" toml:"attempts,omitempty"`
	RetryMS  int    `yaml:"retry_ms,omitempty" toml:"retry_ms,omitempty"`
}

// DisplaySettings configures every source's overlay canvas.
type DisplaySettings struct {
	Width    int    `yaml:"width,omitempty" toml:"width,omitempty"`
	Height   int    `yaml:"height,omitempty" toml:"height,omitempty"`
	Format   string `yaml:"format,omitempty" toml:"format,omitempty"`
	MarginX  int    `yaml:"margin_x,omitempty" toml:"margin_x,omitempty"`
	RenderMS int    `yaml:"render_ms,omitempty" toml:"render_ms,omitempty"`
	// IdleTicks is the number of renders before an untouched overlay clears.
	// Zero means the default; negative never clears.
	IdleTicks int `yaml:"idle_ticks,omitempty" toml:"idle_ticks,omitempty"`
}

// Source describes one POS device. Transport fields are carried for the
// process that owns the sockets and serial lines; posd itself only frames
// bytes handed to it.
type Source struct {
	ID        int    `yaml:"id" toml:"id"`
	Name      string `yaml:"name,omitempty" toml:"name,omitempty"`
	Mode      string `yaml:"mode,omitempty" toml:"mode,omitempty"`
	StartTag  string `yaml:"start_tag,omitempty" toml:"start_tag,omitempty"`
	StopTag   string `yaml:"stop_tag,omitempty" toml:"stop_tag,omitempty"`
	Separator string `yaml:"separator,omitempty" toml:"separator,omitempty"`
	Encoding  string `yaml:"encoding,omitempty" toml:"encoding,omitempty"`
	Capacity  int    `yaml:"capacity,omitempty" toml:"capacity,omitempty"`
	Channels  []int  `yaml:"channels,omitempty" toml:"channels,omitempty"`
	FontSize  int    `yaml:"font_size,omitempty" toml:"font_size,omitempty"`
	Position  string `yaml:"position,omitempty" toml:"position,omitempty"`
	Orphan    string `yaml:"orphan,omitempty" toml:"orphan,omitempty"`
	// Compose turns the overlay off when set to false; records are still kept.
	Compose *bool `yaml:"compose,omitempty" toml:"compose,omitempty"`

	Transport string `yaml:"transport,omitempty" toml:"transport,omitempty"`
	Address   string `yaml:"address,omitempty" toml:"address,omitempty"`
	Port      int    `yaml:"port,omitempty" toml:"port,omitempty"`
	Device    string `yaml:"device,omitempty" toml:"device,omitempty"`
	Baud      int    `yaml:"baud,omitempty" toml:"baud,omitempty"`
}

// Composes reports whether the source's overlay is shown.
func (s Source) Composes() bool { return s.Compose == nil || *s.Compose }

// Source returns the source with the given id.
func (s *Settings) Source(id int) (Source, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return Source{}, false
}

// RenderInterval is the display render cadence.
func (d DisplaySettings) RenderInterval() time.Duration {
	return time.Duration(d.RenderMS) * time.Millisecond
}

// RetryInterval is how often the store queue retries failed writes.
func (s StoreSettings) RetryInterval() time.Duration {
	return time.Duration(s.RetryMS) * time.Millisecond
}

// Load reads the settings. With an explicit path only that file is read and
// it must exist; otherwise the station-wide and per-user files are merged,
// either of which may be missing. The result has defaults applied and is
// validated.
func Load(path string) (*Settings, error) {
	var (
		s   *Settings
		err error
	)
	if path != "" {
		s, err = loadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
	} else {
		s, err = LoadFiles(GlobalConfigFile(), UserConfigFile())
		if err != nil {
			return nil, err
		}
	}
	return finish(s)
}

// LoadFiles merges the files in order, later files overriding earlier ones.
// Missing files are skipped. Defaults and validation are not applied.
func LoadFiles(paths ...string) (*Settings, error) {
	merged := &Settings{}
	for _, p := range paths {
		s, err := loadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("loading %s: %w", p, err)
		}
		merged = merge(merged, s)
	}
	return merged, nil
}

func finish(s *Settings) (*Settings, error) {
	ResolveEnvVars(s)
	ApplyDefaults(s)
	if err := Validate(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse decodes one document; format is "toml" or "yaml".
func Parse(data []byte, format string) (*Settings, error) {
	var s Settings
	switch strings.ToLower(format) {
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	case "yaml", "yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}
	return &s, nil
}

// loadFile reads a Settings file, choosing the decoder by extension.
func loadFile(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// merge overlays user settings onto global settings. Non-zero user values
// win; user sources replace global sources with the same id.
func merge(global, user *Settings) *Settings {
	if global == nil {
		global = &Settings{}
	}
	if user == nil {
		return global
	}

	result := *global
	result.Sources = slices.Clone(global.Sources)

	if user.LogLevel != "" {
		result.LogLevel = user.LogLevel
	}
	if user.Channels != 0 {
		result.Channels = user.Channels
	}

	if user.Store.Path != "" {
		result.Store.Path = user.Store.Path
	}
	if user.Store.Backlog != 0 {
		result.Store.Backlog = user.Store.Backlog
	}
	if user.Store.Attempts != 0 {
		result.Store.Attempts = user.Store.Attempts
	}
	if user.Store.RetryMS != 0 {
		result.Store.RetryMS = user.Store.RetryMS
	}

	if user.Display.Width != 0 {
		result.Display.Width = user.Display.Width
	}
	if user.Display.Height != 0 {
		result.Display.Height = user.Display.Height
	}
	if user.Display.Format != "" {
		result.Display.Format = user.Display.Format
	}
	if user.Display.MarginX != 0 {
		result.Display.MarginX = user.Display.MarginX
	}
	if user.Display.RenderMS != 0 {
		result.Display.RenderMS = user.Display.RenderMS
	}
	if user.Display.IdleTicks != 0 {
		result.Display.IdleTicks = user.Display.IdleTicks
	}

	for _, src := range user.Sources {
		i := slices.IndexFunc(result.Sources, func(g Source) bool { return g.ID == src.ID })
		if i >= 0 {
			result.Sources[i] = src
		} else {
			result.Sources = append(result.Sources, src)
		}
	}
	slices.SortStableFunc(result.Sources, func(a, b Source) int { return a.ID - b.ID })

	return &result
}

// ApplyDefaults fills zero fields.
func ApplyDefaults(s *Settings) {
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.Channels == 0 {
		s.Channels = DefaultChannels
	}
	if s.Store.Path == "" {
		s.Store.Path = DefaultStorePath()
	}
	if s.Store.RetryMS == 0 {
		s.Store.RetryMS = DefaultRetryMS
	}
	if s.Display.Width == 0 {
		s.Display.Width = DefaultWidth
	}
	if s.Display.Height == 0 {
		s.Display.Height = DefaultHeight
	}
	if s.Display.RenderMS == 0 {
		s.Display.RenderMS = DefaultRenderMS
	}
	for i := range s.Sources {
		if s.Sources[i].Name == "" {
			s.Sources[i].Name = fmt.Sprintf("POS %d", s.Sources[i].ID)
		}
	}
}
