// ABOUTME: Tests for human-readable config explanation rendering
// ABOUTME: Covers empty and full settings scenarios

package config

import (
	"strings"
	"testing"
)

func TestExplain_EmptySettings(t *testing.T) {
	t.Parallel()

	result := Explain(nil)
	for _, section := range []string{"General", "Store", "Display", "Sources", "(none)"} {
		if !strings.Contains(result, section) {
			t.Errorf("Explain(nil) missing %q:\n%s", section, result)
		}
	}
}

func TestExplain_FullSettings(t *testing.T) {
	t.Parallel()

	off := false
	s := &Settings{
		LogLevel: "debug",
		Channels: 8,
		Store:    StoreSettings{Path: "/data/posd.db", Backlog: 32, RetryMS: 500},
		Display:  DisplaySettings{Width: 600, Height: 700, IdleTicks: -1},
		Sources: []Source{{
			ID:        2,
			Name:      "Till 2",
			StartTag:  "<S>",
			StopTag:   "<E>",
			Separator: ";",
			Channels:  []int{1, 3},
			Compose:   &off,
			Transport: "udp",
		}},
	}
	result := Explain(s)

	for _, want := range []string{
		"LogLevel:  debug",
		"Path:      /data/posd.db",
		"Retry:     500ms",
		"Size:      600x700",
		"never clears",
		"[2] Till 2 (receipt)",
		`Tags:      "<S>" .. "<E>" sep ";"`,
		"Channels:  1, 3",
		"Overlay:   off",
		"Transport: udp",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("Explain missing %q:\n%s", want, result)
		}
	}
}
