// ABOUTME: Fixes lipgloss to a dark background before bubbletea's init can query the terminal
// ABOUTME: Import with _ ahead of any package that pulls in bubbletea

package termfix

import "github.com/charmbracelet/lipgloss"

func init() {
	// bubbletea's init asks lipgloss for the background colour, which sends
	// OSC 11 to the terminal. The reply arrives on stdin and would be fed to
	// a POS source as capture data. With the colour set explicitly lipgloss
	// never asks.
	//
	// This package must not import bubbletea, directly or transitively.
	lipgloss.SetHasDarkBackground(true)
}
