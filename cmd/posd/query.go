// ABOUTME: Archive search commands (query, items, terminal) and the config printer
// ABOUTME: Results are laid out as column-aligned tables styled with lipgloss

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mauromedda/posoverlay/internal/config"
	"github.com/mauromedda/posoverlay/internal/store"
	"github.com/mauromedda/posoverlay/pkg/textwidth"
)

// maxCell caps the width of one table cell.
const maxCell = 48

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	partialStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// openArchive opens an existing archive; unlike store.Open it never creates one.
func openArchive(ctx context.Context, path string) (*store.SQLite, error) {
	if path == "" {
		path = config.DefaultStorePath()
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no archive at %s", path)
		}
		return nil, err
	}
	return store.Open(ctx, path)
}

func runQuery(ctx context.Context, a queryArgs, e env) error {
	db, err := openArchive(ctx, a.db)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.QueryRecords(ctx, a.query)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(e.stdout, dimStyle.Render("no transactions"))
		return nil
	}
	fmt.Fprint(e.stdout, recordTable(recs))
	return nil
}

func recordTable(recs []store.Record) string {
	t := table{header: []string{"ID", "POS", "START", "STOP", "CHANNELS", "STATUS"}}
	for _, r := range recs {
		status := "complete"
		if r.Partial {
			status = "partial"
		}
		t.add(r.Partial,
			strconv.FormatInt(r.ID, 10),
			r.PosName,
			r.Start.Format(time.DateTime),
			r.Stop.Format(time.DateTime),
			channelList(r.Channels),
			status,
		)
	}
	return t.render()
}

func runItems(ctx context.Context, a itemsArgs, e env) error {
	db, err := openArchive(ctx, a.db)
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := db.QueryItems(ctx, a.id)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		fmt.Fprintln(e.stdout, dimStyle.Render(fmt.Sprintf("transaction %d has no items", a.id)))
		return nil
	}
	t := table{header: []string{"#", "ITEM"}}
	for i, item := range items {
		t.add(false, strconv.Itoa(i+1), item)
	}
	fmt.Fprint(e.stdout, t.render())
	return nil
}

func runTerminal(ctx context.Context, a terminalArgs, e env) error {
	db, err := openArchive(ctx, a.db)
	if err != nil {
		return err
	}
	defer db.Close()

	recs, err := db.QueryTerminal(ctx, a.query)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(e.stdout, dimStyle.Render("no terminal payments"))
		return nil
	}
	fmt.Fprint(e.stdout, terminalTable(recs))
	return nil
}

func terminalTable(recs []store.TerminalRecord) string {
	t := table{header: []string{"ID", "TIME", "CODE", "CARD", "MONEY", "MODEL", "SERIAL", "RECEIVED"}}
	for _, r := range recs {
		received := ""
		if !r.DevTime.IsZero() {
			received = r.DevTime.Format(time.DateTime)
		}
		t.add(false,
			strconv.FormatInt(r.ID, 10),
			terminalTime(r.Time),
			r.TerminalCode,
			r.CardID,
			r.Money,
			r.TerminalModel,
			r.Serial,
			received,
		)
	}
	return t.render()
}

// terminalTime reformats a compact terminal timestamp for reading; anything
// else is shown as sent.
func terminalTime(s string) string {
	t, err := time.ParseInLocation(store.TimeLayout, s, time.Local)
	if err != nil {
		return s
	}
	return t.Format(time.DateTime)
}

func channelList(ch []int) string {
	parts := make([]string, len(ch))
	for i, c := range ch {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

func runConfig(a configArgs, e env) error {
	settings, err := config.Load(a.config)
	if err != nil {
		return err
	}
	fmt.Fprint(e.stdout, config.Explain(settings))
	return nil
}

// table aligns cells by display width. Cell text comes from POS devices, so it
// is sanitized before it reaches the terminal.
type table struct {
	header []string
	rows   [][]string
	warn   []bool
}

func (t *table) add(warn bool, cells ...string) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = textwidth.Truncate(textwidth.Sanitize(c), maxCell)
	}
	t.rows = append(t.rows, row)
	t.warn = append(t.warn, warn)
}

func (t *table) render() string {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = textwidth.Width(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], textwidth.Width(c))
			}
		}
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render(t.line(t.header, widths)))
	b.WriteByte('\n')
	for i, row := range t.rows {
		line := t.line(row, widths)
		if t.warn[i] {
			line = partialStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (t *table) line(cells []string, widths []int) string {
	var b strings.Builder
	for i, w := range widths {
		var c string
		if i < len(cells) {
			c = cells[i]
		}
		if i == len(widths)-1 {
			b.WriteString(c)
			break
		}
		b.WriteString(textwidth.PadRight(c, w))
		b.WriteString("  ")
	}
	return strings.TrimRight(b.String(), " ")
}
