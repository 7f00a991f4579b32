// ABOUTME: The export command: writes archived transactions as an HTML report or JSONL
// ABOUTME: Terminal payments for the same POS and range are included with -terminal

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mauromedda/posoverlay/internal/export"
	"github.com/mauromedda/posoverlay/internal/store"
)

func runExport(ctx context.Context, a exportArgs, e env) error {
	db, err := openArchive(ctx, a.db)
	if err != nil {
		return err
	}
	defer db.Close()

	txs, err := export.Transactions(ctx, db, a.query)
	if err != nil {
		return err
	}
	r := export.Report{
		Title:        fmt.Sprintf("POS %d transactions", a.query.PosID),
		Generated:    time.Now(),
		Transactions: txs,
	}
	if a.terminal {
		r.Terminal, err = db.QueryTerminal(ctx, store.TerminalQuery{
			PosID: a.query.PosID,
			Begin: a.query.Begin,
			End:   a.query.End,
			Limit: a.query.Limit,
		})
		if err != nil {
			return err
		}
	}

	var w io.Writer = e.stdout
	var f *os.File
	if a.output != "" && a.output != "-" {
		f, err = os.Create(a.output)
		if err != nil {
			return err
		}
		w = f
	}
	if a.format == "jsonl" {
		err = export.JSONL(r, w)
	} else {
		err = export.HTML(r, w)
	}
	if f != nil {
		err = errors.Join(err, f.Close())
	}
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if f != nil {
		fmt.Fprintf(e.stderr, "wrote %d transactions and %d payments to %s\n", len(r.Transactions), len(r.Terminal), a.output)
	}
	return nil
}
