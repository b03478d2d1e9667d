package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"candlecache/internal/app"
	"candlecache/internal/syncer"

	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) bool {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return true
	}
	return false
}

func writeStatus(w io.Writer, format string, rep app.StatusReport) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rep); err != nil {
			return err
		}
		return enc.Close()
	}

	fmt.Fprintf(w, "cache root: %s\npairs in catalog: %d\n\n", rep.CacheRoot, rep.Pairs)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tUNIT\tCSV\tJSON")
	for _, e := range rep.Inventory {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Symbol, e.TimeUnit, yesNo(e.Tabular), yesNo(e.Canonical))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(rep.Manifest) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tUNIT\tROWS\tFIRST\tLAST\tSYNCED\tERROR")
	for _, r := range rep.Manifest {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
			r.Symbol, r.TimeUnit, r.Rows, fmtMillis(r.MinTime), fmtMillis(r.MaxTime), fmtMillis(r.LastSyncAt), r.LastError)
	}
	return tw.Flush()
}

func printOutcome(w io.Writer, out syncer.Outcome) {
	state := "updated"
	if out.Skipped {
		state = "up to date"
	}
	fmt.Fprintf(w, "%s %s: %s, %d candles cached (+%d, fetched %d) in %s\n",
		out.Pair.Symbol, out.TimeUnit, state, out.Candles, out.Added, out.Fetched, out.Elapsed.Round(time.Millisecond))
}

func printSummary(w io.Writer, sum syncer.Summary) {
	for _, o := range sum.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(w, "%s %s: FAILED: %v\n", o.Pair.Symbol, o.TimeUnit, o.Err)
			continue
		}
		printOutcome(w, o)
	}
	fmt.Fprintf(w, "run %s (%s): %d ok, %d failed in %s\n",
		sum.RunID, sum.TimeUnit.Code, sum.Succeeded, sum.Failed, sum.Elapsed.Round(time.Millisecond))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}

func fmtMillis(ms int64) string {
	if ms <= 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02 15:04")
}
