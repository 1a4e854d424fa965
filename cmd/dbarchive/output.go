package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/rzpsarthak13/dbarchive/pkg/dbarchive"
)

var (
	titleColor = color.New(color.FgCyan, color.Bold)
	okColor    = color.New(color.FgGreen, color.Bold)
	failColor  = color.New(color.FgRed, color.Bold)
	warnColor  = color.New(color.FgYellow)
)

// progressHook prints a line per finished table.
func progressHook(w io.Writer) dbarchive.TableHook {
	return dbarchive.TableHook{
		OnClose: func(ctx context.Context, table dbarchive.TableInfo, rows int64) error {
			fmt.Fprintf(w, "   - %s: %d rows\n", table.ID, rows)
			return nil
		},
	}
}

func printResult(w io.Writer, command string, result *dbarchive.Result) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	titleColor.Fprintf(w, "\n%s run %s\n", command, result.Run)
	if result.Database != "" {
		fmt.Fprintf(w, "Database: %s (archive version %s)\n", result.Database, result.Version)
	}

	switch command {
	case "inspect":
		for _, s := range result.Summaries {
			fmt.Fprintf(w, "   - %s: %d rows\n", s.ID, s.Rows)
		}
		fmt.Fprintf(w, "%d tables, %d rows declared\n", result.Tables, result.Rows)
	case "verify":
		fmt.Fprintf(w, "%d files checked, %d mismatches\n", result.Files, len(result.Mismatches))
	default:
		fmt.Fprintf(w, "%d tables, %d rows written, %d rows rejected\n", result.Tables, result.Rows, result.Rejected)
	}

	if result.OK() {
		okColor.Fprintln(w, "✅ Completed without problems")
		return nil
	}
	failColor.Fprintf(w, "\n❌ Problems (%d):\n", len(result.Problems))
	for _, p := range result.Problems {
		fmt.Fprintf(w, "  %d. ", p.Seq)
		warnColor.Fprint(w, p.Subject)
		fmt.Fprintf(w, " failed because %s\n", p.Reason)
	}
	return nil
}
