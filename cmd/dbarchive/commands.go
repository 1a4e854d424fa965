package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/dbarchive/pkg/dbarchive"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Copy a database into a new archive",
	Long: `Export reads the configured schemas of the database and writes them,
structure and content, into a new archive at archive.path.

Rows and tables that cannot be copied are reported and skipped; the command
exits non-zero when anything was reported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(conv dbarchive.Converter, ctx context.Context) (*dbarchive.Result, error) {
			return conv.Export(ctx)
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load an archive into a database",
	Long: `Import detects the archive version, reads its metadata, creates the
missing schemas and tables (unless transfer.create_tables is off) and
inserts every row.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(conv dbarchive.Converter, ctx context.Context) (*dbarchive.Result, error) {
			return conv.Import(ctx)
		})
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the tables an archive declares",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(conv dbarchive.Converter, ctx context.Context) (*dbarchive.Result, error) {
			return conv.Inspect(ctx)
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check archive files against their recorded checksums",
	Long: `Verify recomputes the checksum of every file listed in the archive's
manifest (manifest-<scheme>.txt of a folder-with-checksums archive, or the
file index of a SIARD-DK archive) and reports every mismatch.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, func(conv dbarchive.Converter, ctx context.Context) (*dbarchive.Result, error) {
			return conv.Verify(ctx)
		})
	},
}
