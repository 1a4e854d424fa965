package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rzpsarthak13/dbarchive/pkg/dbarchive"
)

// errProblems is returned when an operation completed but reported problems.
var errProblems = errors.New("problems were reported")

var (
	configFile  string
	envFiles    []string
	archivePath string
	archiveKind string
	format      string
	reportFile  string
)

var rootCmd = &cobra.Command{
	Use:   "dbarchive",
	Short: "Convert relational databases to and from preservation archives",
	Long: `dbarchive copies a MySQL or PostgreSQL database into a SIARD archive
and loads SIARD archives back into a database.

Configuration is read from --config (YAML or JSON), then overridden by
DBARCHIVE_* environment variables. Variables from --env-file (default .env)
are loaded first.

Examples:

  dbarchive export --config prod.yaml --archive library.siard
  dbarchive import --config staging.yaml --archive library.siard
  dbarchive inspect --archive library.siard
  dbarchive verify --archive library --kind folder-with-checksums
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errProblems) {
			color.Red("❌ %v", err)
		}
		return 1
	}
	return 0
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "Configuration file (.yaml, .yml or .json)")
	flags.StringSliceVar(&envFiles, "env-file", nil, "Files with environment variables to load (default .env)")
	flags.StringVarP(&archivePath, "archive", "a", "", "Archive path, overrides archive.path")
	flags.StringVar(&archiveKind, "kind", "", "Archive kind (packed, folder, folder-with-checksums), overrides archive.kind")
	flags.StringVarP(&format, "format", "f", "text", "Output format (text, json)")
	flags.StringVar(&reportFile, "report-json", "", "Write the problem report as JSON to this file")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(verifyCmd)
}

// loadConfig reads the configuration and applies the command line overrides.
func loadConfig() (*dbarchive.Config, error) {
	config, err := dbarchive.LoadConfig(configFile, envFiles...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if archivePath != "" {
		config.Archive.Path = archivePath
	}
	if archiveKind != "" {
		config.Archive.Kind = archiveKind
	}
	return config, nil
}

// operation is one converter call.
type operation func(conv dbarchive.Converter, ctx context.Context) (*dbarchive.Result, error)

// run builds a converter, runs op and prints its result. A run that reported
// problems returns errProblems.
func run(cmd *cobra.Command, op operation, opts ...dbarchive.Option) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported output format %q", format)
	}
	config, err := loadConfig()
	if err != nil {
		return err
	}
	if format == "text" {
		opts = append(opts, dbarchive.WithTableHook(progressHook(cmd.OutOrStdout())))
	}
	conv, err := dbarchive.NewConverter(config, opts...)
	if err != nil {
		return err
	}
	defer conv.Close()

	result, opErr := op(conv, cmd.Context())
	if result != nil {
		if err := writeReportFile(result); err != nil {
			return err
		}
		if err := printResult(cmd.OutOrStdout(), cmd.Name(), result); err != nil {
			return err
		}
	}
	if opErr != nil {
		return opErr
	}
	if !result.OK() {
		return errProblems
	}
	return nil
}

func writeReportFile(result *dbarchive.Result) error {
	if reportFile == "" {
		return nil
	}
	f, err := os.Create(reportFile)
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", reportFile, err)
	}
	defer f.Close()
	if err := result.WriteReport(f); err != nil {
		return fmt.Errorf("failed to write report %s: %w", reportFile, err)
	}
	return nil
}
