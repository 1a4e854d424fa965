package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/rzpsarthak13/dbarchive/internal/archive"
	"github.com/rzpsarthak13/dbarchive/pkg/dbarchive"
)

func init() {
	color.NoColor = true
}

func TestPrintResult(t *testing.T) {
	format = "text"
	result := &dbarchive.Result{
		Run:       "r1",
		Database:  "library",
		Version:   "2.1",
		Tables:    1,
		Rows:      2,
		Summaries: []dbarchive.TableSummary{{ID: "shop.books", Rows: 2}},
	}

	var buf bytes.Buffer
	if err := printResult(&buf, "inspect", result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"inspect run r1", "Database: library (archive version 2.1)", "- shop.books: 2 rows", "Completed without problems"} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("expected %q in %q", want, buf.String())
		}
	}

	result.Problems = []dbarchive.Problem{{Seq: 1, Subject: "Row 2 of table `shop.books`", Reason: "column price"}}
	buf.Reset()
	if err := printResult(&buf, "export", result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "1. Row 2 of table `shop.books` failed because column price") {
		t.Fatalf("expected the itemized problem in %q", buf.String())
	}
}

func TestVerifyCommand(t *testing.T) {
	dir := t.TempDir()
	root := filepath.Join(dir, "library")
	if err := os.MkdirAll(filepath.Join(root, "header", "siardversion", "2.2"), 0o755); err != nil {
		t.Fatalf("failed to create archive: %v", err)
	}
	metadataFile := filepath.Join(root, "header", "metadata.xml")
	if err := os.WriteFile(metadataFile, []byte("<siardArchive/>"), 0o644); err != nil {
		t.Fatalf("failed to write metadata: %v", err)
	}
	if _, err := archive.WriteManifest(root, archive.MD5); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	reportPath := filepath.Join(dir, "report.json")
	args := []string{
		"verify",
		"--archive", root,
		"--kind", "folder-with-checksums",
		"--env-file", filepath.Join(dir, "missing.env"),
		"--report-json", reportPath,
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "1 files checked, 0 mismatches") {
		t.Fatalf("unexpected output %q", out.String())
	}

	if err := os.WriteFile(metadataFile, []byte("<changed/>"), 0o644); err != nil {
		t.Fatalf("failed to tamper: %v", err)
	}
	out.Reset()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); !errors.Is(err, errProblems) {
		t.Fatalf("expected errProblems, got %v", err)
	}
	report, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("expected a report file: %v", err)
	}
	if !strings.Contains(string(report), "header/metadata.xml") {
		t.Fatalf("unexpected report %s", report)
	}
}
