package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/bookish/internal/book"
	"github.com/dgallion1/bookish/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export [chapter-file|book-dir]",
	Short: "Render a chapter or a whole book as HTML",
	Long: `Renders HTML for printing. Given a directory containing book.json, every
chapter under chapters/ is rendered into one document with references
resolved. Given a chapter file, a standalone page is rendered.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

var (
	exportOutput   string
	exportManifest string
)

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Write HTML to a file instead of stdout")
	exportCmd.Flags().StringVarP(&exportManifest, "manifest", "m", "", "Resolve a chapter's references against this book.json")
	rootCmd.AddCommand(exportCmd)
}

// isBookDir reports whether path is a directory holding a manifest.
func isBookDir(path string) bool {
	info, err := os.Stat(filepath.Join(path, book.ManifestFile))
	return err == nil && !info.IsDir()
}

func openBook(ctx context.Context, dir string) (*book.Book, error) {
	b, err := book.Open(dir, logger)
	if err != nil {
		return nil, err
	}
	b.WordsPerMinute = cfg.WordsPerMinute
	b.MaxConcurrent = cfg.MaxConcurrentParse
	b.Symbols = mergeSymbols(symbols, b.Symbols)
	if err := b.Load(ctx); err != nil {
		return b, err
	}
	return b, nil
}

// mergeSymbols layers book symbols over the global ones.
func mergeSymbols(global, local map[string]string) map[string]string {
	out := make(map[string]string, len(global)+len(local))
	for k, v := range global {
		out[k] = v
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

func runExport(cmd *cobra.Command, args []string) error {
	var buf bytes.Buffer
	if isBookDir(args[0]) {
		b, err := openBook(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := export.Book(&buf, b); err != nil {
			return err
		}
		return writeOutput(cmd, exportOutput, buf.Bytes())
	}

	tree, err := parseFile(cmd, args[0])
	if err != nil {
		return err
	}
	opts := export.Options{}
	if exportManifest != "" {
		m, err := book.LoadManifest(exportManifest)
		if err != nil {
			return err
		}
		opts.Resolver = m
	}
	if err := export.Page(&buf, tree, opts); err != nil {
		return err
	}
	return writeOutput(cmd, exportOutput, buf.Bytes())
}
