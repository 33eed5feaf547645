package main

import (
	"bytes"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dgallion1/bookish/internal/parser"
)

var importCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Convert a document into bookish markup",
	Long: fmt.Sprintf(`Converts a document into bookish markup. The format is chosen by file
extension: %v.`, parser.Extensions()),
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

var importOutput string

func init() {
	importCmd.Flags().StringVarP(&importOutput, "output", "o", "", "Write markup to a file instead of stdout")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	p, err := parser.ForFile(path)
	if err != nil {
		return err
	}
	switch p := p.(type) {
	case *parser.PDFParser:
		p.FallbackPdftotext = cfg.PDFFallbackPdftotext
	case *parser.MarkupParser:
		p.Symbols = symbols
	}

	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	tree, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
	if err != nil {
		return fmt.Errorf("import %s: %w", path, err)
	}
	logger.Info("imported", "file", path, "words", tree.WordCount(), "blocks", len(tree.Blocks()))
	return writeOutput(cmd, importOutput, []byte(tree.Markup()+"\n"))
}
