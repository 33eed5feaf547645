package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/bookish/internal/doctree"
	"github.com/dgallion1/bookish/internal/editor"
	"github.com/dgallion1/bookish/internal/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a chapter and report its structure",
	Long: `Parses a chapter of bookish markup ("-" reads stdin) and prints a summary
with every markup error. --markup and --text print the normalized markup or
the plain text instead.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

var (
	parseMarkup bool
	parseText   bool
	parseJSON   bool
	parseStrict bool
)

func init() {
	parseCmd.Flags().BoolVar(&parseMarkup, "markup", false, "Print the normalized markup")
	parseCmd.Flags().BoolVar(&parseText, "text", false, "Print the plain text")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Print the summary as JSON")
	parseCmd.Flags().BoolVar(&parseStrict, "strict", false, "Fail when the chapter has markup errors")
	rootCmd.AddCommand(parseCmd)
}

type summary struct {
	Title   string   `json:"title"`
	Words   int      `json:"words"`
	Blocks  int      `json:"blocks"`
	Headers []string `json:"headers"`
	Errors  []string `json:"errors"`
}

func summarize(tree *doctree.Tree) summary {
	s := summary{
		Title:   tree.Title,
		Words:   tree.WordCount(),
		Blocks:  len(tree.Blocks()),
		Headers: []string{},
		Errors:  []string{},
	}
	for _, id := range tree.Headers() {
		s.Headers = append(s.Headers, tree.TextOf(id))
	}
	s.Errors = append(s.Errors, tree.ErrorMessages()...)
	return s
}

func parseFile(cmd *cobra.Command, path string) (*doctree.Tree, error) {
	data, err := readInput(cmd, path)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return parser.ParseChapter(string(data), parser.Options{
		Title:     title,
		Symbols:   symbols,
		Observers: []doctree.Observer{editor.LogObserver{Log: logger}},
	}), nil
}

func runParse(cmd *cobra.Command, args []string) error {
	tree, err := parseFile(cmd, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	switch {
	case parseMarkup:
		fmt.Fprintln(out, tree.Markup())
	case parseText:
		fmt.Fprintln(out, tree.Text())
	case parseJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summarize(tree)); err != nil {
			return err
		}
	default:
		s := summarize(tree)
		fmt.Fprintf(out, "%s: %d words, %d blocks, %d headers\n", s.Title, s.Words, s.Blocks, len(s.Headers))
		for _, msg := range s.Errors {
			fmt.Fprintf(out, "  error: %s\n", msg)
		}
	}

	if n := len(tree.Errors()); parseStrict && n > 0 {
		return fmt.Errorf("%s has %s", tree.Title, tree.ErrorSummary())
	}
	return nil
}
