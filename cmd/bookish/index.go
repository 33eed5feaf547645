package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgallion1/bookish/internal/index"
)

var indexCmd = &cobra.Command{
	Use:   "index [book-dir|files...]",
	Short: "Build the word index of a book or a set of chapters",
	Long: `Prints every indexed word followed by the chapters that use it. Given a
book directory the units are chapter IDs; given files they are file names
without extension.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

var indexMinLength int

func init() {
	indexCmd.Flags().IntVar(&indexMinLength, "min-length", 0, "Shortest word to index (default from config)")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	minLength := indexMinLength
	if minLength <= 0 {
		minLength = cfg.MinWordLength
	}

	var ix index.Index
	if len(args) == 1 && isBookDir(args[0]) {
		b, err := openBook(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ix = b.Index(minLength)
	} else {
		builder := index.NewBuilder(minLength)
		for _, path := range args {
			tree, err := parseFile(cmd, path)
			if err != nil {
				return err
			}
			builder.Set(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), tree.Text())
		}
		ix = builder.Build()
	}

	out := cmd.OutOrStdout()
	for _, word := range ix.Words() {
		fmt.Fprintf(out, "%s: %s\n", word, strings.Join(ix[word], ", "))
	}
	return nil
}
