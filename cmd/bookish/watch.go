package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/dgallion1/bookish/internal/book"
)

var watchCmd = &cobra.Command{
	Use:   "watch [book-dir]",
	Short: "Re-parse chapters as they change",
	Long: `Loads a book, then watches its chapters directory and re-parses each
chapter when it is written, reporting its markup errors.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBook(ctx, dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, ch := range b.LoadedChapters() {
		report(out, b, ch.Spec.ID)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	chapters := filepath.Join(dir, "chapters")
	if err := watcher.Add(chapters); err != nil {
		return fmt.Errorf("watch %s: %w", chapters, err)
	}
	logger.Info("watching", "dir", chapters)
	return watchLoop(ctx, watcher, b, out)
}

func watchLoop(ctx context.Context, watcher *fsnotify.Watcher, b *book.Book, out io.Writer) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			if err := reloadChapter(b, ev.Name, out); err != nil {
				logger.Warn("reload failed", "file", ev.Name, "error", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch error", "error", err)
		}
	}
}

// reloadChapter re-parses the chapter stored at path. Files that are not
// chapters of the book are ignored.
func reloadChapter(b *book.Book, path string, out io.Writer) error {
	if filepath.Ext(path) != book.ChapterExt {
		return nil
	}
	id := strings.TrimSuffix(filepath.Base(path), book.ChapterExt)
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if b.SetChapter(id, string(data)) == nil {
		logger.Debug("not a chapter of this book", "file", path)
		return nil
	}
	report(out, b, id)
	return nil
}

func report(out io.Writer, b *book.Book, id string) {
	ch, ok := b.Chapter(id)
	if !ok {
		return
	}
	status := "ok"
	if s := ch.Tree.ErrorSummary(); s != "" {
		status = s
	}
	minutes, _ := b.ReadingTime(id)
	fmt.Fprintf(out, "%s: %s, %s\n", id, status, book.ChapterEstimate(minutes, true))
	for _, msg := range ch.Tree.ErrorMessages() {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
}
