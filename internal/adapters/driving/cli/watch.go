package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/docsage-labs/docsage-cli/internal/logger"
)

// settleDelay gives the writing process time to finish before the file
// is read. Editors and downloads often create then write.
const settleDelay = 500 * time.Millisecond

// watchExtensions mirrors the extractors wired in root.go.
var watchExtensions = map[string]bool{
	".pdf": true,
	".txt": true,
	".md":  true,
}

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch a directory and ingest new documents",
	Long: `Watches a drop folder and submits every new supported file for
ingestion. Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch target %s is not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cmd.Printf("Watching %s for new documents. Ctrl-C to stop.\n", dir)

	for {
		select {
		case <-ctx.Done():
			cmd.Println("\nStopped watching.")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			ext := strings.ToLower(filepath.Ext(event.Name))
			if !watchExtensions[ext] {
				continue
			}
			go submitWatched(ctx, cmd, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		}
	}
}

// submitWatched waits for the file to settle, then submits it.
func submitWatched(ctx context.Context, cmd *cobra.Command, path string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(settleDelay):
	}

	f, err := os.Open(path)
	if err != nil {
		logger.Warn("opening %s: %v", path, err)
		return
	}
	defer f.Close()

	id, err := ingestService.Submit(ctx, f, filepath.Base(path))
	if err != nil {
		logger.Warn("submitting %s: %v", path, err)
		return
	}
	cmd.Printf("Submitted %s as %s\n", filepath.Base(path), id)
}
