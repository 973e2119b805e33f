// ABOUTME: browse command launching the interactive file manager
// ABOUTME: Logs go to a file under the config dir while the alt screen is active

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AsafNachman/file-management-system/internal/config"
	"github.com/AsafNachman/file-management-system/internal/logger"
	"github.com/AsafNachman/file-management-system/internal/tui"
	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:     "browse",
	Aliases: []string{"ui", "tui"},
	Short:   "Open the interactive file manager",
	Long: `Open a full-screen view of your files. Sign in, search, filter by type,
sort by date or size, upload several files at once, and download or delete
the files you own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()
		return runBrowse(ctx)
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

func runBrowse(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	log, closeLog, err := logger.InitFile(config.DefaultDir(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: file logging disabled: %v\n", err)
		log = logger.New(io.Discard, cfg.Log.Level, cfg.Log.Format)
		closeLog = func() {}
	}
	defer closeLog()

	a, err := newApp(ctx, log)
	if err != nil {
		return err
	}
	return tui.Run(ctx, a.controller(), a.repo.BaseURL())
}
