// ABOUTME: get command downloading one of the user's files
// ABOUTME: Saves under the original filename without overwriting existing files

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/spf13/cobra"
)

var getDir string

var getCmd = &cobra.Command{
	Use:     "get ID",
	Aliases: []string{"download"},
	Short:   "Download a file",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runGet(ctx, os.Stdout, args[0], getDir)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	getCmd.Flags().StringVarP(&getDir, "dir", "d", "", "Directory to save into (default: download_dir from config)")
	rootCmd.AddCommand(getCmd)
}

// runGet downloads id into dir and returns exit code
func runGet(ctx context.Context, w io.Writer, id, dir string) int {
	a, err := newApp(ctx, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	r := controller.NewRunner(ctx, a.controller())
	if _, err := signedIn(r); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	st := r.Dispatch(controller.DownloadRequested{ID: id, Dir: dir})
	if st.LastDownload == "" {
		msg := "download did not complete"
		if st.Notice != nil {
			msg = st.Notice.Text
		}
		fmt.Fprintf(w, "Error: %s\n", msg)
		return 2
	}
	fmt.Fprintln(w, st.LastDownload)
	return 0
}
