// ABOUTME: upload command sending one or more local files
// ABOUTME: Files go one at a time; a rejected file is reported and the rest continue

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/upload"
	"github.com/AsafNachman/file-management-system/internal/view"
	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload files",
	Long: `Upload one or more files. Files are sent one after another; a file the
server rejects does not stop the others.

Exit Codes:
  0  All files uploaded
  1  Some files failed
  2  No file uploaded, or an error occurred`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runUpload(ctx, os.Stdout, args)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
}

// runUpload uploads paths and returns exit code
func runUpload(ctx context.Context, w io.Writer, paths []string) int {
	a, err := newApp(ctx, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	// Unreadable paths never reach the batch but still count as failures
	var files []client.LocalFile
	var local []upload.Failure
	for _, p := range paths {
		f, err := client.NewLocalFile(p)
		if err != nil {
			local = append(local, upload.Failure{Filename: p, Reason: err.Error()})
			continue
		}
		files = append(files, f)
	}

	human := !IsJSONOutput()
	observer := controller.WithUploadObserver(func(i int, t upload.Task) {
		if !human {
			return
		}
		switch t.Status {
		case upload.StatusSucceeded:
			fmt.Fprintf(w, "  ✓ %s (%s)\n", t.File.DisplayName(), view.FormatSize(t.File.Size))
		case upload.StatusFailed:
			fmt.Fprintf(w, "  ✗ %s: %s\n", t.File.DisplayName(), t.Reason)
		}
	})

	r := controller.NewRunner(ctx, a.controller(observer))
	if _, err := signedIn(r); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	summary := upload.Summary{Failed: []upload.Failure{}}
	if len(files) > 0 {
		st := r.Dispatch(controller.UploadRequested{Files: files})
		if st.LastUpload == nil {
			msg := "upload did not run"
			if st.Notice != nil {
				msg = st.Notice.Text
			}
			fmt.Fprintf(w, "Error: %s\n", msg)
			return 2
		}
		summary = *st.LastUpload
	}
	for _, f := range local {
		if human {
			fmt.Fprintf(w, "  ✗ %s: %s\n", f.Filename, f.Reason)
		}
		summary.Failed = append(summary.Failed, f)
	}

	if human {
		fmt.Fprintln(w, formatUploadSummary(summary))
	} else {
		data, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Fprintln(w, string(data))
	}

	switch {
	case len(summary.Failed) == 0:
		return 0
	case summary.Succeeded > 0:
		return 1
	default:
		return 2
	}
}

// formatUploadSummary renders the batch outcome
func formatUploadSummary(s upload.Summary) string {
	out := fmt.Sprintf("Uploaded %d of %d file(s)", s.Succeeded, s.Succeeded+len(s.Failed))
	if len(s.Failed) == 0 {
		return out
	}
	out += "\nFailed:"
	for _, f := range s.Failed {
		out += fmt.Sprintf("\n  %s: %s", f.Filename, f.Reason)
	}
	return out
}
