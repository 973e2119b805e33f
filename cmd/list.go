// ABOUTME: ls command listing the signed-in user's files
// ABOUTME: Sort, type filter and search map directly onto the list query

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
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	"github.com/AsafNachman/file-management-system/internal/view"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
)

// listOptions are the ls flags
type listOptions struct {
	sortBy   string
	fileType string
	search   string
}

var listFlags listOptions

var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List your files",
	Long: `List stored files, newest first by default.

Examples:
  filemgr ls --sort size
  filemgr ls --type application/pdf --search report`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exitCode := runList(ctx, os.Stdout, listFlags)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	listCmd.Flags().StringVar(&listFlags.sortBy, "sort", string(view.SortByDate), "Sort by date or size")
	listCmd.Flags().StringVar(&listFlags.fileType, "type", "", "Only files of this MIME type (e.g. application/pdf)")
	listCmd.Flags().StringVar(&listFlags.search, "search", "", "Only files whose name contains this text")
	rootCmd.AddCommand(listCmd)
}

func (o listOptions) patch() view.Patch {
	sortBy := view.SortKey(o.sortBy)
	return view.Patch{SortBy: &sortBy, FileType: &o.fileType, Search: &o.search}
}

// runList fetches the file list and returns exit code
func runList(ctx context.Context, w io.Writer, opts listOptions) int {
	a, err := newApp(ctx, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	r := controller.NewRunner(ctx, a.controller())
	st := r.Dispatch(controller.CriteriaChanged{Patch: opts.patch()})
	if st.Notice != nil {
		fmt.Fprintf(w, "Error: %s\n", st.Notice.Text)
		return 2
	}

	st, err = signedIn(r)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if err := noticeError(st); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	if IsJSONOutput() {
		fmt.Fprintln(w, formatFilesJSON(st.Files))
	} else {
		fmt.Fprintln(w, formatFilesHuman(st.Files, st.Criteria))
	}
	return 0
}

// formatFilesHuman renders the list as a table with a totals line
func formatFilesHuman(files []client.FileRecord, criteria view.Criteria) string {
	if len(files) == 0 {
		return "No files found."
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(styles.TableBorder).
		Headers("ID", "NAME", "TYPE", "SIZE", "UPLOADED")
	for _, f := range files {
		t.Row(f.ID, f.Filename, f.ContentType, view.FormatSize(f.Size), view.FormatDate(f.UploadDate))
	}

	summary := fmt.Sprintf("%d file(s), %s, sorted by %s", len(files), view.TotalSize(files), criteria.SortBy)
	if criteria.FileType != "" {
		summary += ", type " + view.TypeLabel(criteria.FileType)
	}
	if criteria.Search != "" {
		summary += fmt.Sprintf(", matching %q", criteria.Search)
	}
	return t.Render() + "\n" + summary
}

// formatFilesJSON formats the list as JSON
func formatFilesJSON(files []client.FileRecord) string {
	if files == nil {
		files = []client.FileRecord{}
	}
	data, _ := json.MarshalIndent(files, "", "  ")
	return string(data)
}
