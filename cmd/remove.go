// ABOUTME: rm command deleting one of the user's files
// ABOUTME: Asks for confirmation unless --yes is given

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/tui/styles"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var removeYes bool

var removeCmd = &cobra.Command{
	Use:     "rm ID",
	Aliases: []string{"delete"},
	Short:   "Delete a file",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		confirm := confirmDelete
		if removeYes {
			confirm = func(string) (bool, error) { return true, nil }
		} else if !term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprintln(os.Stdout, "Error: refusing to delete without confirmation; pass --yes")
			os.Exit(2)
		}

		exitCode := runRemove(ctx, os.Stdout, args[0], confirm)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	removeCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "Delete without asking")
	rootCmd.AddCommand(removeCmd)
}

// confirmDelete asks on the terminal before deleting filename
func confirmDelete(filename string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(fmt.Sprintf("Delete %s?", filename)).
		Description("This cannot be undone.").
		Affirmative("Delete").
		Negative("Cancel").
		Value(&ok).
		WithTheme(styles.FormTheme()).
		Run()
	return ok, err
}

// runRemove deletes id after confirmation and returns exit code
func runRemove(ctx context.Context, w io.Writer, id string, confirm func(filename string) (bool, error)) int {
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

	st := r.Dispatch(controller.DeleteRequested{ID: id})
	if st.PendingDelete == nil {
		msg := "cannot delete " + id
		if st.Notice != nil {
			msg = st.Notice.Text
		}
		fmt.Fprintf(w, "Error: %s\n", msg)
		return 2
	}

	ok, err := confirm(st.PendingDelete.Filename)
	if err != nil || !ok {
		r.Dispatch(controller.DeleteCancelled{})
		fmt.Fprintln(w, "Cancelled")
		return 1
	}

	st = r.Dispatch(controller.DeleteConfirmed{})
	if st.Notice == nil {
		fmt.Fprintln(w, "Error: delete did not complete")
		return 2
	}
	if st.Notice.Level == controller.LevelError {
		fmt.Fprintf(w, "Error: %s\n", st.Notice.Text)
		return 2
	}
	fmt.Fprintln(w, st.Notice.Text)
	return 0
}
