// ABOUTME: login, logout and whoami commands
// ABOUTME: Signs in through the identity provider and persists the session for later commands

package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/tui/signin"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginUsername string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the file store",
	Long: `Sign in with your username and password. On a terminal you are prompted;
otherwise the password is read from the first line of stdin.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		interactive := term.IsTerminal(int(os.Stdin.Fd()))
		exitCode := runLogin(ctx, os.Stdout, os.Stdin, loginUsername, interactive)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the saved session",
	Run: func(cmd *cobra.Command, args []string) {
		if exitCode := runLogout(context.Background(), os.Stdout); exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user",
	Run: func(cmd *cobra.Command, args []string) {
		if exitCode := runWhoami(context.Background(), os.Stdout); exitCode != 0 {
			os.Exit(exitCode)
		}
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Username (prompted when omitted on a terminal)")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}

// promptLogin asks for credentials with the sign-in form
var promptLogin = func(login *auth.Login) error {
	if err := signin.NewForm(login).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return auth.ErrCancelled
		}
		return err
	}
	return nil
}

// runLogin signs in and returns exit code
func runLogin(ctx context.Context, w io.Writer, in io.Reader, username string, interactive bool) int {
	a, err := newApp(ctx, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	if a.cfg.Auth.TokenURL == "" {
		fmt.Fprintln(w, "Error: no identity provider configured (set auth.token_url or FILEMGR_TOKEN_URL)")
		return 2
	}

	login := auth.Login{Username: username}
	if interactive {
		if err := promptLogin(&login); err != nil {
			if errors.Is(err, auth.ErrCancelled) {
				fmt.Fprintln(w, "Sign-in cancelled")
				return 1
			}
			fmt.Fprintf(w, "Error: %v\n", err)
			return 2
		}
	} else {
		if login.Username == "" {
			fmt.Fprintln(w, "Error: --username is required when stdin is not a terminal")
			return 2
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			fmt.Fprintf(w, "Error: cannot read password: %v\n", err)
			return 2
		}
		login.Password = strings.TrimRight(line, "\r\n")
	}

	r := controller.NewRunner(ctx, a.controller())
	st := r.Dispatch(controller.SignInRequested{Login: login})
	if st.Identity == nil {
		msg := "sign-in failed"
		if st.Notice != nil {
			msg = st.Notice.Text
		}
		fmt.Fprintf(w, "Error: %s\n", msg)
		return 2
	}

	fmt.Fprintf(w, "Signed in as %s\n", st.Identity.DisplayName)
	return 0
}

// runLogout clears the saved session and returns exit code
func runLogout(ctx context.Context, w io.Writer) int {
	a, err := newApp(ctx, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}
	was := a.session.Identity()
	controller.NewRunner(ctx, a.controller()).Dispatch(controller.SignOutRequested{})

	if was == nil {
		fmt.Fprintln(w, "Not signed in")
		return 0
	}
	fmt.Fprintf(w, "Signed out %s\n", was.DisplayName)
	return 0
}

// whoamiOutput is the JSON shape of whoami
type whoamiOutput struct {
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	ObtainedAt  time.Time `json:"credential_obtained_at"`
	Expires     time.Time `json:"expires,omitempty"`
}

// runWhoami prints the current identity and returns exit code
func runWhoami(ctx context.Context, w io.Writer) int {
	a, err := newApp(ctx, nil)
	if err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
		return 2
	}

	s, ok := a.session.Session()
	if !ok {
		fmt.Fprintln(w, "Not signed in")
		return 1
	}

	out := whoamiOutput{
		UserID:      s.Identity.UserID,
		DisplayName: s.Identity.DisplayName,
		ObtainedAt:  s.ObtainedAt,
		Expires:     s.Expiry,
	}
	if IsJSONOutput() {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return 0
	}

	fmt.Fprintf(w, "User:     %s\nUser ID:  %s\n", out.DisplayName, out.UserID)
	if !out.Expires.IsZero() {
		fmt.Fprintf(w, "Expires:  %s\n", out.Expires.Local().Format(time.RFC1123))
	}
	return 0
}
