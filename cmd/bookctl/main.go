// Package main is bookctl, a command-line client for the book tracker API.
//
// bookctl talks to a running server over HTTP using the same internal/client
// package any Go program would. The session token from `bookctl login` is
// stored in a file under the user's config directory, so subsequent commands
// run authenticated without prompting again.
//
// USAGE:
//
//	bookctl login alice@example.com
//	bookctl list
//	bookctl add "Dune" "Frank Herbert"
//	bookctl status <book-id> --next
//	bookctl rate <book-id> 5
//	bookctl sell <book-id>
//	bookctl stats
//	bookctl search dune
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"booktracker/internal/client"
)

// serverURL is settable with --server on every command; BOOKTRACKER_URL is
// the environment fallback for people who always talk to the same host.
var serverURL string

var rootCmd = &cobra.Command{
	Use:   "bookctl",
	Short: "Command-line client for the book tracker",
	Long: `bookctl manages your personal book collection from the terminal.

Log in once with "bookctl login"; the session token is saved locally and
reused until it expires (30 days) or you run "bookctl logout".`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("BOOKTRACKER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultURL, "base URL of the book tracker server")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rateCmd)
	rootCmd.AddCommand(sellCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(searchCmd)
}

// tokenPath returns where the session token lives, e.g.
// ~/.config/bookctl/token on Linux.
func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config dir: %w", err)
	}
	return filepath.Join(dir, "bookctl", "token"), nil
}

// saveToken writes the session token with owner-only permissions — it is a
// credential, not a cache.
func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, []byte(token), 0600)
}

func clearToken() error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// apiClient builds a client for serverURL and resumes the saved session
// (if any). Commands that require auth will get a 401 from the server if
// the session is missing or expired — no need to pre-check here.
func apiClient() *client.Client {
	c := client.New(strings.TrimRight(serverURL, "/"))
	if path, err := tokenPath(); err == nil {
		if raw, err := os.ReadFile(path); err == nil {
			c.SetToken(strings.TrimSpace(string(raw)))
		}
	}
	return c
}
