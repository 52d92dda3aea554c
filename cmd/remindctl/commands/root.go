// Package commands implements the remindctl command tree.
package commands

import (
	"os"
	"time"

	"github.com/spf13/cobra"
)

// options are the flags shared by every command
type options struct {
	server  string
	token   string
	retries int
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewRootCmd creates the remindctl root command
func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "remindctl",
		Short:         "Command line client for the reminders API",
		Long:          "Show reminder cards, toggle time slots and search reminders from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.server, "server", envOr("REMINDERS_SERVER", "http://localhost:8080"), "API base URL (env REMINDERS_SERVER)")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("REMINDERS_TOKEN"), "Bearer token (env REMINDERS_TOKEN)")
	rootCmd.PersistentFlags().IntVar(&opts.retries, "retries", 0, "Resend an update the server reports as retryable up to this many times")

	rootCmd.AddCommand(newCardCmd(opts))
	rootCmd.AddCommand(newToggleCmd(opts))
	rootCmd.AddCommand(newSearchCmd(opts))
	rootCmd.AddCommand(newAddCmd(opts))
	return rootCmd
}

func (o *options) client() *Client {
	return NewClient(o.server, o.token)
}

// parseAt reads an optional RFC 3339 --at flag
func parseAt(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}
