package commands

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/benvon/smart-reminders/internal/timeslots"
	"github.com/spf13/cobra"
)

const retryDelay = 500 * time.Millisecond

func cardQuery(selected string, at time.Time) url.Values {
	q := url.Values{}
	if selected != "" {
		q.Set("selected", selected)
	}
	if !at.IsZero() {
		q.Set("now", at.Format(time.RFC3339))
	}
	return q
}

// GetCard fetches the card for a reminder
func (c *Client) GetCard(ctx context.Context, id, selected string, at time.Time) (timeslots.CardView, error) {
	var view timeslots.CardView
	err := c.do(ctx, "GET", "/reminders/"+url.PathEscape(id)+"/card", cardQuery(selected, at), nil, &view)
	return view, err
}

// ToggleCard toggles slot, or the card's active slot when slot is empty
func (c *Client) ToggleCard(ctx context.Context, id, selected, slot string, at time.Time) (timeslots.CardView, error) {
	q := cardQuery(selected, at)
	if slot != "" {
		q.Set("slot", slot)
	}
	var view timeslots.CardView
	err := c.do(ctx, "POST", "/reminders/"+url.PathEscape(id)+"/card/toggle", q, nil, &view)
	return view, err
}

func newCardCmd(opts *options) *cobra.Command {
	var selected, at string

	cmd := &cobra.Command{
		Use:   "card <reminder-id>",
		Short: "Show a reminder card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseAt(at)
			if err != nil {
				return fmt.Errorf("--at must be RFC 3339: %w", err)
			}
			view, err := opts.client().GetCard(cmd.Context(), args[0], selected, when)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderCard(NewStyles(cmd.OutOrStdout()), view))
			return nil
		},
	}
	cmd.Flags().StringVar(&selected, "select", "", "Slot to show as active")
	cmd.Flags().StringVar(&at, "at", "", "Render the card at this RFC 3339 time")
	return cmd
}

func newToggleCmd(opts *options) *cobra.Command {
	var selected, slot string

	cmd := &cobra.Command{
		Use:   "toggle <reminder-id>",
		Short: "Toggle the active slot, or --slot, and show the updated card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()
			var view timeslots.CardView
			err := withRetry(cmd.Context(), opts.retries, retryDelay, func() error {
				var err error
				view, err = client.ToggleCard(cmd.Context(), args[0], selected, slot, time.Time{})
				return err
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderCard(NewStyles(cmd.OutOrStdout()), view))
			return nil
		},
	}
	cmd.Flags().StringVar(&selected, "select", "", "Slot selected on the card")
	cmd.Flags().StringVar(&slot, "slot", "", "Slot to toggle instead of the active one")
	return cmd
}
