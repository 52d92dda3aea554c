package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/benvon/smart-reminders/internal/models"
	"github.com/spf13/cobra"
)

// CreateReminder creates a reminder
func (c *Client) CreateReminder(ctx context.Context, req handlers.CreateReminderRequest) (*models.Reminder, error) {
	var r models.Reminder
	if err := c.do(ctx, "POST", "/reminders", nil, req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func newAddCmd(opts *options) *cobra.Command {
	var description, at string
	var slots []string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a reminder at --at or with one --slot HH:MM per time of day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := handlers.CreateReminderRequest{Title: args[0], Description: description}
			for _, s := range slots {
				if _, err := models.ParseTimeOfDay(s); err != nil {
					return err
				}
				req.TimeSlots = append(req.TimeSlots, handlers.TimeSlotRequest{Time: s})
			}
			when, err := parseAt(at)
			if err != nil {
				return fmt.Errorf("--at must be RFC 3339: %w", err)
			}
			if !when.IsZero() {
				req.ScheduledTime = &when
			}
			if len(slots) == 0 && when.IsZero() {
				return fmt.Errorf("either --at or at least one --slot is required")
			}

			r, err := opts.client().CreateReminder(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s (%d time slots)\n", r.ID, len(r.TimeSlots))
			if !r.IsMultiTime() {
				fmt.Fprintf(cmd.OutOrStdout(), "Due %s\n", r.ScheduledTime.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Reminder description")
	cmd.Flags().StringVar(&at, "at", "", "Due time for a single-time reminder (RFC 3339)")
	cmd.Flags().StringArrayVar(&slots, "slot", nil, "Time of day HH:MM; repeat for several slots")
	return cmd
}
