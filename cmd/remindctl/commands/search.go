package commands

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/benvon/smart-reminders/internal/handlers"
	"github.com/spf13/cobra"
)

// ListReminders fetches one page of reminders matching query
func (c *Client) ListReminders(ctx context.Context, query string, page, pageSize int) (handlers.ListRemindersResponse, error) {
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	if pageSize > 0 {
		q.Set("page_size", strconv.Itoa(pageSize))
	}
	var resp handlers.ListRemindersResponse
	err := c.do(ctx, "GET", "/reminders", q, nil, &resp)
	return resp, err
}

func newSearchCmd(opts *options) *cobra.Command {
	var page, pageSize int

	cmd := &cobra.Command{
		Use:     "search [query]",
		Aliases: []string{"ls"},
		Short:   "List reminders, highlighting matches for query",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.client().ListReminders(cmd.Context(), strings.Join(args, " "), page, pageSize)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), RenderList(NewStyles(cmd.OutOrStdout()), resp))
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Reminders per page (server default when 0)")
	return cmd
}
