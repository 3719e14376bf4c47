package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"folios/internal/client"
	"folios/internal/models"
	"folios/internal/reconcile"
)

const defaultAPIURL = "http://localhost:8080"

type rootOptions struct {
	apiURL  string
	token   string
	verbose bool
}

func (o *rootOptions) client() (*client.Client, error) {
	if o.token == "" {
		return nil, errors.New("no token: pass --token or set FOLIOS_TOKEN")
	}
	return client.New(o.apiURL, o.token), nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "folios",
		Short:         "Manage your saved bookmarks from the terminal",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()})
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
			if opts.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.apiURL, "api", envOr("FOLIOS_API_URL", defaultAPIURL), "base URL of the bookmark API")
	cmd.PersistentFlags().StringVar(&opts.token, "token", os.Getenv("FOLIOS_TOKEN"), "session token (the jwt cookie value)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newListCmd(opts),
		newAddCmd(opts),
		newRemoveCmd(opts),
		newWatchCmd(opts),
		newMeCmd(opts),
	)
	return cmd
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List bookmarks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			bookmarks, err := c.ListBookmarks(cmd.Context())
			if err != nil {
				return err
			}
			entries := reconcile.NewReplica(bookmarks).Entries()
			filtered := reconcile.Filter(entries, query)
			printView(cmd.OutOrStdout(), client.View{
				Entries: filtered,
				Total:   len(entries),
				Query:   query,
				Summary: reconcile.Summary(len(entries), len(filtered), query),
			})
			return nil
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only show bookmarks whose title or URL contains this text")
	return cmd
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <url> <title>",
		Short: "Save a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			bm, err := c.CreateBookmark(cmd.Context(), models.AddBookmarkRequestBody{URL: args[0], Title: args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s\n", bm.ID.Hex(), bm.Title)
			return nil
		},
	}
}

func newRemoveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a bookmark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			if err := c.DeleteBookmark(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the bookmark list again whenever it changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			session, err := client.Open(openCtx, c)
			cancel()
			if err != nil {
				return err
			}
			defer session.Close()

			if err := session.SetQuery(query); err != nil {
				return err
			}
			return watch(ctx, cmd.OutOrStdout(), session)
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "only show bookmarks whose title or URL contains this text")
	return cmd
}

func watch(ctx context.Context, out io.Writer, session *client.Session) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-session.Updates():
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "\n-- %s --\n", time.Now().Format(time.TimeOnly))
			printView(out, v)
			if !v.Live {
				return errors.New("change feed closed by server")
			}
		}
	}
}

func newMeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.client()
			if err != nil {
				return err
			}
			profile, err := c.Me(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) <%s>\n", profile.DisplayName, profile.Initials, profile.Email)
			return nil
		},
	}
}

func printView(out io.Writer, v client.View) {
	fmt.Fprintln(out, v.Summary)
	if len(v.Entries) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, e := range v.Entries {
		marker := ""
		if e.Pending {
			marker = " (deleting)"
		}
		fmt.Fprintf(tw, "%s\t%s%s\t%s\n", e.Bookmark.ID.Hex(), e.Bookmark.Title, marker, e.Bookmark.URL)
	}
	_ = tw.Flush()
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
