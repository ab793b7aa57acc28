package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andstatus/fedsync/db"
	"github.com/andstatus/fedsync/ui"
	"github.com/andstatus/fedsync/util"
	"github.com/andstatus/fedsync/web"
	"github.com/andstatus/fedsync/worker"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	accountFlag int64
	kindFlag    string
	limitFlag   int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Sync periodically and serve the web API unless withWeb is off",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		a.worker.Start(ctx, a.conf.Conf.SyncInterval)
		if !a.conf.Conf.WithWeb {
			<-ctx.Done()
			log.Info("Stopped")
			return nil
		}
		err = web.Router(ctx, a.conf, a.db, a.worker)
		log.Info("Stopped")
		return err
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch new activities of all accounts once and send queued commands",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		n := a.worker.SyncAll(ctx)
		a.worker.ProcessCommandQueue(ctx)
		fmt.Printf("Stored %s new activities\n", humanize.Comma(int64(n)))
		return nil
	},
}

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Aliases: []string{"show"},
	Short:   "Print the stored timeline",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		q := db.TimelineQuery{AccountID: accountFlag, Limit: limitFlag}
		title := "All activities"
		switch kindFlag {
		case "home":
			q.SubscribedOnly = true
			title = "Home timeline"
		case "notifications":
			q.NotificationsOnly = true
			title = "Notifications"
		case "all":
		default:
			return errors.Errorf("unknown timeline kind %q", kindFlag)
		}
		items, err := a.db.ReadTimeline(ctx, q)
		if err != nil {
			return err
		}
		fmt.Print(ui.Timeline{Title: title, Items: items}.View())
		return nil
	},
}

var actCmd = &cobra.Command{
	Use:   "act <like|unlike|announce|unannounce|follow|unfollow|delete> <oid>",
	Short: "Act on a note or an actor",
	Long: `Act on a note or an actor. The command is sent right away; when the
server cannot be reached it stays queued and is retried by sync and serve.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		routine := worker.ParseAction(args[0])
		return submit(cmd.Context(), args[0], func(a *app, accountID int64) (*db.Command, error) {
			return a.worker.Submit(cmd.Context(), accountID, routine, args[1], nil)
		})
	},
}

var (
	replyToFlag    string
	summaryFlag    string
	visibilityFlag string
	mediaFlag      []string
)

var postCmd = &cobra.Command{
	Use:   "post [text]",
	Short: "Post a note, reading the text from stdin when no argument is given",
	Long: `Post a note. Markdown links [text](url) are sent as HTML links.
Without text arguments the note is read from stdin.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.Join(args, " ")
		if text == "" && len(mediaFlag) == 0 {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return errors.Wrap(err, "read note from stdin")
			}
			text = string(data)
		}
		text = util.NormalizeInput(text)
		if text != "" {
			text = util.MarkdownLinksToHTML(text)
		}
		payload := &worker.NotePayload{
			Content:    text,
			Summary:    summaryFlag,
			InReplyTo:  replyToFlag,
			Visibility: visibilityFlag,
			Media:      mediaFlag,
		}
		return submit(cmd.Context(), "post", func(a *app, accountID int64) (*db.Command, error) {
			return a.worker.Submit(cmd.Context(), accountID, worker.ParseAction("post"), "", payload)
		})
	},
}

func submit(ctx context.Context, action string, run func(a *app, accountID int64) (*db.Command, error)) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	accountID, err := a.accountID(accountFlag)
	if err != nil {
		return err
	}
	c, err := run(a, accountID)
	if err != nil {
		return errors.Wrap(err, action)
	}
	if c.Attempts > 0 {
		fmt.Printf("%s is queued, next attempt %s: %s\n", action, humanize.Time(c.NextRetryAt), c.LastError)
		return nil
	}
	fmt.Printf("%s done\n", action)
	return nil
}

func init() {
	timelineCmd.Flags().StringVarP(&kindFlag, "kind", "k", "home", "home, notifications or all")
	timelineCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "number of activities to show")

	postCmd.Flags().StringVar(&replyToFlag, "reply-to", "", "oid of the note to reply to")
	postCmd.Flags().StringVar(&summaryFlag, "summary", "", "content warning")
	postCmd.Flags().StringVar(&visibilityFlag, "visibility", "", "public_and_followers, public, followers or private")
	postCmd.Flags().StringSliceVarP(&mediaFlag, "media", "m", nil, "file to attach, may be repeated")

	for _, c := range []*cobra.Command{timelineCmd, actCmd, postCmd} {
		c.Flags().Int64VarP(&accountFlag, "account", "a", 0, "local id of the account, the first one by default")
	}
	rootCmd.AddCommand(serveCmd, syncCmd, timelineCmd, actCmd, postCmd)
}
