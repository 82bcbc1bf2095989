package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/studygen/internal/app"
	"github.com/yungbote/studygen/internal/clients/jobapi"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/progress"
	"github.com/yungbote/studygen/internal/render"
)

var (
	watchOpen bool
	watchPush string
	watchPoll time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch JOB_ID",
	Short: "Follow a job until it finishes, then open its results",
	Long: `Show the live processing view for a job. Progress arrives over push
(SSE or WebSocket) and a 5 second poll. Type c, r or d and press enter to
cancel, retry or return to the dashboard.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addWatchFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func addWatchFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&watchOpen, "open", false, "open the result page in a browser")
	cmd.Flags().StringVar(&watchPush, "push", "", "push transport: sse, ws or none (overrides STUDYGEN_PUSH)")
	cmd.Flags().DurationVar(&watchPoll, "poll", 0, "poll interval (overrides STUDYGEN_POLL_INTERVAL)")
}

func watchOverrides(cmd *cobra.Command) func(*app.Config) {
	return func(cfg *app.Config) {
		if cmd.Flags().Changed("push") {
			cfg.Push = strings.ToLower(watchPush)
		}
		if cmd.Flags().Changed("poll") {
			cfg.PollInterval = watchPoll
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd, watchOverrides(cmd))
	if err != nil {
		return err
	}
	defer log.Sync()

	client, err := jobapi.New(log, cfg.APIURL)
	if err != nil {
		return err
	}
	return watchJob(cmd, log, cfg, client, args[0])
}

func watchJob(cmd *cobra.Command, log *logger.Logger, cfg app.Config, client *jobapi.Client, jobID string) error {
	term := render.NewTerminal(cmd.OutOrStdout())
	w, err := app.NewWatcher(log, cfg, client, jobID, app.WatchOptions{
		OpenBrowser: watchOpen,
		OnChange: func(s progress.State) {
			if err := term.Render(s); err != nil {
				log.Debug("Render failed", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go readActions(ctx, cmd.InOrStdin(), w.Act)

	_, err = w.Run(ctx)
	w.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// readActions maps typed lines to watcher actions until ctx is done or in ends.
func readActions(ctx context.Context, in io.Reader, act func(progress.Action)) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if a, ok := keyAction(sc.Text()); ok {
			act(a)
		}
	}
}

func keyAction(line string) (progress.Action, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "c", "cancel":
		return progress.ActionCancel, true
	case "r", "retry":
		return progress.ActionRetry, true
	case "d", "dashboard":
		return progress.ActionDashboard, true
	default:
		return 0, false
	}
}
