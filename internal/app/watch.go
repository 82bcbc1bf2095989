package app

import (
	"fmt"

	"github.com/yungbote/studygen/internal/clients/jobapi"
	"github.com/yungbote/studygen/internal/navigation"
	"github.com/yungbote/studygen/internal/platform/logger"
	"github.com/yungbote/studygen/internal/progress"
	"github.com/yungbote/studygen/internal/realtime/stream"
)

// NewFeed picks the push transport. PushNone returns a nil feed and the
// watcher polls only.
func NewFeed(log *logger.Logger, cfg Config) (progress.Feed, error) {
	switch cfg.Push {
	case PushSSE, "":
		return stream.NewSSE(log, cfg.APIURL)
	case PushWS:
		return stream.NewWebSocket(log, cfg.APIURL)
	case PushNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown push transport %q", cfg.Push)
	}
}

type WatchOptions struct {
	OpenBrowser bool
	OnChange    func(progress.State)
	// Navigator replaces the default log (and browser) navigator when set.
	Navigator navigation.Navigator
}

// NewWatcher wires a status view for jobID against the configured API.
func NewWatcher(log *logger.Logger, cfg Config, client *jobapi.Client, jobID string, opts WatchOptions) (*progress.Watcher, error) {
	feed, err := NewFeed(log, cfg)
	if err != nil {
		return nil, err
	}

	nav := opts.Navigator
	if nav == nil {
		var browser navigation.Navigator
		if opts.OpenBrowser {
			browser = navigation.NewBrowserNavigator(cfg.AppURL, log)
		}
		nav = navigation.Multi(&navigation.LogNavigator{Log: log}, browser)
	}

	wopts := []progress.Option{
		progress.WithPollInterval(cfg.PollInterval),
		progress.WithCompletionDelay(cfg.CompletionDelay),
	}
	if opts.OnChange != nil {
		wopts = append(wopts, progress.WithOnChange(opts.OnChange))
	}
	return progress.NewWatcher(jobID, client, feed, nav, log, wopts...), nil
}
