package navigation

import (
	"sync"

	"github.com/pkg/browser"

	"github.com/yungbote/studygen/internal/platform/logger"
)

// Navigator moves the user to another screen.
type Navigator interface {
	Navigate(route Route)
}

type NavigatorFunc func(route Route)

func (f NavigatorFunc) Navigate(route Route) { f(route) }

// Recorder keeps every navigation in order. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	routes []Route
}

func (r *Recorder) Navigate(route Route) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, route)
}

func (r *Recorder) Routes() []Route {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Route(nil), r.routes...)
}

type LogNavigator struct {
	Log *logger.Logger
}

func (n *LogNavigator) Navigate(route Route) {
	if n == nil || n.Log == nil {
		return
	}
	n.Log.Info("Navigating", "route", route.String())
}

// BrowserNavigator opens AppURL+route in the user's browser.
type BrowserNavigator struct {
	AppURL string
	Log    *logger.Logger

	open func(url string) error
}

func NewBrowserNavigator(appURL string, log *logger.Logger) *BrowserNavigator {
	return &BrowserNavigator{AppURL: appURL, Log: log, open: browser.OpenURL}
}

func (n *BrowserNavigator) Navigate(route Route) {
	target := route.URL(n.AppURL)
	open := n.open
	if open == nil {
		open = browser.OpenURL
	}
	if err := open(target); err != nil && n.Log != nil {
		n.Log.Warn("Could not open browser", "url", target, "error", err)
	}
}

// Multi fans a navigation out to every non-nil navigator.
func Multi(navs ...Navigator) Navigator {
	return NavigatorFunc(func(route Route) {
		for _, n := range navs {
			if n != nil {
				n.Navigate(route)
			}
		}
	})
}
