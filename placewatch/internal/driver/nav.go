package driver

import (
	"context"
	"log/slog"
	"time"
)

// NavConfig configures a NavDetector.
type NavConfig struct {
	// URL reads the current page URL.
	URL func(ctx context.Context) (string, error)
	// Initial is the URL the page was opened with.
	Initial string
	// OnNavigate is called for each observed URL change.
	OnNavigate func(ctx context.Context, from, to string)
	Clock      Clock
	// Interval between URL checks. Default: 1s.
	Interval time.Duration
	Logger   *slog.Logger
}

// NavDetector polls the page URL and reports changes. Client-side
// navigations do not reload the document, so nothing else tells us.
type NavDetector struct {
	cfg  NavConfig
	last string
}

// NewNavDetector creates a NavDetector.
func NewNavDetector(cfg NavConfig) *NavDetector {
	if cfg.Clock == nil {
		cfg.Clock = RealClock{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &NavDetector{cfg: cfg, last: cfg.Initial}
}

// Run checks the URL every interval until ctx is done.
func (n *NavDetector) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.cfg.Clock.After(n.cfg.Interval):
		}

		u, err := n.cfg.URL(ctx)
		if err != nil {
			n.cfg.Logger.Debug("nav: read url failed", "error", err)
			continue
		}
		if u == n.last {
			continue
		}
		from := n.last
		n.last = u
		n.cfg.Logger.Info("nav: url changed", "from", from, "to", u)
		if n.cfg.OnNavigate != nil {
			n.cfg.OnNavigate(ctx, from, u)
		}
	}
}
