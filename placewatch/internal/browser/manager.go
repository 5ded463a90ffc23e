// Package browser owns the Chrome instance behind the watched tab. Chrome is
// launched locally or attached remotely through Rod, and replaced when it
// outlives its interval or its heap grows past the limit.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// StealthLevel controls the browser automation mode.
type StealthLevel int

const (
	LevelPlain    StealthLevel = 0 // Rod headless, no stealth patches
	LevelHeadless StealthLevel = 1 // Rod headless + stealth
	LevelHeadful  StealthLevel = 2 // Rod headful + Xvfb
)

// ParseStealth maps a config string to a level. Unknown values mean headless.
func ParseStealth(s string) StealthLevel {
	switch s {
	case "plain":
		return LevelPlain
	case "headful":
		return LevelHeadful
	default:
		return LevelHeadless
	}
}

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	// MemoryLimit in bytes. Recycle Chrome when exceeded. Default: 1GB.
	MemoryLimit int64

	// RecycleInterval is the maximum lifetime of a Chrome process. Default: 4h.
	RecycleInterval time.Duration

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// Stealth sets the stealth level. Default: LevelHeadless.
	Stealth StealthLevel

	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string

	// ConnectAttempts bounds launch+connect retries. Default: 3.
	ConnectAttempts uint

	// ConnectDelay is the base delay between connect attempts. Default: 1s.
	ConnectDelay time.Duration

	// MonitorInterval is how often uptime and heap are checked. Default: 30s.
	MonitorInterval time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = 1 << 30
	}
	if c.RecycleInterval <= 0 {
		c.RecycleInterval = 4 * time.Hour
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.ConnectAttempts == 0 {
		c.ConnectAttempts = 3
	}
	if c.ConnectDelay <= 0 {
		c.ConnectDelay = time.Second
	}
	if c.MonitorInterval <= 0 {
		c.MonitorInterval = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// RecycleCallback is called around Chrome recycling. The watcher detaches
// its tab before and reopens it after.
type RecycleCallback struct {
	BeforeRecycle func()
	AfterRecycle  func(browser *rod.Browser)
}

// Manager manages Chrome lifecycle.
type Manager struct {
	cfg     Config
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	startAt time.Time
	closed  bool
	cb      *RecycleCallback
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// SetRecycleCallback sets the callback for recycle events.
func (m *Manager) SetRecycleCallback(cb *RecycleCallback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

// Start launches Chrome (or connects to a remote instance) and starts the
// memory monitor goroutine.
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	b, err := m.launchWithRetry(ctx)
	if err != nil {
		return nil, err
	}
	m.browser = b
	m.startAt = time.Now()

	go m.monitorLoop(ctx)

	return b, nil
}

// Browser returns the current Rod browser handle.
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Recycle kills Chrome, restarts it, and runs the recycle callbacks.
func (m *Manager) Recycle(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("browser: manager is closed")
	}
	return m.recycleLocked(ctx)
}

// Close shuts down Chrome and Xvfb.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanup()
}

// launchWithRetry retries launch+connect; a remote Chrome that is still
// booting refuses the first connections.
func (m *Manager) launchWithRetry(ctx context.Context) (*rod.Browser, error) {
	log := m.cfg.Logger
	var b *rod.Browser
	err := retry.Do(
		func() error {
			var err error
			b, err = m.launch()
			if err != nil {
				m.cleanup()
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(m.cfg.ConnectAttempts),
		retry.Delay(m.cfg.ConnectDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("browser: connect attempt failed", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (m *Manager) launch() (*rod.Browser, error) {
	wsURL := m.cfg.RemoteURL
	if wsURL == "" {
		if m.cfg.Stealth == LevelHeadful {
			if err := m.startXvfb(); err != nil {
				return nil, fmt.Errorf("browser: xvfb: %w", err)
			}
		}
		l := m.newLauncher()
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		m.lnch = l
		wsURL = u
		m.cfg.Logger.Info("browser: chrome launched", "control_url", wsURL, "stealth", m.cfg.Stealth)
	} else {
		m.cfg.Logger.Info("browser: attaching to remote chrome", "control_url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("browser: connect %s: %w", wsURL, err)
	}
	m.browser = b
	return b, nil
}

// newLauncher configures a local Chrome. Headful mode renders into the
// Xvfb display; the automation blink feature is always disabled.
func (m *Manager) newLauncher() *launcher.Launcher {
	l := launcher.New().Set("disable-blink-features", "AutomationControlled")
	if m.cfg.Stealth == LevelHeadful {
		return l.Headless(false).Env(append(os.Environ(), "DISPLAY="+m.cfg.XvfbDisplay)...)
	}
	return l.Headless(true)
}

func (m *Manager) recycleLocked(ctx context.Context) error {
	log := m.cfg.Logger
	log.Info("browser: recycling", "uptime", time.Since(m.startAt))

	if m.cb != nil && m.cb.BeforeRecycle != nil {
		m.cb.BeforeRecycle()
	}
	if err := m.cleanup(); err != nil {
		log.Warn("browser: cleanup during recycle", "error", err)
	}

	b, err := m.launchWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("browser: relaunch: %w", err)
	}
	m.browser = b
	m.startAt = time.Now()

	if m.cb != nil && m.cb.AfterRecycle != nil {
		m.cb.AfterRecycle(b)
	}
	log.Info("browser: recycled successfully")
	return nil
}

func (m *Manager) cleanup() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	m.stopXvfb()
	return nil
}

// monitorLoop recycles Chrome when it has lived past RecycleInterval or
// its heap exceeds MemoryLimit. It exits when the manager closes.
func (m *Manager) monitorLoop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.mu.RLock()
		closed, b, startAt := m.closed, m.browser, m.startAt
		m.mu.RUnlock()
		if closed || b == nil {
			return
		}

		reason := m.recycleReason(b, time.Since(startAt))
		if reason == "" {
			continue
		}
		m.cfg.Logger.Info("browser: recycle triggered", "reason", reason)
		if err := m.Recycle(ctx); err != nil {
			m.cfg.Logger.Error("browser: recycle failed", "reason", reason, "error", err)
		}
	}
}

// recycleReason returns why Chrome should be recycled, or "".
func (m *Manager) recycleReason(b *rod.Browser, uptime time.Duration) string {
	if uptime > m.cfg.RecycleInterval {
		return "interval"
	}
	used, err := jsHeapUsage(b)
	if err != nil {
		m.cfg.Logger.Debug("browser: heap check skipped", "error", err)
		return ""
	}
	if used > m.cfg.MemoryLimit {
		m.cfg.Logger.Info("browser: heap over limit", "used", used, "limit", m.cfg.MemoryLimit)
		return "memory"
	}
	return ""
}

// jsHeapUsage reads the JS heap of the first page as a proxy for the
// browser's footprint.
func jsHeapUsage(b *rod.Browser) (int64, error) {
	pages, err := b.Pages()
	if err != nil || len(pages) == 0 {
		return 0, fmt.Errorf("browser: no pages for heap check")
	}
	res, err := pages[0].Eval(`() => performance.memory ? performance.memory.usedJSHeapSize : 0`)
	if err != nil {
		return 0, err
	}
	return int64(res.Value.Int()), nil
}
