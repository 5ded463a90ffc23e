package browser

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// startXvfb launches a virtual display for headful mode and waits for its
// X socket to appear.
func (m *Manager) startXvfb() error {
	if m.xvfb != nil {
		return nil
	}

	display := m.cfg.XvfbDisplay
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start xvfb: %w", err)
	}
	m.xvfb = cmd

	sock := xSocket(display)
	err := retry.Do(
		func() error {
			_, err := os.Stat(sock)
			return err
		},
		retry.Attempts(20),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		m.stopXvfb()
		return fmt.Errorf("xvfb %s not ready: %w", display, err)
	}

	m.cfg.Logger.Info("browser: xvfb ready", "display", display, "pid", cmd.Process.Pid)
	return nil
}

// xSocket is the unix socket an X server listens on for display ":N".
func xSocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}

func (m *Manager) stopXvfb() {
	if m.xvfb == nil {
		return
	}
	if p := m.xvfb.Process; p != nil {
		p.Kill()
		m.xvfb.Wait()
	}
	m.cfg.Logger.Info("browser: xvfb stopped", "display", m.cfg.XvfbDisplay)
	m.xvfb = nil
}
