// CLAUDE:SUMMARY Chrome lifecycle for the rod host: launch or connect, stealth tabs, resource blocking, Xvfb for headful mode.
// Package rodhost implements domhost.Host over a live Chrome page driven
// through the DevTools protocol with Rod.
package rodhost

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/tourguide/pace"
)

// Mode selects how Chrome runs.
type Mode string

const (
	Headless Mode = "headless"
	Headful  Mode = "headful"
)

// Config configures a Browser.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome. Empty launches
	// a local one.
	RemoteURL string
	Mode      Mode
	// Block lists resource types to refuse: images, media, websockets,
	// eventsources, manifests, pings, prefetch. Fonts and stylesheets are
	// ignored.
	Block []string
	// XvfbDisplay for headful mode. Default: ":99".
	XvfbDisplay string
	// ViewportWidth and ViewportHeight size new tabs. Default: 1440x900.
	ViewportWidth  int
	ViewportHeight int
	// NavigationTimeout bounds Navigate and WaitLoad. Default: 30s.
	NavigationTimeout time.Duration
	Logger            *slog.Logger
}

func (c *Config) defaults() {
	if c.Mode == "" {
		c.Mode = Headless
	}
	if c.XvfbDisplay == "" {
		c.XvfbDisplay = ":99"
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1440
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 900
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Browser owns one Chrome process or remote connection.
type Browser struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	xvfb    *exec.Cmd
	filter  resourceFilter
}

// Launch starts Chrome, or connects to cfg.RemoteURL.
func Launch(ctx context.Context, cfg Config) (*Browser, error) {
	cfg.defaults()
	b := &Browser{cfg: cfg, filter: newResourceFilter(cfg.Block, cfg.Logger)}
	if err := b.launch(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Browser) launch(ctx context.Context) error {
	log := b.cfg.Logger

	if b.cfg.Mode == Headful && b.cfg.RemoteURL == "" {
		if err := b.startXvfb(ctx); err != nil {
			return fmt.Errorf("rodhost: xvfb: %w", err)
		}
	}

	wsURL := b.cfg.RemoteURL
	if wsURL != "" {
		log.Info("rodhost: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Context(ctx)
		if b.cfg.Mode == Headful {
			l = l.Headless(false).Env("DISPLAY=" + b.cfg.XvfbDisplay)
		} else {
			l = l.Headless(true)
		}
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("rodhost: launch: %w", err)
		}
		wsURL = u
		b.lnch = l
		log.Info("rodhost: launched local chrome", "url", wsURL, "mode", b.cfg.Mode)
	}

	rb := rod.New().Context(ctx).ControlURL(wsURL)
	if err := rb.Connect(); err != nil {
		return fmt.Errorf("rodhost: connect: %w", err)
	}
	if err := rb.IgnoreCertErrors(true); err != nil {
		log.Warn("rodhost: ignore cert errors failed", "error", err)
	}
	b.browser = rb
	return nil
}

// Open creates a stealth tab, navigates to pageURL and wraps it as a Page.
func (b *Browser) Open(ctx context.Context, pageURL string) (*Page, error) {
	b.mu.Lock()
	rb := b.browser
	b.mu.Unlock()
	if rb == nil {
		return nil, fmt.Errorf("rodhost: browser closed")
	}

	p, err := stealth.Page(rb)
	if err != nil {
		return nil, fmt.Errorf("rodhost: create tab: %w", err)
	}
	if len(b.filter) > 0 {
		b.intercept(p)
	}
	err = p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             b.cfg.ViewportWidth,
		Height:            b.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		b.cfg.Logger.Warn("rodhost: set viewport failed", "error", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigationTimeout)
	defer cancel()
	if err := p.Context(navCtx).Navigate(pageURL); err != nil {
		p.Close()
		return nil, fmt.Errorf("rodhost: navigate %s: %w", pageURL, err)
	}
	if err := p.Context(navCtx).WaitLoad(); err != nil {
		b.cfg.Logger.Warn("rodhost: wait load timeout", "url", pageURL, "error", err)
	}
	return NewPage(p, b.cfg.Logger), nil
}

// Close shuts Chrome and Xvfb down.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	if b.lnch != nil {
		b.lnch.Cleanup()
		b.lnch = nil
	}
	b.stopXvfb()
	return err
}

// resourceNames maps config names to Chrome resource types. Fonts and
// stylesheets are absent: they move tour targets.
var resourceNames = map[string]proto.NetworkResourceType{
	"images":       proto.NetworkResourceTypeImage,
	"media":        proto.NetworkResourceTypeMedia,
	"websockets":   proto.NetworkResourceTypeWebSocket,
	"eventsources": proto.NetworkResourceTypeEventSource,
	"manifests":    proto.NetworkResourceTypeManifest,
	"pings":        proto.NetworkResourceTypePing,
	"prefetch":     proto.NetworkResourceTypePrefetch,
}

// resourceFilter is the set of resource types a tab refuses.
type resourceFilter map[proto.NetworkResourceType]bool

func newResourceFilter(names []string, logger *slog.Logger) resourceFilter {
	f := make(resourceFilter, len(names))
	for _, n := range names {
		switch n = strings.ToLower(strings.TrimSpace(n)); n {
		case "fonts", "stylesheets":
			logger.Warn("rodhost: layout resources are never blocked", "type", n)
		default:
			t, ok := resourceNames[n]
			if !ok {
				logger.Warn("rodhost: unknown resource type to block", "type", n)
				continue
			}
			f[t] = true
		}
	}
	return f
}

func (f resourceFilter) refuses(t proto.NetworkResourceType) bool { return f[t] }

// intercept fails refused requests on p until the tab closes.
func (b *Browser) intercept(p *rod.Page) {
	var refused atomic.Int64
	router := p.HijackRequests()
	router.MustAdd("*", func(h *rod.Hijack) {
		if b.filter.refuses(h.Request.Type()) {
			refused.Add(1)
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		h.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go func() {
		router.Run()
		b.cfg.Logger.Debug("rodhost: interception ended", "refused", refused.Load())
	}()
}

// startXvfb runs a virtual screen sized to the viewport and waits until its
// socket accepts clients.
func (b *Browser) startXvfb(ctx context.Context) error {
	if b.xvfb != nil {
		return nil
	}
	screen := fmt.Sprintf("%dx%dx24", b.cfg.ViewportWidth, b.cfg.ViewportHeight)
	cmd := exec.Command("Xvfb", b.cfg.XvfbDisplay, "-screen", "0", screen, "-nolisten", "tcp", "-ac")
	if err := cmd.Start(); err != nil {
		return err
	}
	b.xvfb = cmd
	if err := waitDisplay(ctx, b.cfg.XvfbDisplay, 5*time.Second); err != nil {
		return err
	}
	b.cfg.Logger.Info("rodhost: xvfb ready", "display", b.cfg.XvfbDisplay, "screen", screen, "pid", cmd.Process.Pid)
	return nil
}

func (b *Browser) stopXvfb() {
	if b.xvfb == nil {
		return
	}
	if b.xvfb.Process != nil {
		b.xvfb.Process.Kill()
		b.xvfb.Wait()
	}
	b.xvfb = nil
}

// displaySocket returns the X11 unix socket of a display such as ":99.0".
func displaySocket(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}

func waitDisplay(ctx context.Context, display string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	sock := displaySocket(display)
	for {
		if _, err := os.Stat(sock); err == nil {
			return nil
		}
		if err := pace.Sleep(ctx, 50*time.Millisecond); err != nil {
			return fmt.Errorf("display %s not ready: %w", display, err)
		}
	}
}
