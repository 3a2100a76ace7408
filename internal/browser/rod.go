package browser

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/taoharvest/taoharvest/internal/config"
	"github.com/taoharvest/taoharvest/internal/types"
)

// Session owns the single Chromium instance and its one navigation
// context for a run. It is acquired at run start, exclusively owned by
// the orchestrator, and must be released on every exit path.
type Session struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     config.BrowserConfig
	logger  *slog.Logger
}

// NewSession launches Chromium with a persistent profile directory so
// login state survives across runs, and opens the run's single page.
func NewSession(cfg config.BrowserConfig, logger *slog.Logger) (*Session, error) {
	profile, err := filepath.Abs(cfg.ProfileDir)
	if err != nil {
		return nil, fmt.Errorf("resolve profile dir: %w", err)
	}
	if err := os.MkdirAll(profile, 0o755); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}

	l := launcher.New().
		Headless(cfg.Headless).
		UserDataDir(profile).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("ignore-certificate-errors").
		Set("disable-blink-features", "AutomationControlled")

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(launchURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	s := &Session{
		browser: b,
		page:    page,
		cfg:     cfg,
		logger:  logger.With("component", "browser_session"),
	}

	s.logger.Info("browser session ready",
		"headless", cfg.Headless,
		"profile", profile,
	)
	return s, nil
}

// Page returns the session's single page handle.
func (s *Session) Page() Page {
	return &rodPage{page: s.page, cfg: s.cfg, logger: s.logger}
}

// EnsureLogin opens the landing page and holds it for the configured
// login grace period so a human can authenticate. The session may
// already carry a valid login in its profile; the wait is skipped when
// LoginWait is zero.
func (s *Session) EnsureLogin(ctx context.Context, landingURL string) error {
	if s.cfg.LoginWait <= 0 {
		return nil
	}

	p := &rodPage{page: s.page, cfg: s.cfg, logger: s.logger}
	if err := p.Navigate(ctx, landingURL); err != nil {
		return fmt.Errorf("open landing page: %w", err)
	}

	s.logger.Info("waiting for manual login", "wait", s.cfg.LoginWait)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.cfg.LoginWait):
	}
	s.logger.Info("login period over")
	return nil
}

// Close shuts down the browser and releases all resources.
func (s *Session) Close() error {
	if s.browser == nil {
		return nil
	}
	s.logger.Info("closing browser session")
	err := s.browser.Close()
	s.browser = nil
	return err
}

// rodPage adapts a rod.Page to the Page capability.
type rodPage struct {
	page   *rod.Page
	cfg    config.BrowserConfig
	logger *slog.Logger
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx).Timeout(p.cfg.NavTimeout)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitStable(p.cfg.StableWait); err != nil {
		// Heavy pages may never fully settle; proceed with what loaded.
		p.logger.Warn("page stability timeout, continuing", "url", url, "error", err)
	}
	return nil
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return fmt.Errorf("wait for %q: %w", selector, types.ErrElementNotFound)
	}
	return nil
}

func (p *rodPage) WaitStable(ctx context.Context) error {
	return p.page.Context(ctx).Timeout(p.cfg.NavTimeout).WaitStable(p.cfg.StableWait)
}

func (p *rodPage) ScrollToBottom(ctx context.Context) error {
	_, err := p.page.Context(ctx).Eval(`window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *rodPage) ScrollHeight(ctx context.Context) (int, error) {
	res, err := p.page.Context(ctx).Eval(`document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (p *rodPage) Find(selector string) (Element, error) {
	el, err := p.page.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, types.ErrElementNotFound)
	}
	return &rodElement{el: el, cfg: p.cfg}, nil
}

func (p *rodPage) FindAll(selector string) ([]Element, error) {
	els, err := p.page.Sleeper(rod.NotFoundSleeper).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find all %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, cfg: p.cfg})
	}
	return out, nil
}

func (p *rodPage) HTML() (string, error) {
	return p.page.HTML()
}

func (p *rodPage) Title() (string, error) {
	info, err := p.page.Info()
	if err != nil {
		return "", err
	}
	return info.Title, nil
}

// rodElement adapts a rod.Element to the Element capability.
type rodElement struct {
	el  *rod.Element
	cfg config.BrowserConfig
}

func (e *rodElement) Find(selector string) (Element, error) {
	el, err := e.el.Sleeper(rod.NotFoundSleeper).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("find %q: %w", selector, types.ErrElementNotFound)
	}
	return &rodElement{el: el, cfg: e.cfg}, nil
}

func (e *rodElement) FindAll(selector string) ([]Element, error) {
	els, err := e.el.Sleeper(rod.NotFoundSleeper).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("find all %q: %w", selector, err)
	}
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, &rodElement{el: el, cfg: e.cfg})
	}
	return out, nil
}

func (e *rodElement) HTML() (string, error) {
	return e.el.HTML()
}

func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

func (e *rodElement) Attr(name string) (string, error) {
	val, err := e.el.Attribute(name)
	if err != nil {
		return "", err
	}
	if val == nil {
		return "", nil
	}
	return *val, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.el.Context(ctx).Timeout(e.cfg.WaitTimeout).Click(proto.InputMouseButtonLeft, 1)
}
