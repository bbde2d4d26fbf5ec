package woocommerce

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"orderwatch/internal/domain"
	"orderwatch/internal/ports"
)

const completeButtonSelector = "#woocommerce-order-actions button"

// Config describes the remote WordPress/WooCommerce installation.
type Config struct {
	LoginURL    string
	OrdersURL   string
	Email       string
	Password    string
	StatusLabel string
	Headless    bool
	LoginWait   time.Duration
	NavTimeout  time.Duration
	ActTimeout  time.Duration
}

// Source launches a headless browser per cycle and logs into wp-admin. One
// Open call yields one session; the session owns the browser process.
type Source struct {
	cfg    Config
	logger *slog.Logger
}

var _ ports.OrderSource = (*Source)(nil)

// NewSource wires the source configuration.
func NewSource(cfg Config, logger *slog.Logger) *Source {
	return &Source{cfg: cfg, logger: logger}
}

// Open launches the browser, connects, and authenticates. Any failure here
// is ErrSourceUnavailable: without a logged-in session no part of the cycle
// can proceed.
func (s *Source) Open(ctx context.Context) (ports.SourceSession, error) {
	l := launcher.New().Headless(s.cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %v", domain.ErrSourceUnavailable, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect browser: %v", domain.ErrSourceUnavailable, err)
	}

	sess := &session{cfg: s.cfg, browser: browser, launcher: l, logger: s.logger}
	if err := sess.login(ctx); err != nil {
		_ = sess.Close()
		return nil, err
	}
	return sess, nil
}

type session struct {
	cfg      Config
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	logger   *slog.Logger
}

func (s *session) login(ctx context.Context) error {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: s.cfg.LoginURL})
	if err != nil {
		return fmt.Errorf("%w: open login page: %v", domain.ErrSourceUnavailable, err)
	}
	s.page = page

	if err := page.Context(ctx).Timeout(s.cfg.NavTimeout).WaitLoad(); err != nil {
		return fmt.Errorf("%w: load login page: %v", domain.ErrSourceUnavailable, err)
	}

	if err := s.fill(ctx, "input[name='log']", s.cfg.Email); err != nil {
		return fmt.Errorf("%w: fill username: %v", domain.ErrSourceUnavailable, err)
	}
	if err := s.fill(ctx, "input[name='pwd']", s.cfg.Password); err != nil {
		return fmt.Errorf("%w: fill password: %v", domain.ErrSourceUnavailable, err)
	}

	submit, err := page.Context(ctx).Timeout(s.cfg.ActTimeout).Element("input#wp-submit")
	if err != nil {
		return fmt.Errorf("%w: locate submit: %v", domain.ErrSourceUnavailable, err)
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("%w: submit login: %v", domain.ErrSourceUnavailable, err)
	}

	// Let the post-login redirect settle before navigating into wp-admin.
	_ = page.Context(ctx).Timeout(s.cfg.LoginWait).WaitLoad()

	// WordPress answers rejected credentials by re-rendering the login
	// form. A still-present username field means we are not logged in.
	if has, _, err := page.Context(ctx).Has("input[name='log']"); err == nil && has {
		return fmt.Errorf("%w: login rejected", domain.ErrSourceUnavailable)
	}

	s.debug("logged in")
	return nil
}

func (s *session) fill(ctx context.Context, selector, value string) error {
	el, err := s.page.Context(ctx).Timeout(s.cfg.ActTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("element %s: %w", selector, err)
	}
	return el.Input(value)
}

// ListProcessing navigates to the processing listing and parses it.
func (s *session) ListProcessing(ctx context.Context) ([]domain.Candidate, error) {
	nav := s.page.Context(ctx).Timeout(s.cfg.NavTimeout)
	if err := nav.Navigate(s.cfg.OrdersURL); err != nil {
		return nil, fmt.Errorf("%w: navigate orders listing: %v", domain.ErrSourceUnavailable, err)
	}
	if err := nav.WaitLoad(); err != nil {
		return nil, fmt.Errorf("%w: load orders listing: %v", domain.ErrSourceUnavailable, err)
	}

	html, err := nav.HTML()
	if err != nil {
		return nil, fmt.Errorf("%w: read orders listing: %v", domain.ErrSourceUnavailable, err)
	}

	// ParseProcessingList already classifies shape mismatches as
	// ErrSourceUnavailable.
	candidates, err := ParseProcessingList(html, s.cfg.StatusLabel)
	if err != nil {
		return nil, err
	}
	s.debug("listing parsed", "candidates", len(candidates))
	return candidates, nil
}

// FetchDetail opens the order's detail view in its own tab and returns the
// normalized page content.
func (s *session) FetchDetail(ctx context.Context, ref string) (string, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: ref})
	if err != nil {
		return "", fmt.Errorf("%w: open detail: %v", domain.ErrDetailFetch, err)
	}
	defer page.Close()

	view := page.Context(ctx).Timeout(s.cfg.NavTimeout)
	if err := view.WaitLoad(); err != nil {
		return "", fmt.Errorf("%w: load detail: %v", domain.ErrDetailFetch, err)
	}
	html, err := view.HTML()
	if err != nil {
		return "", fmt.Errorf("%w: read detail: %v", domain.ErrDetailFetch, err)
	}
	return NormalizeDetail(html), nil
}

// AttemptComplete opens the detail view and clicks the order-actions button.
// An absent button is ActionUnavailable, not an error: the click target is a
// structural part of the page, and its disappearance means the UI changed.
func (s *session) AttemptComplete(ctx context.Context, ref string) (domain.ActionResult, error) {
	page, err := s.browser.Page(proto.TargetCreateTarget{URL: ref})
	if err != nil {
		return domain.ActionFailed, fmt.Errorf("%w: open detail: %v", domain.ErrActionFailed, err)
	}
	defer page.Close()

	view := page.Context(ctx).Timeout(s.cfg.NavTimeout)
	if err := view.WaitLoad(); err != nil {
		return domain.ActionFailed, fmt.Errorf("%w: load detail: %v", domain.ErrActionFailed, err)
	}

	// rod waits for the selector to appear; hitting the timeout means the
	// control is not on the page.
	btn, err := page.Context(ctx).Timeout(s.cfg.ActTimeout).Element(completeButtonSelector)
	if err != nil {
		return domain.ActionUnavailable, nil
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return domain.ActionFailed, fmt.Errorf("%w: click completion control: %v", domain.ErrActionFailed, err)
	}
	s.debug("completion control clicked", "ref", ref)
	return domain.ActionAdvanced, nil
}

// Close tears down the browser and its launcher process.
func (s *session) Close() error {
	var err error
	if s.browser != nil {
		err = s.browser.Close()
		s.browser = nil
	}
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher = nil
	}
	return err
}

func (s *session) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
