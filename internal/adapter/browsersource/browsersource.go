// Package browsersource implements the "browser" source kind: pages that
// only render their listings with JavaScript. A headless Chrome driven by
// rod loads the page with stealth evasions, and the rendered DOM is parsed
// with the same selectors as the html kind.
package browsersource

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/Strob0t/painradar/internal/adapter/htmlsource"
	"github.com/Strob0t/painradar/internal/adapter/webfetch"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/source"
)

// Kind is the registry name of this adapter.
const Kind = "browser"

// defaultNavigateTimeout bounds navigation when the fetch context has a
// longer deadline.
const defaultNavigateTimeout = 30 * time.Second

func init() {
	source.Register(Kind, func(spec source.Spec) (source.Source, error) {
		return New(spec, NewChrome(spec.Option("remote_url", ""), slog.Default()))
	})
}

// Renderer returns the serialized DOM of a page after it has loaded.
type Renderer interface {
	Render(ctx context.Context, pageURL, waitSelector string) (string, error)
}

// Source scrapes a JavaScript-rendered listing page.
type Source struct {
	name     string
	urlTmpl  string
	wait     string
	sel      htmlsource.Selectors
	renderer Renderer
}

// New builds a browser source. Options are those of the html kind plus
// wait (a selector to wait for after load) and remote_url (DevTools URL of
// an external Chrome; empty launches a local one).
func New(spec source.Spec, r Renderer) (*Source, error) {
	tmpl := spec.Option("url", "")
	if tmpl == "" {
		return nil, fmt.Errorf("source %q: browser kind requires option url", spec.Name)
	}
	sel, err := htmlsource.SelectorsFromSpec(spec)
	if err != nil {
		return nil, err
	}
	return &Source{
		name:     spec.Name,
		urlTmpl:  tmpl,
		wait:     spec.Option("wait", ""),
		sel:      sel,
		renderer: r,
	}, nil
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Fetch renders the page and extracts records from the resulting DOM.
func (s *Source) Fetch(ctx context.Context, keyword string, limit int) ([]aggregate.SourceResult, error) {
	pageURL := webfetch.ExpandURL(s.urlTmpl, keyword, limit)
	dom, err := s.renderer.Render(ctx, pageURL, s.wait)
	if err != nil {
		se := aggregate.AsSourceError(s.name, err)
		if se.Kind == aggregate.KindOther {
			se.Kind = aggregate.KindNetwork
		}
		return nil, se
	}

	base, _ := url.Parse(pageURL)
	results, err := htmlsource.Extract(strings.NewReader(dom), base, s.sel, limit)
	if err != nil {
		return nil, aggregate.NewSourceError(s.name, aggregate.KindParse, "parse dom: %v", err)
	}
	return results, nil
}

// Close shuts down the browser when the renderer owns one.
func (s *Source) Close() error {
	if c, ok := s.renderer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// Chrome is a Renderer backed by a lazily started headless Chrome.
type Chrome struct {
	remoteURL string
	logger    *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewChrome returns a renderer that connects to remoteURL, or launches a
// local headless Chrome on first use when remoteURL is empty.
func NewChrome(remoteURL string, logger *slog.Logger) *Chrome {
	return &Chrome{remoteURL: remoteURL, logger: logger}
}

func (c *Chrome) connect() (*rod.Browser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.browser != nil {
		return c.browser, nil
	}

	wsURL := c.remoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		c.lnch = l
		c.logger.Info("browser: launched local chrome", "url", wsURL)
	} else {
		c.logger.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if c.lnch != nil {
			c.lnch.Kill()
			c.lnch = nil
		}
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	c.browser = b
	return b, nil
}

// Render opens a stealth tab, navigates, waits for the page and returns
// document.documentElement.outerHTML.
func (c *Chrome) Render(ctx context.Context, pageURL, waitSelector string) (string, error) {
	b, err := c.connect()
	if err != nil {
		return "", err
	}

	page, err := stealth.Page(b)
	if err != nil {
		c.reset()
		return "", fmt.Errorf("browser: create tab: %w", err)
	}
	defer func() { _ = page.Close() }()

	navCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, defaultNavigateTimeout)
		defer cancel()
	}
	p := page.Context(navCtx)

	if err := p.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		c.logger.Warn("browser: wait load", "url", pageURL, "error", err)
	}
	if waitSelector != "" {
		if _, err := p.Element(waitSelector); err != nil {
			return "", fmt.Errorf("browser: wait for %q: %w", waitSelector, err)
		}
	}

	res, err := p.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("browser: get DOM: %w", err)
	}
	return res.Value.Str(), nil
}

// reset drops a browser connection that stopped answering so that the next
// Render reconnects.
func (c *Chrome) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

// Close shuts down the browser and any launched Chrome process.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Chrome) closeLocked() error {
	var err error
	if c.browser != nil {
		err = c.browser.Close()
		c.browser = nil
	}
	if c.lnch != nil {
		c.lnch.Kill()
		c.lnch = nil
	}
	return err
}
