// Package render loads a page in a remote headless Chrome and returns the
// DOM after scripts ran. It serves pages whose text only exists once
// JavaScript has executed.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config configures the renderer.
type Config struct {
	// RemoteURL is the DevTools endpoint of an external Chrome
	// (ws://host:9222/... or http://host:9222).
	RemoteURL string

	// NavTimeout bounds navigation plus load. Default: 30s.
	NavTimeout time.Duration

	// Block lists resource types never loaded (images, fonts, media, stylesheets).
	// Default: images, fonts, media.
	Block []string

	// URLValidator, when set, is applied to every request the page makes,
	// redirect hops included, and to the final document URL.
	URLValidator func(string) error

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Block == nil {
		c.Block = []string{"images", "fonts", "media"}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Renderer holds one lazily connected browser.
type Renderer struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
}

// New creates a Renderer. No connection is made until the first Render.
func New(cfg Config) *Renderer {
	cfg.defaults()
	return &Renderer{cfg: cfg}
}

// Render navigates to pageURL in a stealth tab and returns the outer HTML
// of the document element.
func (r *Renderer) Render(ctx context.Context, pageURL string) ([]byte, error) {
	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(b)
	if err != nil {
		r.reset()
		return nil, fmt.Errorf("render: create tab: %w", err)
	}
	defer page.Close()

	if len(r.cfg.Block) > 0 || r.cfg.URLValidator != nil {
		router := r.filterRequests(page)
		defer router.Stop()
	}

	navCtx, cancel := context.WithTimeout(ctx, r.cfg.NavTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("render: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		r.cfg.Logger.Warn("render: wait load timeout", "url", pageURL, "error", err)
	}

	if r.cfg.URLValidator != nil {
		info, err := page.Context(navCtx).Info()
		if err != nil {
			return nil, fmt.Errorf("render: page info: %w", err)
		}
		if err := r.cfg.URLValidator(info.URL); err != nil {
			return nil, fmt.Errorf("render: landed on refused URL %s: %w", info.URL, err)
		}
	}

	res, err := page.Context(navCtx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("render: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Close disconnects from the browser.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	r.browser = nil
	return err
}

func (r *Renderer) connect() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser != nil {
		return r.browser, nil
	}
	if r.cfg.RemoteURL == "" {
		return nil, fmt.Errorf("render: no browser configured")
	}

	wsURL := r.cfg.RemoteURL
	if !strings.HasPrefix(wsURL, "ws://") && !strings.HasPrefix(wsURL, "wss://") {
		u, err := launcher.ResolveURL(wsURL)
		if err != nil {
			return nil, fmt.Errorf("render: resolve %s: %w", wsURL, err)
		}
		wsURL = u
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("render: connect: %w", err)
	}
	r.cfg.Logger.Info("render: connected to remote chrome", "url", wsURL)
	r.browser = b
	return b, nil
}

// reset drops a browser handle that stopped answering.
func (r *Renderer) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.browser = nil
}

// filterRequests fails requests for blocked resource types and requests
// whose URL the validator refuses.
func (r *Renderer) filterRequests(page *rod.Page) *rod.HijackRouter {
	blockSet := make(map[string]bool, len(r.cfg.Block))
	for _, t := range r.cfg.Block {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		reqURL := ctx.Request.URL().String()
		if refuse(blockSet, r.cfg.URLValidator, string(ctx.Request.Type()), reqURL) {
			r.cfg.Logger.Debug("render: request blocked", "url", reqURL, "type", ctx.Request.Type())
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})
	go router.Run()
	return router
}

func refuse(blockSet map[string]bool, validate func(string) error, resType, reqURL string) bool {
	if shouldBlock(blockSet, resType) {
		return true
	}
	return validate != nil && validate(reqURL) != nil
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	switch lower := strings.ToLower(resType); lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	default:
		return blockSet[lower]
	}
}
