package browser

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/rapierpits/HStream-Stremio/config"
	"github.com/rapierpits/HStream-Stremio/services/catalog"
)

// Provider launches listing sessions, one headless Chrome process each.
type Provider struct {
	site config.SiteSettings
	cfg  config.BrowserSettings
}

func NewProvider(site config.SiteSettings, cfg config.BrowserSettings) *Provider {
	return &Provider{site: site, cfg: cfg}
}

// Launch starts a browser process. The caller owns the session and must
// Close it.
func (p *Provider) Launch(ctx context.Context) (catalog.ListingSession, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(p.site, p.cfg)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the process eagerly so Launch fails fast when Chrome is missing.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, err
	}
	return &Session{
		cfg:           p.cfg,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
	}, nil
}

// Session is one live Chrome process shared by the pages of a crawl batch.
type Session struct {
	cfg           config.BrowserSettings
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
}

func (s *Session) Close() {
	s.cancelBrowser()
	s.cancelAlloc()
}

// RenderListing opens a fresh tab, navigates to a listing URL with heavy
// resources blocked, waits for the result container and returns the rendered
// document. The tab is closed before returning.
func (s *Session) RenderListing(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, s.cfg.NavTimeout())
	defer cancelTimeout()

	// Listing pages only need markup; images, styles and fonts are dead
	// weight at 5 concurrent tabs.
	installBlocking(tabCtx)

	var html string
	err := chromedp.Run(tabCtx,
		fetch.Enable(),
		navigate(url),
		waitReadyTolerant(ListingReadySelector(), s.cfg.SelectorTimeout()),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", err
	}
	return html, nil
}

// ListingReadySelector mirrors the crawler's container contract.
func ListingReadySelector() string {
	return catalog.ListingReadySelector
}

// navigate runs a navigation and fails it on a non-2xx/3xx response.
func navigate(url string) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(url))
		if err != nil {
			return err
		}
		if resp != nil && resp.Status >= 400 {
			return &NavStatusError{URL: url, Status: resp.Status}
		}
		return nil
	}
}

// waitReadyTolerant waits for sel up to timeout and shrugs off a miss: a
// redesigned page still yields a document the layered extractors can try.
func waitReadyTolerant(sel string, timeout time.Duration) chromedp.ActionFunc {
	return func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		err := chromedp.Run(waitCtx, chromedp.WaitReady(sel, chromedp.ByQuery))
		if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			log.Printf("[browser] selector %q not found, snapshotting anyway", sel)
			return nil
		}
		return err
	}
}

// installBlocking aborts image, stylesheet, font and media requests on the
// tab. fetch.Enable must run on the same tab for events to arrive.
func installBlocking(tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(tabCtx)
			ectx := cdp.WithExecutor(tabCtx, c.Target)
			switch e.ResourceType {
			case network.ResourceTypeImage, network.ResourceTypeStylesheet,
				network.ResourceTypeFont, network.ResourceTypeMedia:
				_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
			default:
				_ = fetch.ContinueRequest(e.RequestID).Do(ectx)
			}
		}()
	})
}
