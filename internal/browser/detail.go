package browser

import (
	"context"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/rapierpits/HStream-Stremio/config"
	"github.com/rapierpits/HStream-Stremio/services/resolver"
)

// DetailRenderer renders detail pages with media interception. Each call
// owns one Chrome process, torn down before returning.
type DetailRenderer struct {
	site config.SiteSettings
	cfg  config.BrowserSettings
}

func NewDetailRenderer(site config.SiteSettings, cfg config.BrowserSettings) *DetailRenderer {
	return &DetailRenderer{site: site, cfg: cfg}
}

// RenderDetail navigates to a detail page, lets the player initialize, and
// collects the media requests it emits. Media requests are aborted at the
// interception layer; the URLs are the payload, the bytes are not wanted.
func (r *DetailRenderer) RenderDetail(ctx context.Context, url string) (*resolver.RenderedDetail, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocatorOptions(r.site, r.cfg)...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.cfg.NavTimeout())
	defer cancelTimeout()

	var (
		mu          sync.Mutex
		intercepted []resolver.InterceptedStream
	)
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		e, ok := ev.(*fetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(tabCtx)
			ectx := cdp.WithExecutor(tabCtx, c.Target)
			reqURL := e.Request.URL
			switch {
			case resolver.IsMediaURL(reqURL):
				if label, known := resolver.ClassifyQuality(reqURL); known {
					mu.Lock()
					intercepted = append(intercepted, resolver.InterceptedStream{Label: label, URL: reqURL})
					mu.Unlock()
				}
				_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
			case e.ResourceType == network.ResourceTypeImage || e.ResourceType == network.ResourceTypeFont:
				_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
			default:
				_ = fetch.ContinueRequest(e.RequestID).Do(ectx)
			}
		}()
	})

	var html string
	err := chromedp.Run(tabCtx,
		fetch.Enable(),
		navigate(url),
		chromedp.Sleep(r.cfg.SettleDelay()),
		chromedp.WaitReady("video", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	defer mu.Unlock()
	return &resolver.RenderedDetail{Intercepted: intercepted, HTML: html}, nil
}
