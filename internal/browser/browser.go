// Package browser wraps chromedp rendering sessions for the crawler. A
// session is one headless Chrome process; listing renders open a tab per
// page so batch pages run concurrently within it, while detail renders own a
// whole short-lived session with media interception installed.
package browser

import (
	"fmt"

	"github.com/chromedp/chromedp"

	"github.com/rapierpits/HStream-Stremio/config"
)

// NavStatusError reports a navigation that completed with a non-success
// HTTP status. The crawler treats it like any other navigation failure.
type NavStatusError struct {
	URL    string
	Status int64
}

func (e *NavStatusError) Error() string {
	return fmt.Sprintf("navigate %s: status %d", e.URL, e.Status)
}

func allocatorOptions(site config.SiteSettings, cfg config.BrowserSettings) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(site.UserAgent),
	)
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}
