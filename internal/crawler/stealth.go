package crawler

import (
	"context"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Fingerprint is the declarative browser identity applied once at session
// launch. Keeping the spoofing steps here as configuration keeps the session
// controller's navigation and timeout logic free of unrelated concerns.
type Fingerprint struct {
	UserAgent         string
	ViewportWidth     int
	ViewportHeight    int
	DeviceScaleFactor float64

	// BlockedURLPatterns are request patterns dropped at the network layer
	// before fetch. Stylesheets and fonts are blocked to cut load time.
	BlockedURLPatterns []string

	// InitScript runs in every new document before page scripts.
	InitScript string
}

// stealthScript hides the two navigator properties naive bot checks probe:
// navigator.webdriver must read undefined and window.chrome must exist.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
	get: () => undefined,
	configurable: true
});
window.chrome = window.chrome || { runtime: {} };
Object.defineProperty(navigator, 'languages', {
	get: () => ['en-US', 'en'],
	configurable: true
});
`

// DefaultFingerprint returns the desktop Chrome identity used for crawls.
func DefaultFingerprint(userAgent string, width, height int) Fingerprint {
	return Fingerprint{
		UserAgent:         userAgent,
		ViewportWidth:     width,
		ViewportHeight:    height,
		DeviceScaleFactor: 1.0,
		BlockedURLPatterns: []string{
			"*.css", "*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot",
		},
		InitScript: stealthScript,
	}
}

// allocatorOptions builds the Chrome launch flags for this fingerprint.
func (f Fingerprint) allocatorOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.UserAgent(f.UserAgent),
		chromedp.WindowSize(f.ViewportWidth, f.ViewportHeight),
	)
}

// apply configures the live browser context with the fingerprint before the
// first navigation: viewport override, request blocking, and the init script.
func (f Fingerprint) apply() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := emulation.SetDeviceMetricsOverride(
			int64(f.ViewportWidth),
			int64(f.ViewportHeight),
			f.DeviceScaleFactor,
			false,
		).Do(ctx); err != nil {
			return err
		}

		if len(f.BlockedURLPatterns) > 0 {
			if err := network.Enable().Do(ctx); err != nil {
				return err
			}
			if err := network.SetBlockedURLs(f.BlockedURLPatterns).Do(ctx); err != nil {
				return err
			}
		}

		if f.InitScript != "" {
			if _, err := page.AddScriptToEvaluateOnNewDocument(f.InitScript).Do(ctx); err != nil {
				return err
			}
		}

		return nil
	})
}
