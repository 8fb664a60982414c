package crawler

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/estatekit/media-crawler/pkg/logger"
)

// session owns one headless browser lifecycle scoped to a single crawl
// request. Sessions are never pooled or shared; teardown happens through the
// cancel func returned by newSession regardless of crawl outcome.
type session struct {
	ctx  context.Context
	fp   Fingerprint
	base *url.URL
	log  *logger.Logger
}

// newSession launches an isolated browser context configured with the given
// fingerprint. The returned cancel must be deferred by the caller; it closes
// the page and the browser.
func newSession(parent context.Context, fp Fingerprint, log *logger.Logger) (*session, context.CancelFunc) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, fp.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	cancel := func() {
		browserCancel()
		allocCancel()
	}

	return &session{ctx: browserCtx, fp: fp, log: log}, cancel
}

// navigate drives the page to targetURL within the given budget. The crawl
// fails with NavigationError when the document response carries an error
// status and with TimeoutError when the budget is exceeded. On success the
// session's base URL is set from the final document location.
func (s *session) navigate(targetURL string, budget time.Duration) error {
	navCtx, cancel := context.WithTimeout(s.ctx, budget)
	defer cancel()

	if err := chromedp.Run(navCtx, s.fp.apply()); err != nil {
		return s.classify(targetURL, budget, err)
	}

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(targetURL))
	if err != nil {
		return s.classify(targetURL, budget, err)
	}
	if resp != nil && resp.Status >= 400 {
		return &NavigationError{URL: targetURL, Status: int(resp.Status)}
	}

	var location string
	if err := chromedp.Run(navCtx,
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
	); err != nil {
		return s.classify(targetURL, budget, err)
	}

	base, err := url.Parse(location)
	if err != nil || !base.IsAbs() {
		base, err = url.Parse(targetURL)
		if err != nil {
			return &NavigationError{URL: targetURL, Err: err}
		}
	}
	s.base = base

	s.waitQuiet(navCtx)
	return nil
}

// waitQuiet polls the page's resource timeline until it stops growing for
// two consecutive ticks or the context expires. Best effort only; a busy page
// never fails navigation here.
func (s *session) waitQuiet(ctx context.Context) {
	var prev, stable int
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(500 * time.Millisecond):
		}

		var count int
		if err := chromedp.Run(ctx,
			chromedp.Evaluate(`performance.getEntriesByType('resource').length`, &count),
		); err != nil {
			return
		}
		if count == prev {
			stable++
			if stable >= 2 {
				return
			}
		} else {
			stable = 0
			prev = count
		}
	}
}

// waitForMedia waits up to max for any image, video or iframe element to
// appear, continuing regardless of the outcome.
func (s *session) waitForMedia(max time.Duration) {
	waitCtx, cancel := context.WithTimeout(s.ctx, max)
	defer cancel()

	for {
		var present bool
		err := chromedp.Run(waitCtx,
			chromedp.Evaluate(`document.querySelector('img, video, iframe') !== null`, &present),
		)
		if err != nil || present {
			return
		}
		select {
		case <-waitCtx.Done():
			return
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// baseURL returns the resolved document location set during navigation.
func (s *session) baseURL() *url.URL {
	return s.base
}

// settle sleeps for the given duration, returning early if the session
// context is cancelled.
func (s *session) settle(d time.Duration) {
	select {
	case <-s.ctx.Done():
	case <-time.After(d):
	}
}

// classify maps a chromedp error to the crawl error taxonomy.
func (s *session) classify(targetURL string, budget time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: targetURL, Budget: budget, Err: err}
	}
	return &NavigationError{URL: targetURL, Err: err}
}
