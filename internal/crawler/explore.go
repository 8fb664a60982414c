package crawler

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/estatekit/media-crawler/pkg/logger"
)

// gallerySelectors is the ordered list of element patterns probed for gallery
// affordances: tab-like patterns first, generic clickables last. A pattern
// that fails to query is skipped; a single bad pattern never aborts the
// crawl.
var gallerySelectors = []string{
	"[role='tab']",
	".tab",
	"li.tab",
	"[class*='gallery']",
	"[class*='photo']",
	"[class*='carousel']",
	"button",
	"a",
}

// galleryKeywords drive the case-insensitive substring match over element
// text. An element qualifies for a click when its text contains any keyword.
var galleryKeywords = []string{"gallery", "photo", "image"}

// matchesGalleryKeyword reports whether the element text suggests a
// gallery/photo affordance.
func matchesGalleryKeyword(text string) bool {
	text = strings.ToLower(text)
	for _, kw := range galleryKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// selectorProbe is the shape returned by the per-selector query script.
type selectorProbe struct {
	OK    bool     `json:"ok"`
	Texts []string `json:"texts"`
}

// explorable is the slice of session behavior the exploration phase needs.
// *session satisfies it against a live browser; tests substitute a scripted
// page.
type explorable interface {
	queryTexts(sel string) (selectorProbe, error)
	click(sel string, i int) error
	settle(d time.Duration)
	snapshot() (Snapshot, error)
	baseURL() *url.URL
}

// explorer drives the interactive reveal phase: for every selector pattern it
// reads the text of each match, clicks qualifying elements, waits a fixed
// settle delay, and re-runs extraction, merging results into the aggregator.
type explorer struct {
	settle time.Duration
	log    *logger.Logger
}

// explore runs the full exploration over the page. Click failures and
// extraction failures during exploration are recovered locally; the crawl
// always keeps whatever it found so far. A page with no qualifying elements
// leaves the aggregator untouched.
func (e *explorer) explore(p explorable, agg *Aggregator) {
	for _, sel := range gallerySelectors {
		probe, err := p.queryTexts(sel)
		if err != nil || !probe.OK {
			e.log.Debug("selector pattern skipped", "selector", sel)
			continue
		}

		for i, text := range probe.Texts {
			if !matchesGalleryKeyword(text) {
				continue
			}

			if err := p.click(sel, i); err != nil {
				e.log.Debug("click failed", "selector", sel, "index", i)
				continue
			}
			p.settle(e.settle)

			snap, err := p.snapshot()
			if err != nil {
				e.log.Debug("extraction pass failed after click", "selector", sel, "index", i)
				continue
			}
			agg.Merge(Resolve(p.baseURL(), snap))
		}
	}
}

// queryTexts returns the visible text of every element matching the selector.
// Selector errors are reported through probe.OK rather than failing the run.
func (s *session) queryTexts(sel string) (selectorProbe, error) {
	script := fmt.Sprintf(`
(() => {
	try {
		const texts = Array.from(document.querySelectorAll(%s))
			.map(el => (el.innerText || el.textContent || '').slice(0, 200));
		return { ok: true, texts };
	} catch (err) {
		return { ok: false, texts: [] };
	}
})()`, strconv.Quote(sel))

	var probe selectorProbe
	err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &probe))
	return probe, err
}

// click clicks the i-th element matching the selector. The element set is
// re-queried at click time since earlier clicks may have mutated the DOM.
func (s *session) click(sel string, i int) error {
	script := fmt.Sprintf(`
(() => {
	try {
		const els = document.querySelectorAll(%s);
		if (els[%d]) { els[%d].click(); return true; }
		return false;
	} catch (err) {
		return false;
	}
})()`, strconv.Quote(sel), i, i)

	var clicked bool
	if err := chromedp.Run(s.ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("element %d no longer clickable for %q", i, sel)
	}
	return nil
}
