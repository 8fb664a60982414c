package crawler

import (
	"net/url"
	"strings"

	"github.com/chromedp/chromedp"
)

// extractScript collects raw media candidates from the live DOM in one pass:
// image sources (including common lazy-load data attributes), computed
// background-image styles, video sources, and floor-plan flavoured
// references. Candidates come back unresolved; URL resolution and validation
// happen in Go.
const extractScript = `
(() => {
	const images = [];
	const videos = [];
	const floorplans = [];
	const floorplanRe = /floor[-_ ]?plan/i;

	const push = (list, value) => {
		if (value && typeof value === 'string') list.push(value);
	};

	for (const img of document.querySelectorAll('img')) {
		const src = img.getAttribute('src') ||
			img.getAttribute('data-src') ||
			img.getAttribute('data-lazy-src') ||
			img.getAttribute('data-original');
		const alt = img.getAttribute('alt') || '';
		const cls = img.getAttribute('class') || '';
		if (floorplanRe.test(src || '') || floorplanRe.test(alt) || floorplanRe.test(cls)) {
			push(floorplans, src);
		} else {
			push(images, src);
		}
	}

	for (const el of document.querySelectorAll('*')) {
		const bg = window.getComputedStyle(el).backgroundImage;
		if (!bg || bg === 'none') continue;
		const m = bg.match(/url\(["']?([^"')]+)["']?\)/);
		if (m) push(images, m[1]);
	}

	for (const video of document.querySelectorAll('video')) {
		push(videos, video.getAttribute('src'));
		for (const source of video.querySelectorAll('source')) {
			push(videos, source.getAttribute('src'));
		}
	}

	for (const a of document.querySelectorAll('a')) {
		const href = a.getAttribute('href') || '';
		if (floorplanRe.test(href) || floorplanRe.test(a.textContent || '')) {
			if (/\.(jpe?g|png|gif|webp|svg|pdf)([?#]|$)/i.test(href)) {
				push(floorplans, href);
			}
		}
	}

	return { images, videos, floorplans };
})()
`

// snapshot runs one extraction pass over the current DOM.
func (s *session) snapshot() (Snapshot, error) {
	var snap Snapshot
	err := chromedp.Run(s.ctx, chromedp.Evaluate(extractScript, &snap))
	return snap, err
}

// Resolve resolves every candidate in the snapshot against the page base URL
// and drops anything that does not parse to an absolute http(s) URL. Pure:
// the same snapshot and base always produce the same sets.
func Resolve(base *url.URL, snap Snapshot) ResolvedSet {
	return ResolvedSet{
		Images:     resolveAll(base, snap.Images),
		Videos:     resolveAll(base, snap.Videos),
		Floorplans: resolveAll(base, snap.Floorplans),
	}
}

func resolveAll(base *url.URL, candidates []string) []string {
	var resolved []string
	for _, raw := range candidates {
		abs, ok := resolveCandidate(base, raw)
		if ok {
			resolved = append(resolved, abs)
		}
	}
	return resolved
}

func resolveCandidate(base *url.URL, raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}

	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}

	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host == "" {
		return "", false
	}

	return abs.String(), true
}
