// Package profile extracts best-effort agent details and avatar candidates
// from single-page profile HTML. No browser involved; extraction is pure
// pattern matching over unknown markup with graceful degradation to "not
// found" rather than failure.
package profile

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// CandidateImage is an avatar candidate found on the profile page. The
// confidence is a static heuristic score fixed at extraction time, not a
// ranking.
type CandidateImage struct {
	Type       string  `json:"type"`
	URL        string  `json:"url"`
	Name       string  `json:"name,omitempty"`
	Confidence float64 `json:"confidence"`
}

// AgentDetails holds the best-guess person fields. Every field is
// independently optional; absence means not found.
type AgentDetails struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Position string `json:"position,omitempty"`
}

// Result is the full static-extraction output.
type Result struct {
	Images       []CandidateImage `json:"images"`
	AgentDetails AgentDetails     `json:"agentDetails"`
}

const (
	defaultConfidence = 0.5
	maxNameLength     = 50
)

// nameSelectors is the ordered heuristic table for the person's name:
// heading tags first, then class/id patterns. The first element whose
// trimmed text qualifies wins; later heuristics are not consulted.
var nameSelectors = []string{
	"h1",
	"h2",
	".agent-name",
	".profile-name",
	"[class*='agent-name']",
	"[id*='agent-name']",
	"[class*='profile-name']",
	"[class*='name']",
	"[id*='name']",
}

// positionSelectors is the ordered heuristic table for the job title.
var positionSelectors = []string{
	".position",
	".agent-position",
	".job-title",
	".agent-title",
	"[class*='position']",
	"[class*='job-title']",
	"[class*='role']",
	"[class*='title']",
}

// avatarExcludeKeywords filter out site chrome masquerading as avatars.
var avatarExcludeKeywords = []string{"icon", "logo", "favicon"}

// Extract parses the HTML and returns avatar candidates plus agent details.
// Malformed HTML never fails; the worst case is empty collections. Relative
// image URLs are resolved against baseURL when it parses.
func Extract(html, baseURL string) Result {
	result := Result{Images: []CandidateImage{}}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return result
	}

	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() {
		base = nil
	}

	result.Images = extractImages(doc, base)
	result.AgentDetails = AgentDetails{
		Name:     firstMatch(doc, nameSelectors, acceptName),
		Email:    firstAnchor(doc, "mailto:"),
		Phone:    firstAnchor(doc, "tel:"),
		Position: firstMatch(doc, positionSelectors, acceptPosition),
	}

	return result
}

// extractImages collects every img whose src/alt misses the exclusion list.
// This is a filter, not a ranking; every candidate gets the same confidence.
func extractImages(doc *goquery.Document, base *url.URL) []CandidateImage {
	images := []CandidateImage{}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, ok := s.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			return
		}
		alt := s.AttrOr("alt", "")

		if matchesExclusion(src) || matchesExclusion(alt) {
			return
		}

		abs, ok := absoluteURL(base, src)
		if !ok {
			return
		}

		images = append(images, CandidateImage{
			Type:       "image",
			URL:        abs,
			Name:       strings.TrimSpace(alt),
			Confidence: defaultConfidence,
		})
	})

	return images
}

func matchesExclusion(s string) bool {
	s = strings.ToLower(s)
	for _, kw := range avatarExcludeKeywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func absoluteURL(base *url.URL, raw string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(raw))
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
	return abs.String(), true
}

// firstMatch walks the ordered selector table and returns the text of the
// first element the accept function approves. One generic routine for all
// heuristic tables instead of per-field conditional chains.
func firstMatch(doc *goquery.Document, selectors []string, accept func(string) bool) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.TrimSpace(s.Text())
			if accept(text) {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func acceptName(text string) bool {
	return text != "" && len(text) < maxNameLength
}

// acceptPosition rejects candidates that look like emails or phone numbers
// rather than job titles.
func acceptPosition(text string) bool {
	if text == "" || len(text) >= maxNameLength {
		return false
	}
	if strings.Contains(text, "@") {
		return false
	}
	r := []rune(text)[0]
	if unicode.IsDigit(r) || r == '+' {
		return false
	}
	return true
}

// firstAnchor returns the target of the first anchor with the given scheme
// prefix, with the prefix stripped.
func firstAnchor(doc *goquery.Document, prefix string) string {
	var found string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if strings.HasPrefix(strings.ToLower(href), prefix) {
			found = href[len(prefix):]
			return false
		}
		return true
	})
	return found
}
