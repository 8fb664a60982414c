// Package crawler discovers listing media on third-party pages using a
// headless browser session per request.
package crawler

// Media asset types and categories.
const (
	TypeImage = "image"
	TypeVideo = "video"

	CategoryFloorplan = "floorplan"
)

// MediaAsset is one discovered media resource. Assets are created only by the
// result assembler at the end of a crawl and are never mutated afterwards;
// the caller owns them once returned.
type MediaAsset struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
	Selected bool   `json:"selected"`
}

// Snapshot holds the raw candidate references collected from one extraction
// pass over the live DOM. Candidates may be relative or malformed; resolution
// against the page base URL happens in Resolve.
type Snapshot struct {
	Images     []string `json:"images"`
	Videos     []string `json:"videos"`
	Floorplans []string `json:"floorplans"`
}

// ResolvedSet holds absolute, validated URLs per resource type from a single
// extraction pass, in discovery order.
type ResolvedSet struct {
	Images     []string
	Videos     []string
	Floorplans []string
}
