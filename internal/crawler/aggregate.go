package crawler

import "fmt"

// orderedSet is a uniqueness set with insertion-ordered iteration. First
// insertion wins the position; later duplicates are ignored.
type orderedSet struct {
	seen  map[string]struct{}
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(u string) {
	if _, ok := s.seen[u]; ok {
		return
	}
	s.seen[u] = struct{}{}
	s.order = append(s.order, u)
}

// Aggregator accumulates resolved URLs from every extraction pass into
// per-type uniqueness sets. Merging the same resource twice has no observable
// effect. The aggregator provides insertion order only; it never re-sorts by
// relevance or provenance.
type Aggregator struct {
	images     *orderedSet
	videos     *orderedSet
	floorplans *orderedSet
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		images:     newOrderedSet(),
		videos:     newOrderedSet(),
		floorplans: newOrderedSet(),
	}
}

// Merge folds one extraction pass into the aggregator. Idempotent.
func (a *Aggregator) Merge(set ResolvedSet) {
	for _, u := range set.Images {
		a.images.add(u)
	}
	for _, u := range set.Videos {
		a.videos.add(u)
	}
	for _, u := range set.Floorplans {
		a.floorplans.add(u)
	}
}

// Len reports the total number of accumulated resources.
func (a *Aggregator) Len() int {
	return len(a.images.order) + len(a.videos.order) + len(a.floorplans.order)
}

// Assemble converts the aggregated sets into the final ordered asset list:
// images first, then videos, then floor-plans, each with a type-scoped
// zero-based id. All assets start unselected; selection is a caller concern.
func (a *Aggregator) Assemble() []MediaAsset {
	assets := make([]MediaAsset, 0, a.Len())

	for i, u := range a.images.order {
		assets = append(assets, MediaAsset{
			ID:   fmt.Sprintf("img-%d", i),
			URL:  u,
			Type: TypeImage,
		})
	}
	for i, u := range a.videos.order {
		assets = append(assets, MediaAsset{
			ID:   fmt.Sprintf("video-%d", i),
			URL:  u,
			Type: TypeVideo,
		})
	}
	for i, u := range a.floorplans.order {
		assets = append(assets, MediaAsset{
			ID:       fmt.Sprintf("floorplan-%d", i),
			URL:      u,
			Type:     TypeImage,
			Category: CategoryFloorplan,
		})
	}

	return assets
}
