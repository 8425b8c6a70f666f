// Package launch builds the payload a pinned shortcut carries and decodes it
// again when the shortcut is opened.
//
// The payload stores the filters twice: as a list and joined into a single
// string. Some launchers drop list-valued extras when they re-deliver a
// shortcut, so decoders fall back to the joined string when the list is
// empty.
package launch

import (
	"slices"
	"strings"
)

const (
	// CollectionPage is the destination opened by pinned collection shortcuts.
	CollectionPage = "/collection"

	// FilterSeparator joins filters in Action.FiltersString. A filter that
	// itself contains the separator cannot be recovered from the joined form.
	FilterSeparator = "###"
)

// Action is the launch payload attached to a shortcut.
type Action struct {
	Page          string   `json:"page"`
	Filters       []string `json:"filters,omitempty"`
	FiltersString string   `json:"filtersString,omitempty"`
}

// NewCollectionAction returns an action opening the collection page for filters.
// The filter slice is copied.
func NewCollectionAction(filters []string) Action {
	return Action{
		Page:          CollectionPage,
		Filters:       slices.Clone(filters),
		FiltersString: JoinFilters(filters),
	}
}

// JoinFilters joins filters with FilterSeparator.
func JoinFilters(filters []string) string {
	return strings.Join(filters, FilterSeparator)
}

// SplitFilters is the inverse of JoinFilters. An empty string yields nil.
func SplitFilters(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, FilterSeparator)
}

// ResolvedFilters returns the structured filter list when present, otherwise
// the filters recovered from FiltersString.
func (a Action) ResolvedFilters() []string {
	if len(a.Filters) > 0 {
		return slices.Clone(a.Filters)
	}
	return SplitFilters(a.FiltersString)
}
