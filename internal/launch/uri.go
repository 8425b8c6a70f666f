package launch

import (
	"errors"
	"fmt"
	"net/url"
)

const (
	// Scheme is the URI scheme used in desktop entry Exec lines.
	Scheme = "homepin"

	uriHost          = "open"
	keyPage          = "page"
	keyFilters       = "filters"
	keyFiltersString = "filtersString"
)

// ErrInvalidURI is returned by ParseURI for URIs that do not carry a launch payload.
var ErrInvalidURI = errors.New("launch: invalid uri")

// URI encodes the action as homepin://open?page=...&filters=...&filtersString=...
func (a Action) URI() string {
	values := url.Values{}
	values.Set(keyPage, a.Page)
	for _, filter := range a.Filters {
		values.Add(keyFilters, filter)
	}
	if a.FiltersString != "" {
		values.Set(keyFiltersString, a.FiltersString)
	}
	u := url.URL{
		Scheme:   Scheme,
		Host:     uriHost,
		RawQuery: values.Encode(),
	}
	return u.String()
}

// ParseURI decodes a URI produced by Action.URI.
func ParseURI(raw string) (Action, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrInvalidURI, err)
	}
	if u.Scheme != Scheme || u.Host != uriHost {
		return Action{}, fmt.Errorf("%w: unexpected target %s://%s", ErrInvalidURI, u.Scheme, u.Host)
	}
	query := u.Query()
	page := query.Get(keyPage)
	if page == "" {
		return Action{}, fmt.Errorf("%w: missing %s", ErrInvalidURI, keyPage)
	}
	return Action{
		Page:          page,
		Filters:       query[keyFilters],
		FiltersString: query.Get(keyFiltersString),
	}, nil
}
