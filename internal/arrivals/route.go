package arrivals

import (
	"sort"
	"strings"
)

// NormalizeRoute reduces a SIRI LineRef such as "MTA NYCT_Q27" to its route code.
// The code is the text after the last '_', ':' or '/'. A missing LineRef, or one
// that ends in a delimiter, yields UnknownRoute.
func NormalizeRoute(lineRef string, present bool) string {
	if !present {
		return UnknownRoute
	}
	route := lineRef
	if i := strings.LastIndexAny(lineRef, "_:/"); i >= 0 {
		route = lineRef[i+1:]
	}
	route = strings.TrimSpace(route)
	if route == "" {
		return UnknownRoute
	}
	return route
}

// RouteFilter is a case-insensitive allow-list of route codes.
// The zero value allows every route.
type RouteFilter struct {
	routes map[string]struct{}
}

// ParseRouteFilter parses a comma separated list like "q27, Bx12".
// Whitespace around entries is ignored and empty entries are dropped.
func ParseRouteFilter(list string) RouteFilter {
	var f RouteFilter
	for _, part := range strings.Split(list, ",") {
		part = strings.ToUpper(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if f.routes == nil {
			f.routes = make(map[string]struct{})
		}
		f.routes[part] = struct{}{}
	}
	return f
}

// Active reports whether the filter restricts anything
func (f RouteFilter) Active() bool {
	return len(f.routes) > 0
}

// Allows reports whether route passes the filter. With an active filter the
// unknown route is always rejected.
func (f RouteFilter) Allows(route string) bool {
	if !f.Active() {
		return true
	}
	if route == UnknownRoute {
		return false
	}
	_, ok := f.routes[strings.ToUpper(strings.TrimSpace(route))]
	return ok
}

// Routes returns the upper-cased entries of the filter, sorted
func (f RouteFilter) Routes() []string {
	out := make([]string, 0, len(f.routes))
	for r := range f.routes {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}
