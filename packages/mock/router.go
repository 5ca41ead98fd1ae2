package mock

import (
	"net/http"
	"strings"
)

// Route binds a method and exact path to a handler
type Route struct {
	Method  string
	Path    string
	Name    string
	Handler http.HandlerFunc
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// AddRoute adds a route to the router
func (r *Router) AddRoute(route *Route) {
	route.Path = normalizePath(route.Path)
	r.routes = append(r.routes, route)
}

// Match finds the route for method and path. The second return value is
// true when the path exists under a different method.
func (r *Router) Match(method, path string) (*Route, bool) {
	path = normalizePath(path)

	pathKnown := false
	for _, route := range r.routes {
		if route.Path != path {
			continue
		}
		pathKnown = true
		if strings.EqualFold(route.Method, method) {
			return route, true
		}
	}

	return nil, pathKnown
}

// Routes returns all registered routes
func (r *Router) Routes() []*Route {
	return r.routes
}

func normalizePath(path string) string {
	// Ensure path starts with /
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Remove trailing slash (except for root)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}
