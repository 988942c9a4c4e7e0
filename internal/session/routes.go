package session

import (
	"strings"
)

// RouteDef declares one route of the application. Children are relative to
// the parent path and inherit its RequiresAuth.
type RouteDef struct {
	Path         string
	Name         string
	RequiresAuth bool
	Children     []RouteDef
}

type compiledRoute struct {
	name         string
	segments     []string
	requiresAuth bool
}

// RouteTable resolves paths to routes
type RouteTable struct {
	routes []compiledRoute
}

// NewRouteTable flattens defs in declaration order; a parent precedes its children
func NewRouteTable(defs []RouteDef) *RouteTable {
	t := &RouteTable{}
	for _, d := range defs {
		t.add("", false, d)
	}
	return t
}

func (t *RouteTable) add(prefix string, inherited bool, d RouteDef) {
	full := joinPath(prefix, d.Path)
	auth := inherited || d.RequiresAuth
	t.routes = append(t.routes, compiledRoute{name: d.Name, segments: splitPath(full), requiresAuth: auth})
	for _, c := range d.Children {
		t.add(full, auth, c)
	}
}

// Resolve matches path against the table. Unknown paths resolve to a public
// route carrying the requested path.
func (t *RouteTable) Resolve(path string) Route {
	clean := normalizePath(path)
	segs := splitPath(clean)
	var layout *Route
	for _, r := range t.routes {
		params, ok := match(r.segments, segs)
		if !ok {
			continue
		}
		route := Route{Path: clean, Name: r.name, RequiresAuth: r.requiresAuth, Params: params}
		if r.name != "" {
			return route
		}
		// unnamed layout routes lose to a named child at the same path
		if layout == nil {
			layout = &route
		}
	}
	if layout != nil {
		return *layout
	}
	return Route{Path: clean}
}

// Names lists every named route in declaration order
func (t *RouteTable) Names() []string {
	out := make([]string, 0, len(t.routes))
	for _, r := range t.routes {
		if r.name != "" {
			out = append(out, r.name)
		}
	}
	return out
}

func match(pattern, segs []string) (map[string]string, bool) {
	if len(pattern) != len(segs) {
		return nil, false
	}
	var params map[string]string
	for i, p := range pattern {
		if name, ok := strings.CutPrefix(p, ":"); ok {
			if segs[i] == "" {
				return nil, false
			}
			if params == nil {
				params = make(map[string]string)
			}
			params[name] = segs[i]
			continue
		}
		if !strings.EqualFold(p, segs[i]) {
			return nil, false
		}
	}
	return params, true
}

// normalizePath drops query, fragment and trailing slashes
func normalizePath(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	path = "/" + strings.Trim(path, "/")
	return path
}

func joinPath(prefix, p string) string {
	if strings.HasPrefix(p, "/") || prefix == "" {
		return normalizePath(p)
	}
	if p == "" {
		return prefix
	}
	return normalizePath(prefix + "/" + p)
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// DefaultRoutes is the route list of the SMODF application
func DefaultRoutes() []RouteDef {
	return []RouteDef{
		{Path: "/", Name: "home"},
		{Path: "/login", Name: "login"},
		{Path: "/register", Name: "register"},
		{Path: "/docusmodf1", Name: "docusmodf1"},
		{Path: "/proyectos", Name: "proyectos-standalone"},
		{Path: "/proyectos/:id", Name: "project-detail-standalone"},
		{Path: "/constructorproyecto", Name: "constructor-proyecto", RequiresAuth: true},
		{Path: "/EstudioThree", Name: "estudio-three-standalone"},
		{Path: "/sistema", RequiresAuth: true, Children: []RouteDef{
			{Path: "", Name: "sistema"},
			{Path: "analisis", Name: "analisis"},
			{Path: "proyectos", Name: "proyectos"},
			{Path: "proyectos/:id", Name: "project-detail"},
			{Path: "imagenes", Name: "imagenes"},
			{Path: "modelos", Name: "modelos"},
			{Path: "estudio-three", Name: "estudio-three"},
			{Path: "perfil", Name: "perfil"},
		}},
	}
}

// DefaultRouteTable resolves against DefaultRoutes
func DefaultRouteTable() *RouteTable {
	return NewRouteTable(DefaultRoutes())
}
