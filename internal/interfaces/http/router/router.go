// Package router mounts the ledger's resource groups under /api/<version>.
package router

import (
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
)

// RouteRegistrar mounts its routes below a parent group.
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router collects registrars and the middleware shared by every API route.
// Routes added straight to the engine, such as /health, skip that chain.
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

type RouterOption func(*Router)

// WithAPIVersion replaces the default "v1" path segment.
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) Use(mw ...gin.HandlerFunc) *Router {
	r.middleware = append(r.middleware, mw...)
	return r
}

func (r *Router) Register(reg RouteRegistrar) *Router {
	r.registrars = append(r.registrars, reg)
	return r
}

func (r *Router) BasePath() string { return "/api/" + r.apiVersion }

// Setup mounts every registrar. Call it once, after all Register calls.
func (r *Router) Setup() {
	api := r.engine.Group(r.BasePath(), r.middleware...)
	for _, reg := range r.registrars {
		reg.RegisterRoutes(api)
	}
}

type route struct {
	method, path string
	handlers     []gin.HandlerFunc
}

// DomainGroup is one resource tree (sales, inventory, ...) and its nested
// groups. Routes are recorded and only mounted by RegisterRoutes.
type DomainGroup struct {
	name, prefix string
	middleware   []gin.HandlerFunc
	routes       []route
	children     []*DomainGroup
}

func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

func (g *DomainGroup) Name() string   { return g.name }
func (g *DomainGroup) Prefix() string { return g.prefix }

func (g *DomainGroup) Use(mw ...gin.HandlerFunc) *DomainGroup {
	g.middleware = append(g.middleware, mw...)
	return g
}

func (g *DomainGroup) GET(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodGet, p, h)
}

func (g *DomainGroup) POST(p string, h ...gin.HandlerFunc) *DomainGroup {
	return g.add(http.MethodPost, p, h)
}

func (g *DomainGroup) add(method, p string, h []gin.HandlerFunc) *DomainGroup {
	g.routes = append(g.routes, route{method: method, path: p, handlers: h})
	return g
}

// Group returns a new child group mounted below g.
func (g *DomainGroup) Group(name, prefix string) *DomainGroup {
	child := NewDomainGroup(name, prefix)
	g.children = append(g.children, child)
	return child
}

func (g *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	mounted := rg.Group(g.prefix, g.middleware...)
	for _, rt := range g.routes {
		mounted.Handle(rt.method, rt.path, rt.handlers...)
	}
	for _, child := range g.children {
		child.RegisterRoutes(mounted)
	}
}

// Routes describes the group as "METHOD /full/path" lines below base, own
// routes first and then each child group.
func (g *DomainGroup) Routes(base string) []string {
	prefix := path.Join(base, g.prefix)
	var out []string
	for _, rt := range g.routes {
		full := prefix
		if rt.path != "" && rt.path != "/" {
			full = path.Join(prefix, rt.path)
		}
		out = append(out, rt.method+" "+full)
	}
	for _, child := range g.children {
		out = append(out, child.Routes(prefix)...)
	}
	return out
}
