package router

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/movieflix/movieflix-service/internal/session"
	"github.com/movieflix/movieflix-service/internal/web/response"
	"github.com/movieflix/movieflix-service/internal/web/view"
)

// HandlerFunc receives the request, the client's session and the captured
// placeholder values in left-to-right pattern order. It returns a tagged
// Response; the router performs the transport action.
type HandlerFunc func(r *http.Request, sess *session.Session, params []string) response.Response

type segment struct {
	literal string
	isParam bool
}

// Route binds a method and path pattern to a handler behind an access
// policy. Patterns are matched in registration order; the first match wins.
type Route struct {
	Method   string
	Pattern  string
	Policy   Policy
	Handle   HandlerFunc
	segments []segment
}

// compilePattern splits a pattern on "/" so that a literal segment must
// match exactly and a "{name}" segment captures one or more non-slash
// characters. Splitting keeps empty boundary segments, which makes
// trailing-slash differences a non-match with no normalization.
func compilePattern(pattern string) []segment {
	parts := strings.Split(pattern, "/")
	segments := make([]segment, len(parts))
	for i, p := range parts {
		if len(p) >= 2 && strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}") {
			segments[i] = segment{isParam: true}
			continue
		}
		segments[i] = segment{literal: p}
	}
	return segments
}

// matchPath tests path against the compiled pattern and returns the
// captured placeholder values. Matching is case-sensitive.
func (rt *Route) matchPath(path string) ([]string, bool) {
	parts := strings.Split(path, "/")
	if len(parts) != len(rt.segments) {
		return nil, false
	}

	var params []string
	for i, seg := range rt.segments {
		if seg.isParam {
			if parts[i] == "" {
				return nil, false
			}
			params = append(params, parts[i])
			continue
		}
		if parts[i] != seg.literal {
			return nil, false
		}
	}
	return params, true
}

// Router dispatches requests over an ordered route table.
type Router struct {
	routes   []Route
	sessions *session.Manager
	renderer *view.Renderer
	logger   *slog.Logger
}

func New(sessions *session.Manager, renderer *view.Renderer, logger *slog.Logger) *Router {
	return &Router{
		sessions: sessions,
		renderer: renderer,
		logger:   logger,
	}
}

// Register appends a route to the table. Registration order is match
// precedence.
func (rt *Router) Register(method, pattern string, policy Policy, h HandlerFunc) {
	rt.routes = append(rt.routes, Route{
		Method:   strings.ToUpper(method),
		Pattern:  pattern,
		Policy:   policy,
		Handle:   h,
		segments: compilePattern(pattern),
	})
}

// Dispatch resolves a method and raw request path (query string permitted)
// against the route table. It returns the first matching route and the
// captured placeholder values.
func (rt *Router) Dispatch(method, rawPath string) (*Route, []string, bool) {
	path := rawPath
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	for i := range rt.routes {
		route := &rt.routes[i]
		if route.Method != method {
			continue
		}
		if params, ok := route.matchPath(path); ok {
			return route, params, true
		}
	}
	return nil, nil, false
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess := rt.sessions.Load(w, r)

	route, params, ok := rt.Dispatch(r.Method, r.URL.RequestURI())

	var resp response.Response
	switch {
	case !ok:
		resp = response.NotFound()
	case route.Handle == nil:
		// A registered route pointing at nothing is a configuration
		// fault, not a routing fault.
		rt.logger.Error("route has no handler", "method", route.Method, "pattern", route.Pattern)
		resp = response.ServerError()
	default:
		if denied, stop := route.Policy.Check(sess); stop {
			resp = denied
		} else {
			resp = route.Handle(r, sess, params)
		}
	}

	rt.write(w, r, resp)

	rt.logger.Info("http_request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", resp.Status,
	)
}

func (rt *Router) write(w http.ResponseWriter, r *http.Request, resp response.Response) {
	if resp.Kind == response.KindRedirect {
		http.Redirect(w, r, resp.Location, resp.Status)
		return
	}

	if err := rt.renderer.Render(w, resp.Status, resp.Template, resp.Data); err != nil {
		rt.logger.Error("failed to render template", "template", resp.Template, "error", err.Error())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
