package response

import "net/http"

// Kind tags what the router should do with a handler's result.
type Kind int

const (
	KindRender Kind = iota
	KindRedirect
	KindError
)

// Response is the value every handler returns. The router owns the
// transport action, so handlers never write to the connection themselves.
type Response struct {
	Kind     Kind
	Status   int
	Location string // redirect target
	Template string // view name for renders
	Data     any
}

func Render(template string, data any) Response {
	return Response{Kind: KindRender, Status: http.StatusOK, Template: template, Data: data}
}

func RenderStatus(status int, template string, data any) Response {
	return Response{Kind: KindRender, Status: status, Template: template, Data: data}
}

func Redirect(location string) Response {
	return Response{Kind: KindRedirect, Status: http.StatusFound, Location: location}
}

// NotFound is the dedicated not-found page, used for direct resource views
// and unmatched routes.
func NotFound() Response {
	return Response{Kind: KindError, Status: http.StatusNotFound, Template: "404"}
}

// ServerError is the generic failure page. It carries no detail so nothing
// internal leaks to the client.
func ServerError() Response {
	return Response{Kind: KindError, Status: http.StatusInternalServerError, Template: "500"}
}
