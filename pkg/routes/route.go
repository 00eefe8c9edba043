package routes

import (
	"net/http"

	"github.com/JaimeStill/sectional/pkg/openapi"
)

// Route binds an HTTP method and pattern to a handler. Middleware wraps
// only this route, inside any group middleware. OpenAPI, when set, documents
// the route in the generated API description.
type Route struct {
	Method     string
	Pattern    string
	Handler    http.HandlerFunc
	Middleware []func(http.Handler) http.Handler
	OpenAPI    *openapi.Operation
}

func (r Route) handler() http.Handler {
	return wrap(r.Handler, r.Middleware)
}
