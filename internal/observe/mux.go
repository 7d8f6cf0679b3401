package observe

import (
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Multiplexer is satisfied by *http.ServeMux.
type Multiplexer interface {
	Handle(pattern string, handler http.Handler)
	http.Handler
}

// Mux registers handlers on a wrapped multiplexer with server telemetry, so
// spans are named by route rather than by request path.
type Mux struct {
	Multiplexer
	server string
}

func NewMux(wrapped Multiplexer, server string) *Mux {
	return &Mux{Multiplexer: wrapped, server: server}
}

func (mux *Mux) Handle(pattern string, handler http.Handler) {
	instrumented := otelhttp.NewHandler(handler, RouteName(pattern), otelhttp.WithServerName(mux.server))
	mux.Multiplexer.Handle(pattern, instrumented)
}

// RouteName reduces a ServeMux pattern to its path, dropping any method and
// host.
func RouteName(pattern string) string {
	if method, rest, ok := strings.Cut(pattern, " "); ok && isMethod(method) {
		pattern = strings.TrimLeft(rest, " ")
	}

	if i := strings.IndexByte(pattern, '/'); i > 0 {
		pattern = pattern[i:]
	}

	return pattern
}

func isMethod(s string) bool {
	switch s {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodPatch,
		http.MethodDelete, http.MethodConnect, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
