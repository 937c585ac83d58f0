package api

import (
	"net/http"
	"slices"
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

var corsAllowHeaders = strings.Join([]string{"Accept", "Authorization", "Content-Type", "Last-Event-ID"}, ", ")

const corsMaxAge = "86400"

// corsPolicy answers cross-origin requests from a single configured origin.
// Allowed methods are per path, taken from the registered operations.
type corsPolicy struct {
	origin  string
	methods map[string]string // path -> "GET, OPTIONS"
}

func newCORSPolicy(origin string) *corsPolicy {
	return &corsPolicy{origin: origin, methods: map[string]string{}}
}

// collect records the methods of every operation registered on api.
// It must run after all routes are registered and before serving.
func (p *corsPolicy) collect(api huma.API) {
	for path, item := range api.OpenAPI().Paths {
		var methods []string
		for method, op := range map[string]*huma.Operation{
			http.MethodGet:    item.Get,
			http.MethodPost:   item.Post,
			http.MethodPut:    item.Put,
			http.MethodPatch:  item.Patch,
			http.MethodDelete: item.Delete,
		} {
			if op != nil {
				methods = append(methods, method)
			}
		}
		if len(methods) == 0 {
			continue
		}
		slices.Sort(methods)
		p.methods[path] = strings.Join(append(methods, http.MethodOptions), ", ")
	}
}

// middleware marks actual responses as readable by the allowed origin.
func (p *corsPolicy) middleware(ctx huma.Context, next func(huma.Context)) {
	ctx.SetHeader("Access-Control-Allow-Origin", p.origin)
	next(ctx)
}

// preflight handles OPTIONS on the mux. Huma never routes OPTIONS, so
// preflights would otherwise get 405 from the mux.
func (p *corsPolicy) preflight(w http.ResponseWriter, r *http.Request) {
	methods, ok := p.methods[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", p.origin)
	h.Set("Access-Control-Allow-Methods", methods)
	h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	h.Set("Access-Control-Max-Age", corsMaxAge)
	w.WriteHeader(http.StatusNoContent)
}
