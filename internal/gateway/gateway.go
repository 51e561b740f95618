// Package gateway implements the platform's edge gateway: the one trust
// boundary where inbound bearer credentials are verified. Verified identity
// is forwarded to internal services as injected headers; internal services
// never check signatures themselves.
package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/taskhive/platform/internal/config"
	internalhttp "github.com/taskhive/platform/internal/httputil"
)

// Gateway proxies public traffic to the owning internal services. It is
// stateless per request; no session affinity, no shared mutable state.
type Gateway struct {
	router *mux.Router
	log    *zap.Logger
}

// New builds the gateway from a route table. Authentication runs strictly
// before any forwarding: an unauthenticated request reaches an internal
// service only with its identity headers cleared.
func New(table *config.RouteTable, secret []byte, log *zap.Logger) (*Gateway, error) {
	g := &Gateway{
		router: mux.NewRouter(),
		log:    log,
	}

	g.router.Use(Authenticate(secret, log))

	for _, route := range table.Routes {
		target, err := url.Parse(route.Target)
		if err != nil {
			return nil, err
		}
		g.router.PathPrefix(route.Prefix).Handler(g.proxyTo(target))
		log.Info("route registered",
			zap.String("prefix", route.Prefix),
			zap.String("target", route.Target),
		)
	}

	g.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		internalhttp.WriteError(w, http.StatusNotFound, "no route for path")
	})

	return g, nil
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.router.ServeHTTP(w, r)
}

// proxyTo forwards to one internal service. An unreachable upstream surfaces
// as a bad-gateway failure to the caller; there is no retry.
func (g *Gateway) proxyTo(target *url.URL) http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(target)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		g.log.Error("upstream unreachable",
			zap.String("path", r.URL.Path),
			zap.String("target", target.String()),
			zap.Error(err),
		)
		internalhttp.WriteError(w, http.StatusBadGateway, "upstream service unavailable")
	}
	return proxy
}
