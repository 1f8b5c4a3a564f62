// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// Package server is the demo's HTTP surface: the configure form, the login
// and callback redirects, logout and the dashboard.
package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"

	"darlinggo.co/trout/v2"
	"github.com/hashicorp/cap-oidc-demo/flow"
	"github.com/hashicorp/cap-oidc-demo/oidc"
	"github.com/hashicorp/cap-oidc-demo/session"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/time/rate"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Server serves the demo.
type Server struct {
	engine  *flow.Engine
	cookies *session.Cookies
	logger  hclog.Logger

	limiter               *rate.Limiter
	defaults              FormDefaults
	redirectURI           string
	postLogoutRedirectURI string

	pages  *template.Template
	static http.Handler
}

// New creates a Server.
//
// Supported options:
//
//	WithLogger
//	WithFormDefaults
//	WithRedirectURI
//	WithPostLogoutRedirectURI
//	WithConfigureRate
func New(engine *flow.Engine, cookies *session.Cookies, opt ...Option) (*Server, error) {
	const op = "server.New"
	if engine == nil {
		return nil, fmt.Errorf("%s: engine is nil: %w", op, oidc.ErrNilParameter)
	}
	if cookies == nil {
		return nil, fmt.Errorf("%s: cookies are nil: %w", op, oidc.ErrNilParameter)
	}
	opts := getOpts(opt...)

	pages, err := template.New("pages").Funcs(template.FuncMap{"json": prettyJSON}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("%s: unable to parse templates: %w", op, err)
	}
	static, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Server{
		engine:                engine,
		cookies:               cookies,
		logger:                opts.withLogger,
		limiter:               rate.NewLimiter(opts.withConfigureRate, opts.withConfigureBurst),
		defaults:              opts.withFormDefaults,
		redirectURI:           opts.withRedirectURI,
		postLogoutRedirectURI: opts.withPostLogoutRedirectURI,
		pages:                 pages,
		static:                http.FileServer(http.FS(static)),
	}, nil
}

// Handler returns the routed http.Handler for the demo.
func (s *Server) Handler() http.Handler {
	var router trout.Router

	router.Endpoint("/").Methods("GET").
		Handler(s.logEndpoint(http.HandlerFunc(s.handleHome)))
	router.Endpoint("/configure").Methods("POST").
		Handler(s.logEndpoint(http.HandlerFunc(s.handleConfigure)))
	router.Endpoint("/login").Methods("GET").
		Handler(s.logEndpoint(http.HandlerFunc(s.handleLogin)))
	router.Endpoint("/callback").Methods("GET").
		Handler(s.logEndpoint(http.HandlerFunc(s.handleCallback)))
	router.Endpoint("/logout").Methods("GET").
		Handler(s.logEndpoint(http.HandlerFunc(s.handleLogout)))
	router.Endpoint("/healthz").Methods("GET").
		Handler(http.HandlerFunc(handleHealth))
	router.Endpoint("/scripts.js").Methods("GET").Handler(s.static)
	router.Endpoint("/styles.css").Methods("GET").Handler(s.static)

	return router
}

func (s *Server) logEndpoint(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := s.logger.With("endpoint", r.Header.Get("Trout-Pattern"), "method", r.Method)
		r = r.WithContext(hclog.WithContext(r.Context(), log))
		log.Debug("serving request")
		h.ServeHTTP(w, r)
		log.Debug("served request")
	})
}
