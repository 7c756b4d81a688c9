// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

// Package server wires the authentication dispatcher and workflow engine
// into the HTTP surface of the authorization server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/corvidae/gatehouse/pkg/auth"
	"github.com/corvidae/gatehouse/pkg/config"
	"github.com/corvidae/gatehouse/pkg/patsource"
	"github.com/corvidae/gatehouse/pkg/session"
	"github.com/corvidae/gatehouse/pkg/workflow"
)

const (
	middlewareTimeout = 60 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// Handler provides the HTTP handlers for the authorization server endpoints.
type Handler struct {
	dispatcher *auth.Dispatcher
	engine     *workflow.Engine
	sessions   session.Store
	cfg        *config.Config
	grants     GrantHandler
	pats       *patsource.Source
}

// Option configures a Handler.
type Option func(*Handler)

// WithGrantHandler plugs in the downstream grant processing. Without it the
// machine endpoints authenticate the client and reply with the
// not-implemented stub.
func WithGrantHandler(g GrantHandler) Option {
	return func(h *Handler) {
		h.grants = g
	}
}

// WithPATSource provides the upstream service-credential source to grant
// handlers that talk to other authorization servers.
func WithPATSource(s *patsource.Source) Option {
	return func(h *Handler) {
		h.pats = s
	}
}

// NewHandler wires the HTTP layer.
func NewHandler(
	dispatcher *auth.Dispatcher,
	engine *workflow.Engine,
	sessions session.Store,
	cfg *config.Config,
	opts ...Option,
) *Handler {
	h := &Handler{
		dispatcher: dispatcher,
		engine:     engine,
		sessions:   sessions,
		cfg:        cfg,
		grants:     UnimplementedGrantHandler{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the router with all endpoints registered. Each machine
// endpoint group runs the dispatcher for its endpoint kind; the interactive
// pages drive the workflow engine directly.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
	)

	r.Group(func(r chi.Router) {
		r.Use(h.dispatcher.Middleware(auth.EndpointToken))
		r.Post("/token", h.handleToken)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.dispatcher.Middleware(auth.EndpointUMAToken))
		r.Post("/uma/token", h.handleToken)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.dispatcher.Middleware(auth.EndpointRevoke))
		r.Post("/revoke", h.handleRevoke)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.dispatcher.Middleware(auth.EndpointAuthorize))
		r.Get("/authorize", h.handleAuthorize)
	})

	r.Get("/login", h.handleLoginPage)
	r.Get(workflow.DefaultLoginPage, h.handleLoginPage)
	r.Post("/login", h.handleLoginSubmit)
	r.Get(workflow.ErrorPage, h.handleErrorPage)

	r.Get("/health", h.handleHealth)
	return r
}

// PATSource returns the upstream service-credential source, or nil when
// none was configured.
func (h *Handler) PATSource() *patsource.Source {
	return h.pats
}

func (*Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}
