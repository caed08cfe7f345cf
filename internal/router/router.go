// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router sets up all HTTP routes and middleware chains for the
// category tree API.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"categorytree/internal/handlers"
	"categorytree/internal/middleware"
)

// APIPrefix is the versioned prefix every category route lives under.
const APIPrefix = "/api/v1"

// MutationScope names the rate limiter guarding category writes.
const MutationScope = "category_mutations"

// Options configures the middleware that depends on runtime settings.
type Options struct {
	// MaxBodyBytes caps request bodies. Zero disables the limit.
	MaxBodyBytes int64

	// Limiter rate-limits mutating category routes, normally created with
	// MutationScope. Nil disables it.
	Limiter *middleware.RateLimiter
}

// New creates and returns the configured Chi router with all middleware
// and route groups wired up.
func New(categories *handlers.Categories, opts Options) chi.Router {
	r := chi.NewRouter()

	// Global middleware, applied to every request.
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.SecureHeaders)
	if opts.MaxBodyBytes > 0 {
		r.Use(middleware.BodyLimit(opts.MaxBodyBytes))
	}

	r.Get("/health", healthHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route(APIPrefix, func(r chi.Router) {
		r.Get("/category/{id}", categories.Get)
		r.Get("/categories", categories.Forest)

		// Mutations share the per-IP limit.
		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(opts.Limiter.Middleware)
			}
			r.Post("/category", categories.Create)
			r.Delete("/category/{id}", categories.Delete)
			r.Patch("/category/{id}/move", categories.Move)
		})
	})

	return r
}

// healthHandler returns a simple JSON health check response.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}
