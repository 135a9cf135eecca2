// Package api is latchtree's HTTP control plane: put/get against named
// indexes backed by pkg/registry, PALM batch submission and polling
// backed by pkg/palm, plus health and prometheus scrape endpoints.
package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ssargent/latchtree/pkg/metrics"
	"github.com/ssargent/latchtree/pkg/palm"
	"github.com/ssargent/latchtree/pkg/registry"
)

// StartServer builds the router and blocks serving it on config.Port.
func StartServer(reg *registry.Registry, engine *palm.Engine, config ServerConfig) error {
	m := metrics.New(nil)
	server := NewServer(reg, engine, m)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/healthz", m.InstrumentHandler("GET", "/v1/healthz", server.handleHealth))

	r.Route("/v1/indexes/{name}", func(r chi.Router) {
		r.Post("/keys", m.InstrumentHandler("POST", "/v1/indexes/{name}/keys", server.handlePutKey))
		r.Get("/keys/{key}", m.InstrumentHandler("GET", "/v1/indexes/{name}/keys/{key}", server.handleGetKey))
	})

	r.Post("/v1/batches", m.InstrumentHandler("POST", "/v1/batches", server.handleSubmitBatch))
	r.Get("/v1/batches/{id}", m.InstrumentHandler("GET", "/v1/batches/{id}", server.handleGetBatch))

	addr := fmt.Sprintf(":%d", config.Port)
	log.Printf("latchtree API listening on %s", addr)
	return http.ListenAndServe(addr, r)
}
