// Package server exposes compiled message types over HTTP so that other
// services can validate protojson documents without linking the engine.
//
// Routes:
//
//	GET  /healthz               liveness, and limiter health when it has one
//	GET  /v1/types              full names of every message type
//	POST /v1/validate/{type}    validate one protojson document
//	GET  /metrics               Prometheus metrics, when a registry is set
//
// A validator is built the first time its type is requested and kept in an
// LRU cache. Concurrent first requests for one type share a single build.
package server
