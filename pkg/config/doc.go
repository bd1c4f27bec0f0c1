// Package config loads protoguard configuration from an optional YAML file
// and environment variables.
//
// Defaults are overridden by the file named in PROTOGUARD_CONFIG (or passed
// to Load), then by environment variables:
//
//	PROTOGUARD_ABS_TOLERANCE=1e-9
//	PROTOGUARD_REL_TOLERANCE=0
//	PROTOGUARD_MAX_DEPTH=64
//	PROTOGUARD_UNIQUE_BUDGET_BYTES=131072
//	PROTOGUARD_BATCH_CONCURRENCY=8
//	PROTOGUARD_CEL_CACHE_SIZE=1024
//	PROTOGUARD_LOG_LEVEL=info
//	PROTOGUARD_METRICS_ENABLED=true
//	PROTOGUARD_METRICS_ADDR=:9090
//	PROTOGUARD_OTEL_ENABLED=false
//	PROTOGUARD_OTEL_ENDPOINT=localhost:4317
//
// The YAML file mirrors the Config struct:
//
//	validation:
//	  abs_tolerance: 1e-9
//	  max_depth: 32
//	cel:
//	  cache_size: 256
//	observability:
//	  log_level: debug
//	  otel:
//	    enabled: true
//	    endpoint: collector:4317
package config
