// Package cli provides the protoguard command-line interface.
//
// # Commands
//
// check: compile sources and build a validator for every message type,
// reporting inconsistent rules
//
//	protoguard check -I ./proto acme/v1/user.proto
//
// validate: validate protojson documents against a message type
//
//	protoguard validate -I ./proto --type acme.v1.User user.json
//	cat user.json | protoguard validate -I ./proto --type acme.v1.User -
//
// schema: assemble the sources and print the tree, descriptors or rules
//
//	protoguard schema -I ./proto --format tree
//	protoguard schema -I ./proto --format descriptors
//	protoguard schema -I ./proto --format rules
//
// lint: lint the assembled schema
//
//	protoguard lint -I ./proto --format text
//	protoguard lint --rules
//
// watch: re-run check whenever a .proto file changes
//
//	protoguard watch -I ./proto --delay 1s
//
// serve: serve validation over HTTP
//
//	protoguard serve -I ./proto --addr :8080 --rate-limit 100
//	protoguard serve -I ./proto --rate-limit 100 --redis-addr localhost:6379
//
// Without file arguments every .proto file under the first import path is
// compiled.
//
// # Configuration
//
// --config names a YAML config file (PROTOGUARD_CONFIG otherwise) and
// PROTOGUARD_* environment variables override it. --metrics-addr serves
// Prometheus metrics while a command runs.
package cli
