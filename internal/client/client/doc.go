// Package client contains the client-side transports of offsync.
//
// # Overview
//
// The package provides:
//  1. The endpoint contract (see the Client interface): Upload a single
//     staged file and Ping for reachability.
//  2. HTTPClient, which sends one multipart/form-data part named "file",
//     streams byte progress, attaches an optional bearer token and decodes
//     the JSON receipt. Every failure wraps common.ErrUploadFailed; callers
//     only ever retry later.
//  3. HealthProber, an alternative Ping backed by grpc.health.v1.
//  4. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Sentinel errors matchable with errors.Is: ErrUnavailable, ErrUnauthorized,
// ErrBadReceipt, plus common.ErrUploadFailed on every upload failure.
//
// Uploads carry no timeout of their own; Ping is bounded by the probe
// timeout.
package client
