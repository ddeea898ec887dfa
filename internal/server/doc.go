// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the command dispatcher over HTTP.
//
// # Endpoints
//
//   - GET  /health       - Health check
//   - GET  /v1/commands  - Registered commands and their usage
//   - POST /v1/call      - Dispatch one command line
//   - POST /v1/complete  - Completion candidates for a partial line
//   - GET  /v1/history   - Recorded command lines
//   - GET  /v1/tasks     - Background jobs
//
// Call and complete take {"sender": "...", "line": "..."}. The sender may
// also come from the X-Monsoon-Sender header. Grants are looked up by that
// name, so the transport trusts whoever holds the bearer token.
//
// # Middleware
//
//   - Request IDs, real client IPs and panic recovery from chi
//   - Request logging through charmbracelet/log
//   - Optional CORS
//   - Bearer token authentication with constant-time comparison
//   - Per-client rate limiting on call and complete, keyed by address
//
// # Usage
//
//	srv := server.New(cfg.Server, server.Options{
//		Dispatcher: d,
//		Grants:     grants,
//	})
//	if err := srv.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
package server
