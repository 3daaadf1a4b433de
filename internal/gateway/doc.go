// ABOUTME: Package doc for the gateway orchestration layer
// ABOUTME: Describes request flow, REST surface, and server lifecycle

// Package gateway composes the bridge's moving parts into a running server.
//
// The Orchestrator is the heart of a request: it fills in missing thread and
// conversation identifiers, threads the authenticated subject into the
// upstream payload, drives the run stream, and reduces the result to a single
// reply. Failures surface as graceful text in the result envelope, never as a
// panic or a raw error at the protocol boundary.
//
// Gateway owns the http.Server and route table. The REST surface (/invoke,
// /stream, /agents) sits behind the credential chain; /health and the
// discovery documents are public. The MCP and OAuth handlers are mounted from
// their own packages. Listeners come from plain TCP or an embedded tailscale
// node depending on configuration.
package gateway
