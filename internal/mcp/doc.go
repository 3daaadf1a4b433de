// ABOUTME: Package doc for the MCP JSON-RPC surface
// ABOUTME: Covers transport behavior, sessions, and the agent tool set

// Package mcp implements the Model Context Protocol endpoint at /mcp.
//
// The transport is Streamable HTTP: JSON-RPC 2.0 messages over POST, with
// sessions established by the initialize handshake and identified by the
// Mcp-Session-Id header. Notifications are accepted with HTTP 202 and no
// body. Server-initiated streams are not supported.
//
// The tool set fronts the upstream agent platform: invoke_agent and
// stream_agent run conversations, the health and status tools run the
// monitoring assistant, and the thread tools pass platform state through
// unmodified. echo and get_server_info exist for connectivity checks from
// chat clients.
//
// Credential checking happens in the HTTP middleware wrapping this endpoint,
// not here; handlers read the resolved identity from the request context.
package mcp
