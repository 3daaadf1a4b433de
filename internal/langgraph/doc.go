// ABOUTME: Package doc for the upstream agent platform client
// ABOUTME: Covers SSE stream parsing, message reduction, and thread passthrough

// Package langgraph talks to the upstream agent platform over HTTP.
//
// The platform streams run results as Server-Sent Events. Client.StreamRun
// drives a run to completion and hands the frames to the event parser, which
// keeps the run id from the metadata event and the latest full message
// snapshot from values events. Reduce then extracts the final assistant reply
// from that snapshot.
//
// Message extraction is best effort. The upstream message schema is loosely
// typed: role and type keys are used interchangeably, content sometimes lives
// under a nested message object, and progress narration is interleaved with
// real replies. Reduce applies the heuristics that have held up in practice
// and falls back to FallbackText when nothing qualifies.
package langgraph
