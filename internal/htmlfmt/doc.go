// ABOUTME: Package doc for markdown-to-HTML rendering
// ABOUTME: Fragments for API responses, full styled pages for iframes

// Package htmlfmt renders agent replies as HTML. Chat clients that embed
// responses in an iframe get a full styled page; API callers asking for HTML
// output get just the rendered fragment.
//
// Input is treated as GitHub-flavored markdown. A reply that fails markdown
// conversion is escaped and returned as-is rather than dropped, so the caller
// always gets something displayable.
package htmlfmt
