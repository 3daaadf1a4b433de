// ABOUTME: Message normalization and final-response reduction
// ABOUTME: Extracts the last substantial assistant reply from a run snapshot

package langgraph

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// FallbackText is returned by Reduce when no qualifying assistant message is
// found in the snapshot.
const FallbackText = "Agent is still processing your request."

// Role values produced by normalization.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleUnknown   = "unknown"
)

// Message is the normalized view of an upstream message. The upstream schema
// is duck typed, so normalization collapses its variants into one shape.
type Message struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Ephemeral bool   `json:"ephemeral,omitempty"`
}

// NormalizeMessage maps a raw upstream message into a Message.
//
// Role resolution reads the role key, then the type key: the upstream emits
// role:"assistant" on some paths and type:"ai" or type:"AIMessage" on others,
// and an assistant-typed message counts as assistant even when the role key
// says something else. Content prefers the nested message.content over the
// top-level content. A truthy progress.ephemeral flag marks transient
// narration.
func NormalizeMessage(raw json.RawMessage) Message {
	doc := gjson.ParseBytes(raw)

	msg := Message{Role: RoleUnknown}

	switch doc.Get("role").String() {
	case "user", "human":
		msg.Role = RoleUser
	case "assistant":
		msg.Role = RoleAssistant
	case "tool":
		msg.Role = RoleTool
	}

	if msg.Role != RoleAssistant {
		switch doc.Get("type").String() {
		case "human", "HumanMessage":
			if msg.Role == RoleUnknown {
				msg.Role = RoleUser
			}
		case "ai", "AIMessage":
			msg.Role = RoleAssistant
		case "tool", "ToolMessage":
			if msg.Role == RoleUnknown {
				msg.Role = RoleTool
			}
		}
	}

	if nested := doc.Get("message.content"); nested.Exists() {
		msg.Content = contentText(nested)
	} else {
		msg.Content = contentText(doc.Get("content"))
	}

	msg.Ephemeral = doc.Get("progress.ephemeral").Bool()

	return msg
}

// contentText renders a content value as text. Strings pass through;
// anything structured keeps its raw JSON form so the reducer's leading-brace
// check can reject it.
func contentText(v gjson.Result) string {
	if !v.Exists() {
		return ""
	}
	if v.Type == gjson.String {
		return v.String()
	}
	return v.Raw
}

// Reduce scans the snapshot's messages from newest to oldest and returns the
// first substantial assistant reply. Ephemeral messages, empty content, and
// content that looks like a serialized object (leading brace) are skipped.
// When nothing qualifies, FallbackText is returned.
//
// This is best-effort extraction from a loosely typed schema, not a
// guarantee.
func Reduce(messages []json.RawMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		msg := NormalizeMessage(messages[i])

		if msg.Role != RoleAssistant || msg.Ephemeral {
			continue
		}
		if msg.Content == "" || strings.HasPrefix(msg.Content, "{") {
			continue
		}

		return msg.Content
	}
	return FallbackText
}
