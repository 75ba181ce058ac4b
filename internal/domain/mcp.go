package domain

import "encoding/json"

// ToolDefinition represents an MCP tool definition.
// This describes a tool that can be called by MCP clients. The input schema is
// carried as raw JSON so it can be both advertised over the protocol and
// compiled for argument validation.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolRequest represents an MCP tool call request.
// This is the request format when a client invokes a tool.
type ToolRequest struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolResponse represents an MCP tool call response.
// This is the sole contract every tool produces, success or failure: an
// ordered sequence of content blocks plus the error flag. Handler failures are
// folded into this envelope at the dispatch boundary and never propagate.
type ToolResponse struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a piece of content in the response.
// MCP supports different content types (text, resource, etc.).
type ContentBlock struct {
	Type string `json:"type"` // "text", "resource", etc.
	Text string `json:"text,omitempty"`
}

// NewTextResponse builds a successful single-block text response.
func NewTextResponse(text string) *ToolResponse {
	return &ToolResponse{
		Content: []ContentBlock{{Type: "text", Text: text}},
	}
}

// NewErrorResponse builds an error response from any failure. The text is the
// rendered form of the error (title, message, and detail when available).
func NewErrorResponse(err error) *ToolResponse {
	return &ToolResponse{
		Content: []ContentBlock{{Type: "text", Text: FormatError(err)}},
		IsError: true,
	}
}
