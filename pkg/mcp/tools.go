package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/keyfob/keyfob/internal/transform"
)

// handleGet resolves a key and returns the (optionally transformed) secret.
func (s *KeyfobServer) handleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("key is required"), nil
	}
	spec := transform.Spec{
		Hash: req.GetString("hash", ""),
		Salt: req.GetBool("salt", false),
		KDF:  req.GetBool("pbkdf2", false),
	}

	secret, lookupErr := s.lookup.Get(ctx, key, spec)
	if lookupErr != nil {
		return toolError(lookupErr), nil
	}
	return mcp.NewToolResultText(secret), nil
}

// handleSet stores a secret under a key.
func (s *KeyfobServer) handleSet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("key is required"), nil
	}
	secret, err := req.RequireString("secret")
	if err != nil {
		return mcp.NewToolResultError("secret is required"), nil
	}

	id, setErr := s.lookup.Set(ctx, key, []byte(secret))
	if setErr != nil {
		return toolError(setErr), nil
	}
	return marshalResult(map[string]any{"id": id, "key": key})
}

// handleDelete removes the entry for a key.
func (s *KeyfobServer) handleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError("key is required"), nil
	}

	if delErr := s.lookup.Delete(ctx, key); delErr != nil {
		return toolError(delErr), nil
	}
	return marshalResult(map[string]any{"deleted": key})
}

// handleList enumerates entry names; secrets never appear in the result.
func (s *KeyfobServer) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.lookup.List(ctx)
	if err != nil {
		return toolError(err), nil
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.DisplayName)
	}
	return marshalResult(map[string]any{"entries": names})
}

// handleUsername runs the two-stage domain search.
func (s *KeyfobServer) handleUsername(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	domain, err := req.RequireString("domain")
	if err != nil {
		return mcp.NewToolResultError("domain is required"), nil
	}

	names, searchErr := s.lookup.Username(ctx, domain)
	if searchErr != nil {
		return toolError(searchErr), nil
	}
	return marshalResult(map[string]any{"usernames": names})
}

// toolError converts an operation error into an MCP error result. The
// structured code stays visible through KeyfobError's message format.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
