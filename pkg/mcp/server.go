// Package mcp exposes the keyring over the Model Context Protocol so agents
// can look up credentials without shelling out. Delivery over MCP bypasses
// the exposure sinks: the secret travels in the tool result only.
package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/keyfob/keyfob/internal/lookup"
)

// KeyfobServerDeps holds the dependencies for creating a KeyfobServer.
type KeyfobServerDeps struct {
	Lookup *lookup.Service
	Logger *slog.Logger
}

// KeyfobServer wraps an MCP server with keyring tool handlers.
type KeyfobServer struct {
	lookup    *lookup.Service
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewKeyfobServer creates a KeyfobServer with all 5 tools registered.
func NewKeyfobServer(deps KeyfobServerDeps) *KeyfobServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &KeyfobServer{lookup: deps.Lookup, logger: logger}

	mcpSrv := server.NewMCPServer(
		"keyfob",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Keyfob stores credentials in an attribute-indexed secret store. Use keyfob.get to retrieve a secret (optionally hashed or PBKDF2-derived), keyfob.set to store one, keyfob.delete to remove one, keyfob.list to enumerate entry names, and keyfob.username to find account names for a domain."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *KeyfobServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *KeyfobServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *KeyfobServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: getTool(), Handler: s.handleGet},
		{Tool: setTool(), Handler: s.handleSet},
		{Tool: deleteTool(), Handler: s.handleDelete},
		{Tool: listTool(), Handler: s.handleList},
		{Tool: usernameTool(), Handler: s.handleUsername},
	}
}

// --- Tool definitions ---

func getTool() mcp.Tool {
	return mcp.NewTool("keyfob.get",
		mcp.WithDescription("Retrieve a secret by lookup key, following link entries"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Lookup key (plain name or user@server)")),
		mcp.WithString("hash", mcp.Description("Digest the secret: sha256, sha1, md5, ... or base64")),
		mcp.WithBoolean("salt", mcp.Description("Salt the hash or derivation with the lookup key")),
		mcp.WithBoolean("pbkdf2", mcp.Description("Derive with PBKDF2 instead of returning the raw secret")),
	)
}

func setTool() mcp.Tool {
	return mcp.NewTool("keyfob.set",
		mcp.WithDescription("Store a secret under a lookup key, replacing any existing entry"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Lookup key (plain name or user@server)")),
		mcp.WithString("secret", mcp.Required(), mcp.Description("Secret value to store")),
	)
}

func deleteTool() mcp.Tool {
	return mcp.NewTool("keyfob.delete",
		mcp.WithDescription("Delete the entry for a lookup key (links are not followed)"),
		mcp.WithString("key", mcp.Required(), mcp.Description("Lookup key to delete")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("keyfob.list",
		mcp.WithDescription("List entry names in the ring (never returns secrets)"),
	)
}

func usernameTool() mcp.Tool {
	return mcp.NewTool("keyfob.username",
		mcp.WithDescription("Find account names stored for a domain"),
		mcp.WithString("domain", mcp.Required(), mcp.Description("Domain to search, e.g. example.com")),
	)
}
