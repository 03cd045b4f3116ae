// Package mcpbridge carries snapshot transfers over the Model Context
// Protocol. The server exposes the producer side as tools; the client
// implements transfer.Transport on top of tool calls.
package mcpbridge

import (
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/transfer"
)

// Tool names.
const (
	ToolBegin  = "snapshot_begin"
	ToolMore   = "snapshot_more"
	ToolCancel = "snapshot_cancel"
)

// Config holds MCP server configuration.
type Config struct {
	Transport string
	Port      int
	CacheTTL  time.Duration
}

// Server wraps the MCP server with the snapshot cache and the registry of
// suspended producers.
type Server struct {
	mcp      *mcpserver.MCPServer
	cache    *SnapshotCache
	registry *transfer.Registry
	log      zerolog.Logger
}

// NewServer creates an MCP server that transfers snapshots from source.
// opts apply to every producer it starts.
func NewServer(source Source, cfg Config, log zerolog.Logger, version string, opts ...transfer.Option) *Server {
	s := &Server{
		cache:    NewSnapshotCache(source, cfg.CacheTTL),
		registry: transfer.NewRegistry(opts...),
		log:      log,
	}
	// An explicitly refreshed snapshot must not keep old transfers alive.
	s.cache.onEvict = func(snap *model.Snapshot) {
		s.registry.Discard(snap)
	}

	s.mcp = mcpserver.NewMCPServer("uitransfer", version, mcpserver.WithToolCapabilities(false))
	s.registerTools()
	return s
}

// MCP returns the underlying server, for in-process clients.
func (s *Server) MCP() *mcpserver.MCPServer { return s.mcp }

// Registry returns the registry of suspended producers.
func (s *Server) Registry() *transfer.Registry { return s.registry }

// Serve starts the MCP server with the configured transport.
func (s *Server) Serve(cfg Config) error {
	s.log.Info().Str("transport", cfg.Transport).Int("port", cfg.Port).Msg("serving snapshots")
	switch cfg.Transport {
	case "stdio":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", cfg.Transport)
	}
}

func (s *Server) registerTools() {
	s.mcp.AddTool(
		mcp.NewTool(ToolBegin,
			mcp.WithDescription("Start transferring a UI snapshot. Returns the first chunk, base64 encoded. If the chunk ends with a continuation handle, call snapshot_more with it."),
			mcp.WithString("source", mcp.Description("Snapshot name"), mcp.Required()),
			mcp.WithNumber("chunk-size", mcp.Description("Chunk body size in bytes after which a chunk suspends")),
			mcp.WithBoolean("refresh", mcp.Description("Reload the snapshot instead of using the cached copy")),
		),
		s.handleBegin,
	)

	s.mcp.AddTool(
		mcp.NewTool(ToolMore,
			mcp.WithDescription("Fetch the chunk that follows a continuation handle"),
			mcp.WithString("handle", mcp.Description("Continuation handle from the previous chunk"), mcp.Required()),
		),
		s.handleMore,
	)

	s.mcp.AddTool(
		mcp.NewTool(ToolCancel,
			mcp.WithDescription("Abandon a suspended transfer. The next snapshot_more call returns an empty chunk and forgets the handle."),
			mcp.WithString("handle", mcp.Description("Continuation handle"), mcp.Required()),
		),
		s.handleCancel,
	)
}
