package mcpbridge

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/uitransfer/internal/transfer"
)

// ChunkResult is the YAML body of a snapshot_begin or snapshot_more reply.
type ChunkResult struct {
	Chunk  string `yaml:"chunk"`
	Bytes  int    `yaml:"bytes"`
	More   bool   `yaml:"more"`
	Handle string `yaml:"handle,omitempty"`
}

func chunkResult(data []byte, more bool, h transfer.Handle) *mcp.CallToolResult {
	res := ChunkResult{
		Chunk: base64.StdEncoding.EncodeToString(data),
		Bytes: len(data),
		More:  more,
	}
	if more {
		res.Handle = string(h)
	}
	b, err := yaml.Marshal(res)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode chunk: %v", err))
	}
	return mcp.NewToolResultText(string(b))
}

func (s *Server) handleBegin(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := request.GetArguments()
	source := stringParam(params, "source", "")
	chunkSize := intParam(params, "chunk-size", 0)
	if boolParam(params, "refresh", false) {
		s.cache.Invalidate(source)
	}

	snap, err := s.cache.Snapshot(ctx, source)
	if err != nil {
		s.log.Warn().Err(err).Str("source", source).Msg("snapshot_begin failed")
		return mcp.NewToolResultError(err.Error()), nil
	}

	var opts []transfer.Option
	if chunkSize > 0 {
		opts = append(opts, transfer.WithChunkSize(chunkSize))
	}
	p, err := s.registry.Start(snap, opts...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, more, err := p.NextChunk()
	if err != nil {
		s.log.Warn().Err(err).Str("source", source).Msg("snapshot_begin failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Debug().
		Str("source", source).
		Int("bytes", len(data)).
		Bool("more", more).
		Msg("snapshot_begin")
	return chunkResult(data, more, p.Handle()), nil
}

func (s *Server) handleMore(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h := transfer.Handle(stringParam(request.GetArguments(), "handle", ""))
	if h == "" {
		return mcp.NewToolResultError("handle is required"), nil
	}
	data, more, err := s.registry.Next(ctx, h)
	if err != nil {
		s.log.Warn().Err(err).Str("handle", string(h)).Msg("snapshot_more failed")
		return mcp.NewToolResultError(err.Error()), nil
	}
	s.log.Debug().Str("handle", string(h)).Int("bytes", len(data)).Bool("more", more).Msg("snapshot_more")
	return chunkResult(data, more, h), nil
}

func (s *Server) handleCancel(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h := transfer.Handle(stringParam(request.GetArguments(), "handle", ""))
	if h == "" {
		return mcp.NewToolResultError("handle is required"), nil
	}
	if !s.registry.Has(h) {
		return mcp.NewToolResultError(fmt.Sprintf("%v: %s", transfer.ErrUnknownHandle, h)), nil
	}
	s.registry.Invalidate(h)
	s.log.Info().Str("handle", string(h)).Msg("transfer canceled")
	return mcp.NewToolResultText("canceled: " + string(h) + "\n"), nil
}
