package mcpbridge

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/transfer"
)

// ErrToolFailed reports a tool call the server answered with an error result.
var ErrToolFailed = errors.New("mcpbridge: tool call failed")

// Client pulls snapshots from a Server. It implements transfer.Transport.
type Client struct {
	c *client.Client
}

// Dial connects to a server over streamable HTTP, e.g. http://host:8080/mcp.
func Dial(ctx context.Context, url, version string) (*Client, error) {
	c, err := client.NewStreamableHttpClient(url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", url, err)
	}
	return start(ctx, c, version)
}

// NewInProcessClient connects directly to s without a network transport.
func NewInProcessClient(ctx context.Context, s *Server, version string) (*Client, error) {
	c, err := client.NewInProcessClient(s.MCP())
	if err != nil {
		return nil, err
	}
	return start(ctx, c, version)
}

func start(ctx context.Context, c *client.Client, version string) (*Client, error) {
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("start mcp client: %w", err)
	}
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "uitransfer", Version: version}
	if _, err := c.Initialize(ctx, req); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize mcp session: %w", err)
	}
	return &Client{c: c}, nil
}

// Close ends the session.
func (c *Client) Close() error {
	return c.c.Close()
}

// Begin starts a transfer of the named snapshot and returns its first chunk.
func (c *Client) Begin(ctx context.Context, source string, chunkSize int, refresh bool) ([]byte, error) {
	args := map[string]any{"source": source}
	if chunkSize > 0 {
		args["chunk-size"] = chunkSize
	}
	if refresh {
		args["refresh"] = true
	}
	res, err := c.call(ctx, ToolBegin, args)
	if err != nil {
		return nil, err
	}
	return decodeChunk(res)
}

// RequestMore fetches the chunk behind h.
func (c *Client) RequestMore(ctx context.Context, h transfer.Handle) ([]byte, error) {
	res, err := c.call(ctx, ToolMore, map[string]any{"handle": string(h)})
	if err != nil {
		return nil, err
	}
	return decodeChunk(res)
}

// Cancel abandons the suspended transfer behind h.
func (c *Client) Cancel(ctx context.Context, h transfer.Handle) error {
	_, err := c.call(ctx, ToolCancel, map[string]any{"handle": string(h)})
	return err
}

// Fetch transfers the named snapshot end to end.
func (c *Client) Fetch(ctx context.Context, source string, chunkSize int, opts ...transfer.Option) (*model.Snapshot, error) {
	first, err := c.Begin(ctx, source, chunkSize, false)
	if err != nil {
		return nil, err
	}
	return transfer.Read(ctx, first, c, opts...)
}

func (c *Client) call(ctx context.Context, tool string, args map[string]any) (string, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	req.Params.Arguments = args
	res, err := c.c.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", tool, err)
	}
	text := resultText(res)
	if res.IsError {
		return "", fmt.Errorf("%w: %s: %s", ErrToolFailed, tool, text)
	}
	return text, nil
}

func resultText(res *mcp.CallToolResult) string {
	for _, content := range res.Content {
		switch tc := content.(type) {
		case mcp.TextContent:
			return tc.Text
		case *mcp.TextContent:
			return tc.Text
		}
	}
	return ""
}

func decodeChunk(text string) ([]byte, error) {
	var res ChunkResult
	if err := yaml.Unmarshal([]byte(text), &res); err != nil {
		return nil, fmt.Errorf("decode chunk reply: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(res.Chunk)
	if err != nil {
		return nil, fmt.Errorf("decode chunk reply: %w", err)
	}
	if len(data) != res.Bytes {
		return nil, fmt.Errorf("decode chunk reply: %d bytes, header says %d", len(data), res.Bytes)
	}
	return data, nil
}
