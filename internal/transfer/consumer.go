package transfer

import (
	"context"
	"fmt"

	"github.com/mj1618/uitransfer/internal/codec"
	"github.com/mj1618/uitransfer/internal/metrics"
	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/strpool"
	"github.com/mj1618/uitransfer/internal/wire"
)

// readEntry mirrors stackEntry on the reading side: the node whose
// children array is being filled and the next slot to fill.
type readEntry struct {
	node *model.Node
	next int
}

// consumer holds the reading state of one transfer.
type consumer struct {
	transport Transport
	opts      options
	dec       *wire.Decoder
	pool      *strpool.Reader
	chunks    int
	nodes     int
}

// Read decodes a snapshot starting from its first chunk, calling t for every
// continuation. Any error aborts the transfer; no partial snapshot is
// returned. Corrupt input matches ErrCorrupt, failed continuation calls
// match ErrTransport.
func Read(ctx context.Context, first []byte, t Transport, opts ...Option) (*model.Snapshot, error) {
	c := &consumer{transport: t, opts: buildOptions(opts)}
	snap, err := c.read(ctx, first)
	if err != nil {
		c.opts.log.Error().Err(err).Int("chunk", c.chunks).Msg("snapshot transfer aborted")
		return nil, err
	}
	c.opts.metrics.AddNodes(metrics.SideConsumer, c.nodes)
	return snap, nil
}

func (c *consumer) read(ctx context.Context, first []byte) (*model.Snapshot, error) {
	c.load(first)
	count := c.dec.Int32()
	if err := c.dec.Err(); err != nil {
		return nil, fmt.Errorf("window count: %w", err)
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative window count %d", ErrCorrupt, count)
	}

	snap := model.NewSnapshot()
	if count == 0 {
		if c.dec.Remaining() != 0 {
			return nil, fmt.Errorf("%w: %d bytes after empty window count", ErrCorrupt, c.dec.Remaining())
		}
		return snap, nil
	}

	var err error
	if c.pool, err = strpool.NewReader(c.dec); err != nil {
		return nil, err
	}
	for i := 0; i < int(count); i++ {
		w, err := c.readWindow(ctx)
		if err != nil {
			return nil, fmt.Errorf("window %d: %w", i, err)
		}
		snap.Windows = append(snap.Windows, w)
	}

	if err := c.pool.Close(); err != nil {
		return nil, err
	}
	if c.dec.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, c.dec.Remaining())
	}
	return snap, nil
}

func (c *consumer) load(chunk []byte) {
	c.dec = wire.NewDecoder(chunk)
	c.chunks++
	c.opts.metrics.ObserveChunk(metrics.SideConsumer, len(chunk))
}

func (c *consumer) readWindow(ctx context.Context) (*model.Window, error) {
	if err := c.expect(ctx, windowToken); err != nil {
		return nil, err
	}
	w, err := codec.DecodeWindow(c.dec)
	if err != nil {
		return nil, err
	}
	if err := c.expect(ctx, nodeToken); err != nil {
		return nil, err
	}
	root, n, err := codec.DecodeNode(c.dec, c.pool)
	if err != nil {
		return nil, err
	}
	c.nodes++
	w.Root = root
	if n > 0 {
		if err := c.readChildren(ctx, root); err != nil {
			return nil, err
		}
	}
	return w, nil
}

// readChildren fills root's subtree in pre-order, mirroring the writer's stack.
func (c *consumer) readChildren(ctx context.Context, root *model.Node) error {
	stack := []readEntry{{node: root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.node.Children) {
			stack = stack[:len(stack)-1]
			continue
		}
		if err := c.expect(ctx, nodeToken); err != nil {
			return err
		}
		child, n, err := codec.DecodeNode(c.dec, c.pool)
		if err != nil {
			return err
		}
		c.nodes++
		top.node.Children[top.next] = child
		top.next++
		if n > 0 {
			stack = append(stack, readEntry{node: child})
		}
	}
	return nil
}

// expect reads the next unit sentinel, following chunk boundaries.
func (c *consumer) expect(ctx context.Context, token int32) error {
	for {
		marker := c.dec.Int32()
		if err := c.dec.Err(); err != nil {
			return err
		}
		if marker == chunkBoundary {
			if err := c.next(ctx); err != nil {
				return err
			}
			continue
		}
		if marker != token {
			return fmt.Errorf("%w: sentinel %#x, want %#x", ErrCorrupt, uint32(marker), uint32(token))
		}
		return nil
	}
}

// next closes the current chunk and fetches the one behind its handle.
func (c *consumer) next(ctx context.Context) error {
	h := Handle(c.dec.String())
	if err := c.dec.Err(); err != nil {
		return fmt.Errorf("continuation handle: %w", err)
	}
	if h == "" {
		return fmt.Errorf("%w: empty continuation handle", ErrCorrupt)
	}
	if err := c.pool.Close(); err != nil {
		return err
	}
	if c.dec.Remaining() != 0 {
		return fmt.Errorf("%w: %d bytes after continuation handle", ErrCorrupt, c.dec.Remaining())
	}
	if c.transport == nil {
		return fmt.Errorf("%w: stream suspended but no transport was given", ErrTransport)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	data, err := c.transport.RequestMore(ctx, h)
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %w", ErrTransport, c.chunks+1, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: empty chunk for handle %s", ErrCorrupt, h)
	}
	c.load(data)
	c.pool, err = strpool.NewReader(c.dec)
	return err
}
