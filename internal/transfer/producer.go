package transfer

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/mj1618/uitransfer/internal/metrics"
	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/strpool"
	"github.com/mj1618/uitransfer/internal/wire"
)

// Stats summarizes what a producer has written so far.
type Stats struct {
	Chunks  int `yaml:"chunks"  json:"chunks"`
	Bytes   int `yaml:"bytes"   json:"bytes"`
	Windows int `yaml:"windows" json:"windows"`
	Nodes   int `yaml:"nodes"   json:"nodes"`
	Strings int `yaml:"strings" json:"strings"`
	// Empty is set when the snapshot timed out waiting for async subtrees.
	Empty bool `yaml:"empty,omitempty" json:"empty,omitempty"`
}

// Producer writes one snapshot as a sequence of chunks. Calls are
// serialized; each chunk runs to its size limit or completion.
type Producer struct {
	mu       sync.Mutex
	snap     *model.Snapshot
	opts     options
	stack    *stack
	handle   Handle
	started  bool
	finished bool
	stats    Stats

	// onHandle runs once when the first suspension mints the handle.
	onHandle func(Handle, *Producer)
}

// NewProducer returns a producer for snap. Nothing is written until NextChunk.
func NewProducer(snap *model.Snapshot, opts ...Option) *Producer {
	return &Producer{snap: snap, opts: buildOptions(opts)}
}

// Handle returns the continuation handle, or "" before the first suspension.
func (p *Producer) Handle() Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handle
}

// Stats returns a copy of the running totals.
func (p *Producer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Finished reports whether the last chunk has been written.
func (p *Producer) Finished() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finished
}

// Invalidate drops the snapshot reference. Later NextChunk calls return no data.
func (p *Producer) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = nil
	p.stack = nil
}

func (p *Producer) owns(snap *model.Snapshot) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap == snap
}

// NextChunk writes the next chunk. more is true when the chunk ends with a
// continuation handle. An invalidated or finished producer returns
// (nil, false, nil).
func (p *Producer) NextChunk() (chunk []byte, more bool, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.snap == nil || p.finished {
		return nil, false, nil
	}

	enc := wire.NewEncoder(p.opts.chunkSize + p.opts.chunkSize/4)
	if !p.started {
		p.started = true
		if done, err := p.begin(enc); done || err != nil {
			p.finished = true
			if err != nil {
				return nil, false, err
			}
			p.record(enc.Len(), 0)
			return enc.Bytes(), false, nil
		}
	}

	pool := strpool.NewWriter(enc)
	bodyStart := enc.Len()
	nodes := 0
	for !p.stack.done() {
		if p.stack.pending() && enc.Len()-bodyStart > p.opts.chunkSize {
			h := p.ensureHandle()
			enc.Int32(chunkBoundary)
			enc.String(string(h))
			pool.Close()
			p.stats.Strings += pool.Unique()
			p.record(enc.Len(), nodes)
			p.opts.log.Debug().
				Str("handle", string(h)).
				Int("chunk", p.stats.Chunks).
				Int("bytes", enc.Len()).
				Int("nodes", nodes).
				Msg("chunk suspended")
			return enc.Bytes(), true, nil
		}
		switch p.stack.step(enc, pool) {
		case unitWindow:
			p.stats.Windows++
			nodes++
		case unitNode:
			nodes++
		}
	}

	pool.Close()
	p.stats.Strings += pool.Unique()
	p.finished = true
	p.stack = nil
	p.record(enc.Len(), nodes)
	p.opts.log.Debug().
		Int("chunks", p.stats.Chunks).
		Int("bytes", p.stats.Bytes).
		Int("nodes", p.stats.Nodes).
		Msg("snapshot transfer complete")
	return enc.Bytes(), false, nil
}

// begin writes the window count. done is true when nothing else follows.
func (p *Producer) begin(enc *wire.Encoder) (done bool, err error) {
	// Async builders may still be writing nodes until the gate opens, so
	// the tree is not touched before WaitReady returns true.
	if !p.snap.WaitReady(p.opts.readyTimeout) {
		p.opts.log.Warn().
			Int("pending", p.snap.Pending()).
			Dur("timeout", p.opts.readyTimeout).
			Msg("async subtrees not committed; sending empty snapshot")
		p.opts.metrics.ReadinessTimeout()
		p.stats.Empty = true
		enc.Int32(0)
		return true, nil
	}
	if err := p.snap.Validate(); err != nil {
		return true, fmt.Errorf("transfer: invalid snapshot: %w", err)
	}
	windows := p.snap.Windows
	enc.Int32(int32(len(windows)))
	if len(windows) == 0 {
		return true, nil
	}
	p.stack = newStack(windows)
	return false, nil
}

func (p *Producer) ensureHandle() Handle {
	if p.handle == "" {
		id := ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
		p.handle = Handle(id.String())
		if p.onHandle != nil {
			p.onHandle(p.handle, p)
		}
	}
	return p.handle
}

func (p *Producer) record(n, nodes int) {
	p.stats.Chunks++
	p.stats.Bytes += n
	p.stats.Nodes += nodes
	p.opts.metrics.ObserveChunk(metrics.SideProducer, n)
	p.opts.metrics.AddNodes(metrics.SideProducer, nodes)
}
