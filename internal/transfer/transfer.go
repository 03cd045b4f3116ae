// Package transfer moves a snapshot across a size-bounded, call-oriented
// channel in resumable chunks.
//
// Stream layout:
//
//	first chunk:  windowCount:i32 [pool framing] units...
//	later chunks: [pool framing] units...
//	window unit:  0x11111111 x y w h title display  0x22222222 root-node
//	node unit:    0x22222222 node
//	suspension:   0 handle:string   (in place of the next unit's sentinel)
//
// A window count of zero ends the stream. Every chunk carries its own
// string pool (see package strpool), so chunks decode independently of
// each other's string tables.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/mj1618/uitransfer/internal/metrics"
	"github.com/mj1618/uitransfer/internal/wire"
)

const (
	windowToken   int32 = 0x11111111
	nodeToken     int32 = 0x22222222
	chunkBoundary int32 = 0
)

const (
	// DefaultChunkSize is the body size after which a chunk suspends.
	DefaultChunkSize = 256 * 1024
	// DefaultReadyTimeout bounds the wait for async subtrees.
	DefaultReadyTimeout = 5 * time.Second
)

var (
	// ErrCorrupt reports a stream that cannot be decoded. Alias of wire.ErrCorrupt.
	ErrCorrupt = wire.ErrCorrupt
	// ErrTransport reports a failed continuation call.
	ErrTransport = errors.New("transfer: transport failure")
	// ErrUnknownHandle is returned for handles with no live producer.
	ErrUnknownHandle = errors.New("transfer: unknown continuation handle")
)

// Handle is the opaque continuation reference embedded in a suspended chunk.
type Handle string

// Transport fetches the chunk that follows a suspension.
type Transport interface {
	RequestMore(ctx context.Context, h Handle) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, h Handle) ([]byte, error)

func (f TransportFunc) RequestMore(ctx context.Context, h Handle) ([]byte, error) {
	return f(ctx, h)
}

// Option configures producers, registries and consumers.
type Option func(*options)

type options struct {
	chunkSize    int
	readyTimeout time.Duration
	log          zerolog.Logger
	metrics      *metrics.Transfer
}

func buildOptions(opts []Option) options {
	o := options{
		chunkSize:    DefaultChunkSize,
		readyTimeout: DefaultReadyTimeout,
		log:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithChunkSize sets the body size after which a chunk suspends. Values
// below 1 are raised to 1, which yields one node per chunk.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.chunkSize = n
	}
}

// WithReadyTimeout bounds the wait for uncommitted async subtrees.
func WithReadyTimeout(d time.Duration) Option {
	return func(o *options) { o.readyTimeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithMetrics(m *metrics.Transfer) Option {
	return func(o *options) { o.metrics = m }
}
