package transfer

import (
	"context"
	"fmt"
	"sync"

	"github.com/mj1618/uitransfer/internal/model"
)

// Registry tracks producers that suspended mid-transfer, keyed by handle,
// and answers continuation requests for them. It implements Transport for
// in-process consumers.
type Registry struct {
	mu        sync.Mutex
	producers map[Handle]*Producer
	opts      []Option
}

// NewRegistry returns a registry whose producers use opts.
func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		producers: make(map[Handle]*Producer),
		opts:      opts,
	}
}

// Begin starts a transfer of snap and returns its first chunk. The producer
// is registered only if the chunk suspends.
func (r *Registry) Begin(snap *model.Snapshot, opts ...Option) ([]byte, error) {
	p, err := r.Start(snap, opts...)
	if err != nil {
		return nil, err
	}
	data, _, err := p.NextChunk()
	return data, err
}

// Start creates a producer bound to this registry without writing anything.
func (r *Registry) Start(snap *model.Snapshot, opts ...Option) (*Producer, error) {
	if snap == nil {
		return nil, fmt.Errorf("transfer: nil snapshot")
	}
	all := append(append([]Option(nil), r.opts...), opts...)
	p := NewProducer(snap, all...)
	p.onHandle = r.register
	return p, nil
}

func (r *Registry) register(h Handle, p *Producer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.producers[h] = p
}

func (r *Registry) lookup(h Handle) (*Producer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.producers[h]
	return p, ok
}

func (r *Registry) drop(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.producers, h)
}

// RequestMore produces the chunk that follows a suspension. A producer whose
// snapshot was invalidated answers with an empty chunk and is forgotten.
func (r *Registry) RequestMore(ctx context.Context, h Handle) ([]byte, error) {
	data, _, err := r.Next(ctx, h)
	return data, err
}

// Next is RequestMore that also reports whether the transfer suspended again.
func (r *Registry) Next(_ context.Context, h Handle) ([]byte, bool, error) {
	p, ok := r.lookup(h)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", ErrUnknownHandle, h)
	}
	data, more, err := p.NextChunk()
	if !more {
		r.drop(h)
	}
	return data, more, err
}

// Has reports whether h names a suspended producer.
func (r *Registry) Has(h Handle) bool {
	_, ok := r.lookup(h)
	return ok
}

// Invalidate clears the snapshot reference of the producer behind h.
func (r *Registry) Invalidate(h Handle) {
	if p, ok := r.lookup(h); ok {
		p.Invalidate()
	}
}

// Discard invalidates and forgets every producer of snap.
func (r *Registry) Discard(snap *model.Snapshot) {
	// Producers take r.mu while holding their own lock, so never nest the
	// other way round.
	r.mu.Lock()
	live := make(map[Handle]*Producer, len(r.producers))
	for h, p := range r.producers {
		live[h] = p
	}
	r.mu.Unlock()

	for h, p := range live {
		if p.owns(snap) {
			p.Invalidate()
			r.drop(h)
		}
	}
}

// Len returns the number of suspended producers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.producers)
}
