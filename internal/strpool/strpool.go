// Package strpool interns strings inside one chunk of a transfer.
//
// The pool has no self-describing index table: the writer emits a
// reference per WriteString call and inlines each distinct string the first
// time it appears, and the reader rebuilds the table in arrival order. Both
// sides must therefore read and write pooled fields in exactly the same
// order, once per field.
//
// Framing inside the chunk:
//
//	count:i32   number of distinct strings in this pool (backpatched on Close)
//	ref:i32     per WriteString: -1 null, >=0 repeat of index, -2 new string
//	            followed by a length-prefixed byte run
package strpool

import (
	"fmt"

	"github.com/mj1618/uitransfer/internal/wire"
)

const (
	refNull int32 = -1
	refNew  int32 = -2
)

// Writer assigns sequential indexes to strings on first use.
type Writer struct {
	enc      *wire.Encoder
	countPos int
	index    map[string]int32
	next     int32
}

// NewWriter opens a pool framed at the encoder's current position.
func NewWriter(enc *wire.Encoder) *Writer {
	return &Writer{
		enc:      enc,
		countPos: enc.Reserve32(),
		index:    make(map[string]int32),
	}
}

// WriteString emits a reference to s, inlining s if this pool has not seen it.
func (w *Writer) WriteString(s *string) {
	if s == nil {
		w.enc.Int32(refNull)
		return
	}
	if idx, ok := w.index[*s]; ok {
		w.enc.Int32(idx)
		return
	}
	w.index[*s] = w.next
	w.next++
	w.enc.Int32(refNew)
	w.enc.String(*s)
}

// Unique returns the number of distinct strings written so far.
func (w *Writer) Unique() int { return int(w.next) }

// Close backpatches the distinct-string count. The pool must not be used after.
func (w *Writer) Close() {
	w.enc.PutInt32At(w.countPos, w.next)
}

// Reader resolves references produced by a Writer.
type Reader struct {
	dec      *wire.Decoder
	declared int
	strs     []string
}

// NewReader opens the pool framed at the decoder's current position.
func NewReader(dec *wire.Decoder) (*Reader, error) {
	n := dec.Int32()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("string pool header: %w", err)
	}
	// Every inlined string costs at least a ref and a length prefix.
	if n < 0 || int(n) > dec.Remaining()/8 {
		dec.Fail("string pool declares %d strings", n)
		return nil, dec.Err()
	}
	return &Reader{
		dec:      dec,
		declared: int(n),
		strs:     make([]string, 0, n),
	}, nil
}

// ReadString returns the next pooled string; nil means the writer wrote null.
func (r *Reader) ReadString() (*string, error) {
	ref := r.dec.Int32()
	if err := r.dec.Err(); err != nil {
		return nil, err
	}
	switch {
	case ref == refNull:
		return nil, nil
	case ref == refNew:
		if len(r.strs) >= r.declared {
			r.dec.Fail("string pool overflow: more than %d strings", r.declared)
			return nil, r.dec.Err()
		}
		s := r.dec.String()
		if err := r.dec.Err(); err != nil {
			return nil, err
		}
		r.strs = append(r.strs, s)
		return &s, nil
	case ref >= 0 && int(ref) < len(r.strs):
		s := r.strs[ref]
		return &s, nil
	default:
		r.dec.Fail("string pool reference %d out of range (%d known)", ref, len(r.strs))
		return nil, r.dec.Err()
	}
}

// Len returns the number of distinct strings received so far.
func (r *Reader) Len() int { return len(r.strs) }

// Close verifies that every declared string arrived.
func (r *Reader) Close() error {
	if len(r.strs) != r.declared {
		r.dec.Fail("string pool declared %d strings, received %d", r.declared, len(r.strs))
		return r.dec.Err()
	}
	return nil
}
