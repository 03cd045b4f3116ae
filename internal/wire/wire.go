// Package wire holds the big-endian primitives shared by the string pool,
// the node codec and the transfer controller.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrCorrupt marks any stream that cannot be decoded: truncation, bad
// lengths, sentinel mismatches. It is always fatal to a transfer.
var ErrCorrupt = errors.New("wire: corrupt stream")

// absentLen is the length prefix written for absent text and arrays.
const absentLen int32 = -1

// Encoder appends primitives to a growable buffer.
type Encoder struct {
	buf []byte
}

// NewEncoder returns an encoder with capHint bytes preallocated.
func NewEncoder(capHint int) *Encoder {
	if capHint < 0 {
		capHint = 0
	}
	return &Encoder{buf: make([]byte, 0, capHint)}
}

// Len returns the number of bytes written so far.
func (e *Encoder) Len() int { return len(e.buf) }

// Bytes returns the encoded buffer. The encoder must not be reused after.
func (e *Encoder) Bytes() []byte { return e.buf }

// Uint32 appends v in big-endian order.
func (e *Encoder) Uint32(v uint32) {
	e.buf = binary.BigEndian.AppendUint32(e.buf, v)
}

// Int32 appends v as its two's complement bits.
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Float32 appends the IEEE 754 bits of v.
func (e *Encoder) Float32(v float32) {
	e.Uint32(math.Float32bits(v))
}

// Reserve32 writes a zero placeholder and returns its offset for PutInt32At.
func (e *Encoder) Reserve32() int {
	pos := len(e.buf)
	e.Uint32(0)
	return pos
}

// PutInt32At overwrites a previously reserved slot.
func (e *Encoder) PutInt32At(pos int, v int32) {
	binary.BigEndian.PutUint32(e.buf[pos:pos+4], uint32(v))
}

// String writes a length-prefixed byte run. It is never absent.
func (e *Encoder) String(s string) {
	e.Int32(int32(len(s)))
	e.buf = append(e.buf, s...)
}

// Text writes optional text; the empty string is encoded as absent.
func (e *Encoder) Text(s string) {
	if s == "" {
		e.Int32(absentLen)
		return
	}
	e.String(s)
}

// Blob writes a length-prefixed byte slice; nil and empty are absent.
func (e *Encoder) Blob(b []byte) {
	if len(b) == 0 {
		e.Int32(absentLen)
		return
	}
	e.Int32(int32(len(b)))
	e.buf = append(e.buf, b...)
}

// Int32s writes a length-prefixed int array; nil and empty are absent.
func (e *Encoder) Int32s(v []int32) {
	if len(v) == 0 {
		e.Int32(absentLen)
		return
	}
	e.Int32(int32(len(v)))
	for _, x := range v {
		e.Int32(x)
	}
}

// Decoder reads primitives from a byte slice. The first failure is sticky:
// later reads return zero values and Err reports the original cause.
type Decoder struct {
	buf []byte
	off int
	err error
}

// NewDecoder reads from b without copying it.
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Err returns the first decode failure, wrapping ErrCorrupt.
func (d *Decoder) Err() error { return d.err }

// Remaining reports how many unread bytes are left.
func (d *Decoder) Remaining() int { return len(d.buf) - d.off }

// Offset reports the read position, used in error messages.
func (d *Decoder) Offset() int { return d.off }

// Fail records a corruption error unless one is already set.
func (d *Decoder) Fail(format string, args ...any) {
	if d.err != nil {
		return
	}
	d.err = fmt.Errorf("%w: %s at offset %d", ErrCorrupt, fmt.Sprintf(format, args...), d.off)
}

func (d *Decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > d.Remaining() {
		d.Fail("need %d bytes, have %d", n, d.Remaining())
		return nil
	}
	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

// Uint32 reads a big-endian word. It returns 0 once the decoder has failed.
func (d *Decoder) Uint32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// Int32 reads a signed big-endian word.
func (d *Decoder) Int32() int32 {
	return int32(d.Uint32())
}

// Float32 reads an IEEE 754 single.
func (d *Decoder) Float32() float32 {
	return math.Float32frombits(d.Uint32())
}

// length reads a length prefix. ok is false for the absent marker.
func (d *Decoder) length() (n int, ok bool) {
	v := d.Int32()
	if d.err != nil {
		return 0, false
	}
	if v == absentLen {
		return 0, false
	}
	if v < 0 {
		d.Fail("negative length %d", v)
		return 0, false
	}
	return int(v), true
}

// String reads a length-prefixed byte run written by Encoder.String.
func (d *Decoder) String() string {
	n, ok := d.length()
	if !ok {
		if d.err == nil {
			d.Fail("absent marker where a string is required")
		}
		return ""
	}
	return string(d.take(n))
}

// Text reads optional text; absent decodes to "".
func (d *Decoder) Text() string {
	n, ok := d.length()
	if !ok {
		return ""
	}
	return string(d.take(n))
}

// Blob reads an optional byte slice; absent decodes to nil.
func (d *Decoder) Blob() []byte {
	n, ok := d.length()
	if !ok {
		return nil
	}
	b := d.take(n)
	if b == nil {
		return nil
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}

// Int32s reads an optional int array; absent decodes to nil.
func (d *Decoder) Int32s() []int32 {
	n, ok := d.length()
	if !ok {
		return nil
	}
	if n*4 > d.Remaining() {
		d.Fail("int array of %d entries exceeds buffer", n)
		return nil
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = d.Int32()
	}
	return out
}
