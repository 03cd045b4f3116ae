// Package codec encodes single windows and nodes in the compact,
// flag-driven layout used by the transfer stream.
//
// A node is written as
//
//	[class name: pooled string][flags: u32][fields selected by flags...]
//
// The low 16 bits of the flags word carry the node's state flags; the high
// bits say which optional fields follow. Fields always appear in the order
// of the Flag constants below. Child payloads are never written here: the
// traversal layer schedules them so a transfer can suspend between any two
// nodes.
package codec

import (
	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/strpool"
	"github.com/mj1618/uitransfer/internal/wire"
)

// Flag bits in the high half of the node flags word.
const (
	FlagHasID uint32 = 1 << (16 + iota)
	FlagHasLargeCoords
	FlagHasScroll
	FlagHasMatrix
	FlagHasElevation
	FlagHasAlpha
	FlagHasContentDescription
	FlagHasText
	FlagHasComplexText
	FlagHasExtras
	FlagHasChildren

	flagKnown = FlagHasID | FlagHasLargeCoords | FlagHasScroll | FlagHasMatrix |
		FlagHasElevation | FlagHasAlpha | FlagHasContentDescription | FlagHasText |
		FlagHasComplexText | FlagHasExtras | FlagHasChildren
)

// coordMask is the largest value a packed coordinate may take.
const coordMask = 0x7FFF

// maxChildren bounds the child count accepted from the wire.
const maxChildren = 1 << 24

// Flags computes the flags word for n. It is derived fresh on every encode.
func Flags(n *model.Node) uint32 {
	flags := uint32(n.State & model.StateMask)
	if n.ID != model.NoID {
		flags |= FlagHasID
	}
	if !fitsPacked(n.X) || !fitsPacked(n.Y) || !fitsPacked(n.Width) || !fitsPacked(n.Height) {
		flags |= FlagHasLargeCoords
	}
	if n.ScrollX != 0 || n.ScrollY != 0 {
		flags |= FlagHasScroll
	}
	if len(n.Matrix) == 9 {
		flags |= FlagHasMatrix
	}
	if n.Elevation != 0 {
		flags |= FlagHasElevation
	}
	if n.Alpha != 1 {
		flags |= FlagHasAlpha
	}
	if n.ContentDescription != "" {
		flags |= FlagHasContentDescription
	}
	if n.Text != nil {
		flags |= FlagHasText
		if !n.Text.IsSimple() {
			flags |= FlagHasComplexText
		}
	}
	if len(n.Extras) > 0 {
		flags |= FlagHasExtras
	}
	if len(n.Children) > 0 {
		flags |= FlagHasChildren
	}
	return flags
}

func fitsPacked(v int32) bool {
	return v&coordMask == v
}

// optional maps the model's empty-means-absent strings onto pool nulls.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// EncodeNode writes n's own fields and returns the child count it declared.
func EncodeNode(enc *wire.Encoder, pool *strpool.Writer, n *model.Node) int {
	pool.WriteString(optional(n.ClassName))
	flags := Flags(n)
	enc.Uint32(flags)

	if flags&FlagHasID != 0 {
		enc.Int32(n.ID)
		if n.ID != model.NoID {
			entry := optional(n.IDEntry)
			pool.WriteString(entry)
			if entry != nil {
				pool.WriteString(optional(n.IDType))
				pool.WriteString(optional(n.IDPackage))
			}
		}
	}

	if flags&FlagHasLargeCoords != 0 {
		enc.Int32(n.X)
		enc.Int32(n.Y)
		enc.Int32(n.Width)
		enc.Int32(n.Height)
	} else {
		enc.Uint32(uint32(n.Y)<<16 | uint32(n.X))
		enc.Uint32(uint32(n.Height)<<16 | uint32(n.Width))
	}

	if flags&FlagHasScroll != 0 {
		enc.Int32(n.ScrollX)
		enc.Int32(n.ScrollY)
	}
	if flags&FlagHasMatrix != 0 {
		for _, v := range n.Matrix {
			enc.Float32(v)
		}
	}
	if flags&FlagHasElevation != 0 {
		enc.Float32(n.Elevation)
	}
	if flags&FlagHasAlpha != 0 {
		enc.Float32(n.Alpha)
	}
	if flags&FlagHasContentDescription != 0 {
		enc.Text(n.ContentDescription)
	}
	if flags&FlagHasText != 0 {
		encodeText(enc, n.Text, flags&FlagHasComplexText == 0)
	}
	if flags&FlagHasExtras != 0 {
		enc.Blob(n.Extras)
	}
	if flags&FlagHasChildren != 0 {
		enc.Int32(int32(len(n.Children)))
		return len(n.Children)
	}
	return 0
}

func encodeText(enc *wire.Encoder, t *model.Text, simple bool) {
	enc.Text(t.Text)
	enc.Float32(t.Size)
	enc.Int32(t.Style)
	enc.Int32(t.Color)
	if simple {
		return
	}
	enc.Int32(t.BackgroundColor)
	enc.Int32(t.SelectionStart)
	enc.Int32(t.SelectionEnd)
	enc.Int32s(t.LineCharOffsets)
	enc.Int32s(t.LineBaselines)
	enc.Text(t.Hint)
}

// DecodeNode reads one node written by EncodeNode. The returned node has a
// child slice of the declared length with nil entries for the caller to fill.
func DecodeNode(dec *wire.Decoder, pool *strpool.Reader) (*model.Node, int, error) {
	n := model.NewNode()

	className, err := pool.ReadString()
	if err != nil {
		return nil, 0, err
	}
	n.ClassName = deref(className)

	flags := dec.Uint32()
	if err := dec.Err(); err != nil {
		return nil, 0, err
	}
	if extra := flags &^ (flagKnown | uint32(model.StateMask)); extra != 0 {
		dec.Fail("unknown node flags %#x", extra)
		return nil, 0, dec.Err()
	}
	n.State = model.StateFlags(flags) & model.StateMask

	if flags&FlagHasID != 0 {
		n.ID = dec.Int32()
		if err := dec.Err(); err != nil {
			return nil, 0, err
		}
		if n.ID != model.NoID {
			entry, err := pool.ReadString()
			if err != nil {
				return nil, 0, err
			}
			if entry != nil {
				n.IDEntry = *entry
				typ, err := pool.ReadString()
				if err != nil {
					return nil, 0, err
				}
				pkg, err := pool.ReadString()
				if err != nil {
					return nil, 0, err
				}
				n.IDType, n.IDPackage = deref(typ), deref(pkg)
			}
		}
	}

	if flags&FlagHasLargeCoords != 0 {
		n.X = dec.Int32()
		n.Y = dec.Int32()
		n.Width = dec.Int32()
		n.Height = dec.Int32()
	} else {
		pos := dec.Uint32()
		size := dec.Uint32()
		n.X, n.Y = int32(pos&0xFFFF), int32(pos>>16)
		n.Width, n.Height = int32(size&0xFFFF), int32(size>>16)
	}

	if flags&FlagHasScroll != 0 {
		n.ScrollX = dec.Int32()
		n.ScrollY = dec.Int32()
	}
	if flags&FlagHasMatrix != 0 {
		n.Matrix = make([]float32, 9)
		for i := range n.Matrix {
			n.Matrix[i] = dec.Float32()
		}
	}
	if flags&FlagHasElevation != 0 {
		n.Elevation = dec.Float32()
	}
	if flags&FlagHasAlpha != 0 {
		n.Alpha = dec.Float32()
	}
	if flags&FlagHasContentDescription != 0 {
		n.ContentDescription = dec.Text()
	}
	if flags&FlagHasText != 0 {
		n.Text = decodeText(dec, flags&FlagHasComplexText == 0)
	} else if flags&FlagHasComplexText != 0 {
		dec.Fail("complex text flag without text")
	}
	if flags&FlagHasExtras != 0 {
		n.Extras = dec.Blob()
	}

	childCount := 0
	if flags&FlagHasChildren != 0 {
		c := dec.Int32()
		if dec.Err() == nil && (c <= 0 || c > maxChildren) {
			dec.Fail("invalid child count %d", c)
		}
		childCount = int(c)
	}

	if err := dec.Err(); err != nil {
		return nil, 0, err
	}
	if childCount > 0 {
		n.Children = make([]*model.Node, childCount)
	}
	return n, childCount, nil
}

func decodeText(dec *wire.Decoder, simple bool) *model.Text {
	text := dec.Text()
	t := model.NewText(text, dec.Float32())
	t.Style = dec.Int32()
	t.Color = dec.Int32()
	if simple {
		return t
	}
	t.BackgroundColor = dec.Int32()
	t.SelectionStart = dec.Int32()
	t.SelectionEnd = dec.Int32()
	t.LineCharOffsets = dec.Int32s()
	t.LineBaselines = dec.Int32s()
	t.Hint = dec.Text()
	return t
}

// EncodeWindow writes a window header; the root node follows separately.
func EncodeWindow(enc *wire.Encoder, w *model.Window) {
	enc.Int32(w.X)
	enc.Int32(w.Y)
	enc.Int32(w.Width)
	enc.Int32(w.Height)
	enc.Text(w.Title)
	enc.Int32(w.DisplayID)
}

// DecodeWindow reads a window header. Root is left nil.
func DecodeWindow(dec *wire.Decoder) (*model.Window, error) {
	w := &model.Window{}
	w.X = dec.Int32()
	w.Y = dec.Int32()
	w.Width = dec.Int32()
	w.Height = dec.Int32()
	w.Title = dec.Text()
	w.DisplayID = dec.Int32()
	if err := dec.Err(); err != nil {
		return nil, err
	}
	return w, nil
}
