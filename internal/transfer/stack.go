package transfer

import (
	"github.com/mj1618/uitransfer/internal/codec"
	"github.com/mj1618/uitransfer/internal/model"
	"github.com/mj1618/uitransfer/internal/strpool"
	"github.com/mj1618/uitransfer/internal/wire"
)

// stackEntry is the traversal cursor of one node whose children are being
// written.
type stackEntry struct {
	node  *model.Node
	count int
	next  int
}

type unit int

const (
	unitWindow unit = iota
	unitNode
	unitPop
)

// stack walks the windows' trees in pre-order without recursion. Entries
// are indexed by depth and reused across chunks; depth is -1 between
// windows.
type stack struct {
	windows []*model.Window
	window  int
	entries []stackEntry
	depth   int
}

func newStack(windows []*model.Window) *stack {
	return &stack{windows: windows, depth: -1}
}

func (s *stack) push(n *model.Node, depth int) {
	if depth == len(s.entries) {
		s.entries = append(s.entries, stackEntry{})
	}
	s.entries[depth] = stackEntry{node: n, count: len(n.Children)}
	s.depth = depth
}

// done reports whether every window has been written.
func (s *stack) done() bool {
	return s.window >= len(s.windows)
}

// pending reports whether the next step writes bytes rather than popping.
func (s *stack) pending() bool {
	if s.done() {
		return false
	}
	if s.depth < 0 {
		return true
	}
	e := &s.entries[s.depth]
	return e.next < e.count
}

// step writes the next window or node, or pops one exhausted level.
func (s *stack) step(enc *wire.Encoder, pool *strpool.Writer) unit {
	if s.depth < 0 {
		w := s.windows[s.window]
		enc.Int32(windowToken)
		codec.EncodeWindow(enc, w)
		enc.Int32(nodeToken)
		if codec.EncodeNode(enc, pool, w.Root) > 0 {
			s.push(w.Root, 0)
		} else {
			s.window++
		}
		return unitWindow
	}

	e := &s.entries[s.depth]
	if e.next < e.count {
		child := e.node.Children[e.next]
		e.next++
		enc.Int32(nodeToken)
		if codec.EncodeNode(enc, pool, child) > 0 {
			s.push(child, s.depth+1)
		}
		return unitNode
	}

	e.node = nil
	s.depth--
	if s.depth < 0 {
		s.window++
	}
	return unitPop
}
