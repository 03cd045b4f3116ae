package model

// NoID is the identifier of a node that has no resource id. A node with
// NoID never carries id name strings.
const NoID int32 = 0

// ColorUndefined marks a text color that was never set.
const ColorUndefined int32 = 1

// StateFlags is the bitmask of boolean view states. It occupies the low 16
// bits of the encoded flags word.
type StateFlags uint32

const (
	StateEnabled StateFlags = 1 << iota
	StateVisible
	StateFocusable
	StateFocused
	StateSelected
	StateActivated
	StateCheckable
	StateChecked
	StateClickable
	StateLongClickable
	StateContextClickable
	StateOpaque
	StateAccessibilityFocused

	// StateMask covers every bit a node may carry on the wire.
	StateMask StateFlags = 0xFFFF
)

// Has reports whether every bit in f is set.
func (s StateFlags) Has(f StateFlags) bool { return s&f == f }

// Node is one visual element in a snapshot tree. Empty strings and nil
// slices mean "absent".
type Node struct {
	ID        int32  `yaml:"id,omitempty"         json:"id,omitempty"`
	IDPackage string `yaml:"id_package,omitempty" json:"id_package,omitempty"`
	IDType    string `yaml:"id_type,omitempty"    json:"id_type,omitempty"`
	IDEntry   string `yaml:"id_entry,omitempty"   json:"id_entry,omitempty"`

	X       int32 `yaml:"x"                  json:"x"`
	Y       int32 `yaml:"y"                  json:"y"`
	ScrollX int32 `yaml:"scroll_x,omitempty" json:"scroll_x,omitempty"`
	ScrollY int32 `yaml:"scroll_y,omitempty" json:"scroll_y,omitempty"`
	Width   int32 `yaml:"w"                  json:"w"`
	Height  int32 `yaml:"h"                  json:"h"`

	// Matrix is either nil (identity) or exactly 9 values, row major.
	Matrix    []float32 `yaml:"matrix,omitempty"    json:"matrix,omitempty"`
	Elevation float32   `yaml:"elevation,omitempty" json:"elevation,omitempty"`
	Alpha     float32   `yaml:"alpha"               json:"alpha"`

	State              StateFlags `yaml:"state,omitempty"   json:"state,omitempty"`
	ClassName          string     `yaml:"class,omitempty"   json:"class,omitempty"`
	ContentDescription string     `yaml:"desc,omitempty"    json:"desc,omitempty"`
	Text               *Text      `yaml:"text,omitempty"    json:"text,omitempty"`
	Extras             []byte     `yaml:"extras,omitempty"  json:"extras,omitempty"`
	Children           []*Node    `yaml:"children,omitempty" json:"children,omitempty"`
}

// NewNode returns a node with its documented defaults.
func NewNode() *Node {
	return &Node{Alpha: 1}
}

// Bounds returns [x, y, width, height].
func (n *Node) Bounds() [4]int {
	return [4]int{int(n.X), int(n.Y), int(n.Width), int(n.Height)}
}

// Text is the text block of a node that displays text.
type Text struct {
	Text            string  `yaml:"text"                   json:"text"`
	Size            float32 `yaml:"size"                   json:"size"`
	Style           int32   `yaml:"style,omitempty"        json:"style,omitempty"`
	Color           int32   `yaml:"color"                  json:"color"`
	BackgroundColor int32   `yaml:"bg_color"               json:"bg_color"`
	SelectionStart  int32   `yaml:"sel_start,omitempty"    json:"sel_start,omitempty"`
	SelectionEnd    int32   `yaml:"sel_end,omitempty"      json:"sel_end,omitempty"`
	LineCharOffsets []int32 `yaml:"line_offsets,omitempty" json:"line_offsets,omitempty"`
	LineBaselines   []int32 `yaml:"line_baselines,omitempty" json:"line_baselines,omitempty"`
	Hint            string  `yaml:"hint,omitempty"         json:"hint,omitempty"`
}

// NewText returns a text block with undefined colors.
func NewText(s string, size float32) *Text {
	return &Text{Text: s, Size: size, Color: ColorUndefined, BackgroundColor: ColorUndefined}
}

// IsSimple reports whether the block fits the short encoding: no background,
// no selection, no per-line layout and no hint.
func (t *Text) IsSimple() bool {
	return t.BackgroundColor == ColorUndefined &&
		t.SelectionStart == 0 && t.SelectionEnd == 0 &&
		len(t.LineCharOffsets) == 0 && len(t.LineBaselines) == 0 &&
		t.Hint == ""
}

// CountNodes returns the number of nodes in the subtree rooted at n.
func CountNodes(n *Node) int {
	if n == nil {
		return 0
	}
	count := 0
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		stack = append(stack, cur.Children...)
	}
	return count
}
