package model

// Builder populates one node while a snapshot is captured.
type Builder interface {
	SetClassName(name string)
	SetID(id int32, pkg, typ, entry string)
	SetDimens(x, y, scrollX, scrollY, width, height int32)
	SetTransformation(m [9]float32)
	SetElevation(e float32)
	SetAlpha(a float32)
	SetState(flags StateFlags)
	SetContentDescription(desc string)
	SetText(t *Text)
	SetExtras(b []byte)
	// SetChildCount sizes the child list; children start with defaults.
	SetChildCount(n int)
	NewChild(index int) Builder
	// AsyncNewChild hands out a child that another goroutine fills in. The
	// snapshot is not ready until Commit is called on it.
	AsyncNewChild(index int) AsyncBuilder
	Node() *Node
}

// AsyncBuilder is a Builder whose subtree completes on Commit.
type AsyncBuilder interface {
	Builder
	Commit()
}

type nodeBuilder struct {
	snap *Snapshot
	node *Node
}

func (b *nodeBuilder) SetClassName(name string) { b.node.ClassName = name }

func (b *nodeBuilder) SetID(id int32, pkg, typ, entry string) {
	b.node.ID = id
	b.node.IDPackage = pkg
	b.node.IDType = typ
	b.node.IDEntry = entry
}

func (b *nodeBuilder) SetDimens(x, y, scrollX, scrollY, width, height int32) {
	b.node.X, b.node.Y = x, y
	b.node.ScrollX, b.node.ScrollY = scrollX, scrollY
	b.node.Width, b.node.Height = width, height
}

func (b *nodeBuilder) SetTransformation(m [9]float32) {
	if m == identity {
		b.node.Matrix = nil
		return
	}
	b.node.Matrix = append([]float32(nil), m[:]...)
}

var identity = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

func (b *nodeBuilder) SetElevation(e float32)            { b.node.Elevation = e }
func (b *nodeBuilder) SetAlpha(a float32)                { b.node.Alpha = a }
func (b *nodeBuilder) SetState(flags StateFlags)         { b.node.State = flags & StateMask }
func (b *nodeBuilder) SetContentDescription(desc string) { b.node.ContentDescription = desc }
func (b *nodeBuilder) SetText(t *Text)                   { b.node.Text = t }
func (b *nodeBuilder) SetExtras(data []byte)             { b.node.Extras = data }
func (b *nodeBuilder) Node() *Node                       { return b.node }

func (b *nodeBuilder) SetChildCount(n int) {
	if n <= 0 {
		b.node.Children = nil
		return
	}
	b.node.Children = make([]*Node, n)
	for i := range b.node.Children {
		b.node.Children[i] = NewNode()
	}
}

func (b *nodeBuilder) NewChild(index int) Builder {
	return &nodeBuilder{snap: b.snap, node: b.node.Children[index]}
}

func (b *nodeBuilder) AsyncNewChild(index int) AsyncBuilder {
	child := b.node.Children[index]
	b.snap.addPending(child)
	return &asyncBuilder{nodeBuilder: nodeBuilder{snap: b.snap, node: child}}
}

type asyncBuilder struct {
	nodeBuilder
}

func (b *asyncBuilder) Commit() {
	b.snap.commit(b.node)
}
