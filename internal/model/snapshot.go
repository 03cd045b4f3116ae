package model

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is a captured list of windows. Subtrees built through
// AsyncNewChild stay pending until committed; WaitReady gates readers on
// that count.
type Snapshot struct {
	Windows []*Window `yaml:"windows" json:"windows"`

	mu      sync.Mutex
	cond    *sync.Cond
	pending map[*Node]struct{}
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// NewWindow appends a window and returns the builder for its root node.
func (s *Snapshot) NewWindow(x, y, width, height int32, title string, displayID int32) Builder {
	root := NewNode()
	s.Windows = append(s.Windows, &Window{
		X: x, Y: y, Width: width, Height: height,
		Title:     title,
		DisplayID: displayID,
		Root:      root,
	})
	return &nodeBuilder{snap: s, node: root}
}

// NodeCount returns the number of nodes across all windows.
func (s *Snapshot) NodeCount() int {
	n := 0
	for _, w := range s.Windows {
		n += CountNodes(w.Root)
	}
	return n
}

// condLocked lazily creates the condition variable. s.mu must be held.
func (s *Snapshot) condLocked() *sync.Cond {
	if s.cond == nil {
		s.cond = sync.NewCond(&s.mu)
	}
	return s.cond
}

func (s *Snapshot) addPending(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		s.pending = make(map[*Node]struct{})
	}
	s.pending[n] = struct{}{}
}

func (s *Snapshot) commit(n *Node) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[n]; !ok {
		return
	}
	delete(s.pending, n)
	if len(s.pending) == 0 {
		s.condLocked().Broadcast()
	}
}

// Pending returns the number of async subtrees not yet committed.
func (s *Snapshot) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// WaitReady blocks until every async subtree is committed or timeout
// elapses. It returns false on timeout.
func (s *Snapshot) WaitReady(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return true
	}
	if timeout <= 0 {
		return false
	}

	cond := s.condLocked()
	expired := false
	timer := time.AfterFunc(timeout, func() {
		s.mu.Lock()
		expired = true
		cond.Broadcast()
		s.mu.Unlock()
	})
	defer timer.Stop()

	for len(s.pending) > 0 {
		if expired {
			return false
		}
		cond.Wait()
	}
	return true
}

// Validate checks structural invariants the codec relies on.
func (s *Snapshot) Validate() error {
	for i, w := range s.Windows {
		if w.Root == nil {
			return fmt.Errorf("window %d: missing root node", i)
		}
		stack := []*Node{w.Root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(n.Matrix) != 0 && len(n.Matrix) != 9 {
				return fmt.Errorf("window %d: node %q has a %d-value matrix, want 9", i, n.ClassName, len(n.Matrix))
			}
			for j, c := range n.Children {
				if c == nil {
					return fmt.Errorf("window %d: node %q child %d is nil", i, n.ClassName, j)
				}
				stack = append(stack, c)
			}
		}
	}
	return nil
}

// UnmarshalYAML applies node defaults before decoding.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	type plain Node
	p := plain(*NewNode())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*n = Node(p)
	return nil
}

// UnmarshalYAML applies text defaults before decoding.
func (t *Text) UnmarshalYAML(value *yaml.Node) error {
	type plain Text
	p := plain(*NewText("", 0))
	if err := value.Decode(&p); err != nil {
		return err
	}
	*t = Text(p)
	return nil
}

// ParseSnapshot decodes a YAML snapshot document.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	snap := NewSnapshot()
	if err := yaml.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, nil
}

// LoadSnapshot reads a YAML snapshot file from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// SaveSnapshot writes a snapshot as YAML.
func SaveSnapshot(path string, snap *Snapshot) error {
	data, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
