package model

// FlatNode is a node with a path breadcrumb instead of children.
type FlatNode struct {
	Seq         int      `yaml:"i"              json:"i"`
	Window      int      `yaml:"w"              json:"w"`
	ID          int32    `yaml:"id,omitempty"   json:"id,omitempty"`
	Entry       string   `yaml:"entry,omitempty" json:"entry,omitempty"`
	Role        string   `yaml:"r"              json:"r"`
	Class       string   `yaml:"c,omitempty"    json:"c,omitempty"`
	Text        string   `yaml:"t,omitempty"    json:"t,omitempty"`
	Description string   `yaml:"d,omitempty"    json:"d,omitempty"`
	Bounds      [4]int   `yaml:"b"              json:"b"`
	State       []string `yaml:"s,omitempty"    json:"s,omitempty"`
	Path        string   `yaml:"p,omitempty"    json:"p,omitempty"`
}

var stateNames = []struct {
	flag StateFlags
	name string
}{
	{StateEnabled, "enabled"},
	{StateFocused, "focused"},
	{StateSelected, "selected"},
	{StateChecked, "checked"},
	{StateClickable, "clickable"},
}

// StateNames lists the user-facing states set in f.
func StateNames(f StateFlags) []string {
	var names []string
	for _, s := range stateNames {
		if f.Has(s.flag) {
			names = append(names, s.name)
		}
	}
	return names
}

// Flatten converts every window tree of a snapshot into a flat list in
// pre-order. Seq is the traversal index across the whole snapshot and
// Path joins the roles of the ancestors with " > ".
func Flatten(snap *Snapshot) []FlatNode {
	var result []FlatNode
	for wi, w := range snap.Windows {
		if w.Root != nil {
			flattenRecursive(w.Root, wi, "", &result)
		}
	}
	return result
}

func flattenRecursive(n *Node, window int, parentPath string, result *[]FlatNode) {
	role := MapRole(n.ClassName)
	currentPath := role
	if parentPath != "" {
		currentPath = parentPath + " > " + role
	}

	flat := FlatNode{
		Seq:         len(*result),
		Window:      window,
		ID:          n.ID,
		Entry:       n.IDEntry,
		Role:        role,
		Class:       n.ClassName,
		Description: n.ContentDescription,
		Bounds:      n.Bounds(),
		State:       StateNames(n.State),
		Path:        currentPath,
	}
	if n.Text != nil {
		flat.Text = n.Text.Text
	}
	*result = append(*result, flat)

	for _, child := range n.Children {
		flattenRecursive(child, window, currentPath, result)
	}
}
