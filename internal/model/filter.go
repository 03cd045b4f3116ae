package model

import "strings"

// FilterByText returns copies of the roots pruned to nodes whose text,
// content description or id entry contains text (case-insensitive).
// Ancestors of a match are kept so the result is still a tree.
func FilterByText(roots []*Node, text string) []*Node {
	if text == "" {
		return roots
	}
	textLower := strings.ToLower(text)
	var result []*Node
	for _, n := range roots {
		if filtered := filterNode(n, textLower); filtered != nil {
			result = append(result, filtered)
		}
	}
	return result
}

func filterNode(n *Node, textLower string) *Node {
	var kept []*Node
	for _, c := range n.Children {
		if f := filterNode(c, textLower); f != nil {
			kept = append(kept, f)
		}
	}
	if !textMatchesNode(n, textLower) && len(kept) == 0 {
		return nil
	}
	filtered := *n
	filtered.Children = kept
	return &filtered
}

func textMatchesNode(n *Node, textLower string) bool {
	if n.Text != nil && strings.Contains(strings.ToLower(n.Text.Text), textLower) {
		return true
	}
	return strings.Contains(strings.ToLower(n.ContentDescription), textLower) ||
		strings.Contains(strings.ToLower(n.IDEntry), textLower)
}

// FilterFlatByRoles keeps flat nodes whose role is in roles (after meta-role
// expansion). An empty list keeps everything.
func FilterFlatByRoles(nodes []FlatNode, roles []string) []FlatNode {
	if len(roles) == 0 {
		return nodes
	}
	roleSet := make(map[string]bool)
	for _, r := range ExpandRoles(roles) {
		roleSet[r] = true
	}
	var result []FlatNode
	for _, n := range nodes {
		if roleSet[n.Role] {
			result = append(result, n)
		}
	}
	return result
}

// FindByID returns the first node in pre-order with the given id, or nil.
func FindByID(snap *Snapshot, id int32) *Node {
	for _, w := range snap.Windows {
		if w.Root == nil {
			continue
		}
		stack := []*Node{w.Root}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if n.ID == id {
				return n
			}
			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}
	return nil
}
