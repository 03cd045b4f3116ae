package model

import (
	"crypto/sha256"
	"fmt"
)

// NodeChange is a node present in both snapshots whose mutable fields differ.
type NodeChange struct {
	Seq     int                  `yaml:"i"       json:"i"`
	Role    string               `yaml:"r"       json:"r"`
	Entry   string               `yaml:"entry,omitempty" json:"entry,omitempty"`
	Changes map[string][2]string `yaml:"changes" json:"changes"`
}

// TreeDiff is the result of comparing two flattened snapshots by content hash.
type TreeDiff struct {
	Added          []FlatNode   `yaml:"added,omitempty"   json:"added,omitempty"`
	Removed        []FlatNode   `yaml:"removed,omitempty" json:"removed,omitempty"`
	Changed        []NodeChange `yaml:"changed,omitempty" json:"changed,omitempty"`
	UnchangedCount int          `yaml:"unchanged_count"   json:"unchanged_count"`
}

// NodeHash computes an identity hash from the fields that do not change
// while a view is on screen: window, class, id entry and tree path.
func NodeHash(n FlatNode) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%d|%s", n.Window, n.Class, n.Entry, n.ID, n.Path)
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

// DiffByHash compares two flat lists. Nodes sharing a hash are matched in
// order, so repeated identical siblings pair up positionally.
func DiffByHash(prev, curr []FlatNode) TreeDiff {
	prevByHash := make(map[string][]FlatNode, len(prev))
	for _, n := range prev {
		h := NodeHash(n)
		prevByHash[h] = append(prevByHash[h], n)
	}

	var diff TreeDiff
	for _, n := range curr {
		h := NodeHash(n)
		candidates := prevByHash[h]
		if len(candidates) == 0 {
			diff.Added = append(diff.Added, n)
			continue
		}
		prevNode := candidates[0]
		prevByHash[h] = candidates[1:]

		if changes := diffProperties(prevNode, n); len(changes) > 0 {
			diff.Changed = append(diff.Changed, NodeChange{
				Seq:     n.Seq,
				Role:    n.Role,
				Entry:   n.Entry,
				Changes: changes,
			})
		} else {
			diff.UnchangedCount++
		}
	}

	for _, n := range prev {
		if left := prevByHash[NodeHash(n)]; len(left) > 0 && left[0].Seq == n.Seq {
			diff.Removed = append(diff.Removed, n)
			prevByHash[NodeHash(n)] = left[1:]
		}
	}
	return diff
}

// diffProperties compares the mutable fields of two matched nodes.
func diffProperties(prev, curr FlatNode) map[string][2]string {
	diffs := make(map[string][2]string)

	if prev.Text != curr.Text {
		diffs["t"] = [2]string{prev.Text, curr.Text}
	}
	if prev.Description != curr.Description {
		diffs["d"] = [2]string{prev.Description, curr.Description}
	}
	if prev.Bounds != curr.Bounds {
		diffs["b"] = [2]string{
			fmt.Sprintf("%v", prev.Bounds),
			fmt.Sprintf("%v", curr.Bounds),
		}
	}
	if ps, cs := fmt.Sprintf("%v", prev.State), fmt.Sprintf("%v", curr.State); ps != cs {
		diffs["s"] = [2]string{ps, cs}
	}

	if len(diffs) == 0 {
		return nil
	}
	return diffs
}
