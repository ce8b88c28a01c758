package model

import "math"

// NodeFlag represents special entry attributes.
type NodeFlag uint8

const (
	FlagNone    NodeFlag = 0
	FlagSymlink NodeFlag = 1 << iota
	FlagError
	FlagHardlink
	// FlagUsageEstimated marks nodes whose disk usage is estimated (not exact).
	FlagUsageEstimated
)

// Node is one entry of a scanned tree. A node owns its children by value and
// is never mutated once the scanner has returned it.
type Node struct {
	Name     string   `json:"name"`
	Path     string   `json:"path"`
	Size     uint64   `json:"size"`
	Children []Node   `json:"children"`
	IsFile   bool     `json:"isFile"`
	Flag     NodeFlag `json:"flag,omitempty"`
}

// NewLeaf builds a childless node.
func NewLeaf(name, path string, size uint64, isFile bool, flag NodeFlag) Node {
	return Node{Name: name, Path: path, Size: size, IsFile: isFile, Flag: flag}
}

// NewDir builds a directory node from its children. The children are sorted
// in place and the directory size is their saturating sum.
func NewDir(name, path string, children []Node, flag NodeFlag) Node {
	SortChildren(children)
	var size uint64
	for i := range children {
		size = SaturatingAdd(size, children[i].Size)
	}
	return Node{Name: name, Path: path, Size: size, Children: children, Flag: flag}
}

// IsDir reports whether the node is a directory (symlinks are leaves).
func (n Node) IsDir() bool {
	return !n.IsFile && n.Flag&FlagSymlink == 0
}

// Clone returns a deep copy of the node and its subtree.
func (n Node) Clone() Node {
	cp := n
	if n.Children != nil {
		cp.Children = make([]Node, len(n.Children))
		for i := range n.Children {
			cp.Children[i] = n.Children[i].Clone()
		}
	}
	return cp
}

// Count returns the number of nodes below n, excluding n itself.
func (n Node) Count() uint64 {
	var count uint64
	for i := range n.Children {
		count += 1 + n.Children[i].Count()
	}
	return count
}

// Find walks down the tree by child names and returns the matching node.
func (n *Node) Find(names ...string) *Node {
	node := n
	for _, name := range names {
		var next *Node
		for i := range node.Children {
			if node.Children[i].Name == name {
				next = &node.Children[i]
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// Walk visits n and every descendant depth-first, parents before children.
// Returning false from fn skips the node's subtree.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for i := range n.Children {
		n.Children[i].Walk(fn)
	}
}

// SaturatingAdd adds two sizes, clamping at math.MaxUint64.
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}
