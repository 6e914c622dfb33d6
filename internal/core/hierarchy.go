package core

import "sort"

// BudgetNode is an entry placed in the account tree.
type BudgetNode struct {
	Entry    BudgetEntry
	Depth    int
	Children []*BudgetNode
}

// BuildTree arranges entries into a forest keyed by ParentID. Entries whose
// parent is not in the set become roots. Siblings are ordered by account
// number. Entries that sit on a parent cycle become roots.
func BuildTree(entries []BudgetEntry) []*BudgetNode {
	nodes := make(map[int64]*BudgetNode, len(entries))
	for _, e := range entries {
		nodes[e.ID] = &BudgetNode{Entry: e}
	}

	var roots []*BudgetNode
	for _, e := range entries {
		n := nodes[e.ID]
		if e.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*e.ParentID]
		if !ok || parent == n || createsCycle(nodes, e.ID, *e.ParentID) {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	sortNodes(roots)
	for _, r := range roots {
		setDepth(r, 0)
	}
	return roots
}

// OrderHierarchy returns entries depth-first: each parent followed by its
// children.
func OrderHierarchy(entries []BudgetEntry) []BudgetEntry {
	out := make([]BudgetEntry, 0, len(entries))
	Walk(BuildTree(entries), func(n *BudgetNode) {
		out = append(out, n.Entry)
	})
	return out
}

// Walk visits nodes depth-first in order.
func Walk(nodes []*BudgetNode, fn func(*BudgetNode)) {
	for _, n := range nodes {
		fn(n)
		Walk(n.Children, fn)
	}
}

// createsCycle reports whether following parents upward from parentID leads
// back to id.
func createsCycle(nodes map[int64]*BudgetNode, id, parentID int64) bool {
	seen := map[int64]bool{id: true}
	cur := parentID
	for {
		if seen[cur] {
			return cur == id
		}
		seen[cur] = true
		n, ok := nodes[cur]
		if !ok || n.Entry.ParentID == nil {
			return false
		}
		cur = *n.Entry.ParentID
	}
}

func sortNodes(nodes []*BudgetNode) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Entry.AccountNumber < nodes[j].Entry.AccountNumber
	})
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}

func setDepth(n *BudgetNode, depth int) {
	n.Depth = depth
	for _, c := range n.Children {
		setDepth(c, depth+1)
	}
}
