package commenttree

import (
	"sync"

	"github.com/nasermirzaei89/agora/discuss"
)

// Node is one materialized comment and its depth.
type Node struct {
	Comment  *discuss.Comment
	Level    int
	Expanded bool
}

// Tree is a flattened, depth-first view of the comments loaded so far. Every
// node follows its ancestors; a node's descendants follow it contiguously.
type Tree struct {
	mu    sync.RWMutex
	nodes []*Node
	ids   map[string]struct{}
}

func New() *Tree {
	return &Tree{
		nodes: make([]*Node, 0),
		ids:   make(map[string]struct{}),
	}
}

// AddNode places the comment after its parent's known subtree. Comments
// whose parent is not materialized are appended. Adding a known id does
// nothing.
func (t *Tree) AddNode(comment *discuss.Comment, level int, parentCommentID *string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.ids[comment.ID]; ok {
		return
	}

	node := &Node{Comment: comment, Level: level}
	t.ids[comment.ID] = struct{}{}

	parentIdx := -1
	if parentCommentID != nil {
		parentIdx = t.indexOf(*parentCommentID)
	}

	if parentIdx < 0 {
		t.nodes = append(t.nodes, node)

		return
	}

	parentLevel := t.nodes[parentIdx].Level

	pos := parentIdx + 1
	for pos < len(t.nodes) && t.nodes[pos].Level > parentLevel {
		pos++
	}

	t.nodes = append(t.nodes, nil)
	copy(t.nodes[pos+1:], t.nodes[pos:])
	t.nodes[pos] = node
}

func (t *Tree) indexOf(id string) int {
	if _, ok := t.ids[id]; !ok {
		return -1
	}

	for i, node := range t.nodes {
		if node.Comment.ID == id {
			return i
		}
	}

	return -1
}

func (t *Tree) setExpanded(id string, update func(bool) bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := t.indexOf(id)
	if idx < 0 {
		return false
	}

	t.nodes[idx].Expanded = update(t.nodes[idx].Expanded)

	return t.nodes[idx].Expanded
}

// Toggle flips the expanded flag and returns the new value. Unknown ids
// report false.
func (t *Tree) Toggle(id string) bool {
	return t.setExpanded(id, func(expanded bool) bool { return !expanded })
}

func (t *Tree) Expand(id string) {
	t.setExpanded(id, func(bool) bool { return true })
}

func (t *Tree) Collapse(id string) {
	t.setExpanded(id, func(bool) bool { return false })
}

// RemoveNodes drops every node whose id is in ids.
func (t *Tree) RemoveNodes(ids []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}

	kept := t.nodes[:0]

	for _, node := range t.nodes {
		if _, ok := remove[node.Comment.ID]; ok {
			delete(t.ids, node.Comment.ID)

			continue
		}

		kept = append(kept, node)
	}

	clear(t.nodes[len(kept):])
	t.nodes = kept
}

func (t *Tree) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes = make([]*Node, 0)
	t.ids = make(map[string]struct{})
}

// Nodes returns a copy of the sequence in display order.
func (t *Tree) Nodes() []Node {
	t.mu.RLock()
	defer t.mu.RUnlock()

	res := make([]Node, len(t.nodes))
	for i, node := range t.nodes {
		res[i] = *node
	}

	return res
}

func (t *Tree) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.nodes)
}

func (t *Tree) Node(id string) (Node, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	idx := t.indexOf(id)
	if idx < 0 {
		return Node{}, false
	}

	return *t.nodes[idx], true
}

func (t *Tree) IndexOf(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.indexOf(id)
}
