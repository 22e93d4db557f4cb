package foldertree

import (
	"sort"

	"github.com/MrSnakeDoc/linkloom/internal/domain"
)

// Tree is an arena of one user's folders indexed by id. Walks are
// iterative and track visited ids, so corrupt data (cycles, dangling
// parents) cannot loop or overflow the stack.
type Tree struct {
	nodes map[int64]*node
	ids   []int64
}

type node struct {
	folder   domain.Folder
	children []int64
}

type frame struct {
	id   int64
	next int
}

// NewTree indexes folders. Children are ordered by id.
func NewTree(folders []domain.Folder) *Tree {
	t := &Tree{nodes: make(map[int64]*node, len(folders))}
	for _, f := range folders {
		t.nodes[f.ID] = &node{folder: f}
		t.ids = append(t.ids, f.ID)
	}
	sort.Slice(t.ids, func(i, j int) bool { return t.ids[i] < t.ids[j] })
	for _, id := range t.ids {
		n := t.nodes[id]
		if n.folder.ParentID == nil {
			continue
		}
		if parent, ok := t.nodes[*n.folder.ParentID]; ok && *n.folder.ParentID != id {
			parent.children = append(parent.children, id)
		}
	}
	return t
}

// Folder returns the folder with id.
func (t *Tree) Folder(id int64) (domain.Folder, bool) {
	n, ok := t.nodes[id]
	if !ok {
		return domain.Folder{}, false
	}
	return n.folder, true
}

// Len is the number of folders in the tree.
func (t *Tree) Len() int { return len(t.ids) }

// PostOrder returns the subtree rooted at id, children before parents.
func (t *Tree) PostOrder(id int64) []int64 {
	if _, ok := t.nodes[id]; !ok {
		return nil
	}
	return t.walk(id, make(map[int64]bool), nil)
}

// PostOrderAll returns every folder, children before parents. Folders
// reachable from a root come first; folders only reachable through a
// cycle follow.
func (t *Tree) PostOrderAll() []int64 {
	visited := make(map[int64]bool, len(t.ids))
	out := make([]int64, 0, len(t.ids))
	for _, id := range t.ids {
		if t.isRoot(id) {
			out = t.walk(id, visited, out)
		}
	}
	for _, id := range t.ids {
		out = t.walk(id, visited, out)
	}
	return out
}

func (t *Tree) isRoot(id int64) bool {
	p := t.nodes[id].folder.ParentID
	if p == nil || *p == id {
		return true
	}
	_, ok := t.nodes[*p]
	return !ok
}

func (t *Tree) walk(start int64, visited map[int64]bool, out []int64) []int64 {
	if visited[start] {
		return out
	}
	visited[start] = true
	stack := []frame{{id: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		children := t.nodes[top.id].children
		if top.next < len(children) {
			child := children[top.next]
			top.next++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{id: child})
			}
			continue
		}
		out = append(out, top.id)
		stack = stack[:len(stack)-1]
	}
	return out
}

// Breadcrumb returns the ancestors of id followed by id itself, root first.
// The walk stops at the first repeated id.
func (t *Tree) Breadcrumb(id int64) []domain.Folder {
	var rev []domain.Folder
	seen := make(map[int64]bool)
	cur, ok := t.nodes[id]
	for ok && !seen[cur.folder.ID] {
		seen[cur.folder.ID] = true
		rev = append(rev, cur.folder)
		if cur.folder.ParentID == nil {
			break
		}
		cur, ok = t.nodes[*cur.folder.ParentID]
	}
	out := make([]domain.Folder, len(rev))
	for i, f := range rev {
		out[len(rev)-1-i] = f
	}
	return out
}

// IsWithin reports whether candidate is ancestor itself or lies in its subtree.
func (t *Tree) IsWithin(candidate, ancestor int64) bool {
	for _, f := range t.Breadcrumb(candidate) {
		if f.ID == ancestor {
			return true
		}
	}
	return false
}
