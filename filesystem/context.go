package filesystem

import (
	"cmp"
	"slices"
)

// NodeContext holds the directory locks taken by one namespace operation.
// Calling NodeContext.Close() unwinds all unlocking/cleanup callbacks in reverse order.
//
// Directories are always locked in ascending id order, so any two operations
// that need overlapping sets of directories cannot deadlock. An operation
// that discovers it needs another directory must Close its context and lock
// the larger set afresh.
//
// NOTE: NodeContext itself is **not** thread-safe meaning references
// to it should not be shared between goroutines
type NodeContext struct {
	nodes    []*Node
	closeFns []func()
}

// lockDirs write-locks the distinct directories among nodes in id order.
func lockDirs(nodes ...*Node) *NodeContext {
	ctx := &NodeContext{nodes: sortedUnique(nodes)}
	for _, n := range ctx.nodes {
		n.mu.Lock()
		ctx.AddClose(n.mu.Unlock)
	}
	return ctx
}

// rlockDir read-locks a single directory.
func rlockDir(n *Node) *NodeContext {
	n.mu.RLock()
	ctx := &NodeContext{nodes: []*Node{n}}
	ctx.AddClose(n.mu.RUnlock)
	return ctx
}

// Holds reports whether n is one of the directories locked by ctx.
func (ctx *NodeContext) Holds(n *Node) bool {
	return slices.Contains(ctx.nodes, n)
}

// AddClose pushes a cleanup callback (e.g., unlock) onto the end of the stack.
func (ctx *NodeContext) AddClose(fn func()) {
	ctx.closeFns = append(ctx.closeFns, fn)
}

// Close unwinds all cleanup callbacks in reverse order.
// Safe to call even if ctx is nil or already closed, so you can
// `defer ctx.Close()` unconditionally.
//
// Example:
//
//	ctx := lockDirs(oldParent, newParent)
//	defer ctx.Close()
func (ctx *NodeContext) Close() {
	if ctx == nil {
		return
	}
	for i := len(ctx.closeFns) - 1; i >= 0; i-- {
		ctx.closeFns[i]()
	}
	ctx.closeFns = nil
	ctx.nodes = nil
}

func sortedUnique(nodes []*Node) []*Node {
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n != nil && !slices.Contains(out, n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *Node) int {
		return cmp.Compare(a.id, b.id)
	})
	return out
}
